package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ObiAU/sieratagger/internal/models"
)

const defaultTreeNewsURL = "https://news.treeofalpha.com/api/news"

// TreeNewsClient reads the public Tree of Alpha headline feed. Items carry
// no body, so the article text is the headline plus its source.
type TreeNewsClient struct {
	endpoint string
	limit    int
	client   *http.Client
}

type TreeNewsMessage struct {
	ID      string `json:"_id"`
	Title   string `json:"title"`
	Source  string `json:"source,omitempty"`
	URL     string `json:"url,omitempty"`
	RawTime int64  `json:"time"`
	Body    string `json:"body,omitempty"`
}

func NewTreeNewsClient(limit int) *TreeNewsClient {
	return &TreeNewsClient{
		endpoint: defaultTreeNewsURL,
		limit:    limit,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoint points the client at a different feed URL.
func (c *TreeNewsClient) WithEndpoint(endpoint string) *TreeNewsClient {
	c.endpoint = endpoint
	return c
}

func (c *TreeNewsClient) FetchArticles(ctx context.Context) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("treenews returned status %d", resp.StatusCode)
	}

	var messages []TreeNewsMessage
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(messages))
	for _, msg := range messages {
		if c.limit > 0 && len(articles) >= c.limit {
			break
		}
		if strings.TrimSpace(msg.Title) == "" {
			continue
		}

		id := msg.ID
		if id == "" {
			id = shortID("treenews", msg.Title)
		}

		text := msg.Title
		if msg.Body != "" {
			text += "\n" + msg.Body
		}
		if msg.Source != "" {
			text += "\nSource: " + msg.Source
		}

		articles = append(articles, models.Article{
			ID:    id,
			Title: msg.Title,
			Text:  text,
		})
	}

	return articles, nil
}

func (c *TreeNewsClient) GetName() string {
	return "treenews"
}
