package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ObiAU/sieratagger/internal/models"
)

const defaultNewsAPIURL = "https://newsapi.org/v2/everything"

type NewsAPIClient struct {
	apiKey   string
	endpoint string
	query    string
	limit    int
	client   *http.Client
}

type NewsAPIResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Message      string `json:"message"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Author      string    `json:"author"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
		Content     string    `json:"content"`
	} `json:"articles"`
}

func NewNewsAPIClient(apiKey, query string, limit int) *NewsAPIClient {
	return &NewsAPIClient{
		apiKey:   apiKey,
		endpoint: defaultNewsAPIURL,
		query:    query,
		limit:    limit,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoint points the client at a different NewsAPI-compatible URL.
func (c *NewsAPIClient) WithEndpoint(endpoint string) *NewsAPIClient {
	c.endpoint = endpoint
	return c
}

func (c *NewsAPIClient) FetchArticles(ctx context.Context) ([]models.Article, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("pageSize", fmt.Sprintf("%d", c.limit))
	params.Set("sortBy", "publishedAt")
	if c.query != "" {
		params.Set("q", c.query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	var apiResp NewsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, err
	}

	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("newsapi error: %s %s", apiResp.Status, apiResp.Message)
	}

	articles := make([]models.Article, 0, len(apiResp.Articles))
	for _, apiArticle := range apiResp.Articles {
		text := strings.TrimSpace(apiArticle.Description + "\n" + apiArticle.Content)

		articles = append(articles, models.Article{
			ID:    shortID("newsapi", apiArticle.URL),
			Title: apiArticle.Title,
			Text:  text,
		})
	}

	return articles, nil
}

func (c *NewsAPIClient) GetName() string {
	return "newsapi"
}
