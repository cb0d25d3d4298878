package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ObiAU/sieratagger/internal/models"
)

var _ models.Tagger = (*OpenAITagger)(nil)

// OpenAITagger tags articles with a chat model instead of Siera. Its output
// uses the same TagResult shape so the rest of the pipeline is unchanged.
type OpenAITagger struct {
	client openai.Client
	model  string
}

type CategorizationResponse struct {
	Articles []CategorizedArticle `json:"articles"`
}

type CategorizedArticle struct {
	ID         string   `json:"id"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
}

// tagData is what ends up in the TagResult for each article.
type tagData struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
}

func NewOpenAITagger(apiKey, model string, opts ...option.RequestOption) *OpenAITagger {
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAITagger{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (c *OpenAITagger) Version(_ context.Context) (string, error) {
	return "openai:" + c.model, nil
}

func (c *OpenAITagger) TagArticles(ctx context.Context, articles []models.Article) (models.TagResult, error) {
	if len(articles) == 0 {
		return models.TagResult{}, nil
	}

	prompt := c.buildCategorizationPrompt(articles)

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a news tagging expert. Analyze articles and provide structured tag data."),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(4000),
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	content := stripCodeFence(response.Choices[0].Message.Content)
	var categorizationResp CategorizationResponse
	if err := json.Unmarshal([]byte(content), &categorizationResp); err != nil {
		return nil, fmt.Errorf("failed to parse openai response: %w", err)
	}

	requested := make(map[string]bool, len(articles))
	for _, article := range articles {
		requested[article.ID] = true
	}

	result := make(models.TagResult, len(categorizationResp.Articles))
	for _, catArticle := range categorizationResp.Articles {
		if !requested[catArticle.ID] {
			continue
		}
		data, err := json.Marshal(tagData{
			Category:   catArticle.Category,
			Tags:       catArticle.Tags,
			Sentiment:  catArticle.Sentiment,
			Confidence: catArticle.Confidence,
		})
		if err != nil {
			return nil, err
		}
		result[catArticle.ID] = data
	}

	return result, nil
}

func (c *OpenAITagger) buildCategorizationPrompt(articles []models.Article) string {
	var sb strings.Builder
	sb.WriteString("Tag these news articles. For each article, provide:\n")
	sb.WriteString("- category: one of [politics, technology, finance, esg, business, health, science, world, legal, other]\n")
	sb.WriteString("- tags: relevant keywords (max 5)\n")
	sb.WriteString("- sentiment: positive, negative, or neutral\n")
	sb.WriteString("- confidence: 0.0-1.0\n\n")
	sb.WriteString("Respond with JSON format:\n")
	sb.WriteString(`{"articles": [{"id": "article_id", "category": "category", "tags": ["tag1", "tag2"], "sentiment": "sentiment", "confidence": 0.95}]}`)
	sb.WriteString("\n\nArticles to tag:\n\n")

	for i, article := range articles {
		sb.WriteString(fmt.Sprintf("Article %d:\n", i+1))
		sb.WriteString(fmt.Sprintf("ID: %s\n", article.ID))
		sb.WriteString(fmt.Sprintf("Title: %s\n", article.Title))
		sb.WriteString(fmt.Sprintf("Text: %s\n", article.Text))
		sb.WriteString("\n")
	}

	return sb.String()
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
