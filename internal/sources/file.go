package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ObiAU/sieratagger/internal/models"
)

// JSONFileSource reads a JSON array of articles from disk.
type JSONFileSource struct {
	path string
}

func NewJSONFileSource(path string) *JSONFileSource {
	return &JSONFileSource{path: path}
}

func (s *JSONFileSource) FetchArticles(_ context.Context) ([]models.Article, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return articles, nil
}

func (s *JSONFileSource) GetName() string {
	return "json:" + s.path
}
