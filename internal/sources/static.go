package sources

import (
	"context"

	"github.com/ObiAU/sieratagger/internal/models"
)

type StaticSource struct {
	articles []models.Article
}

func NewStaticSource(articles []models.Article) *StaticSource {
	return &StaticSource{articles: articles}
}

func (s *StaticSource) FetchArticles(_ context.Context) ([]models.Article, error) {
	out := make([]models.Article, len(s.articles))
	copy(out, s.articles)
	return out, nil
}

func (s *StaticSource) GetName() string {
	return "static"
}
