package sources

import (
	"context"

	"github.com/ObiAU/sieratagger/internal/models"
)

// ArticleLister is the part of the sqlite store a source needs.
type ArticleLister interface {
	Articles(ctx context.Context) ([]models.Article, error)
}

type SQLiteSource struct {
	store ArticleLister
	path  string
}

func NewSQLiteSource(store ArticleLister, path string) *SQLiteSource {
	return &SQLiteSource{store: store, path: path}
}

func (s *SQLiteSource) FetchArticles(ctx context.Context) ([]models.Article, error) {
	return s.store.Articles(ctx)
}

func (s *SQLiteSource) GetName() string {
	return "sqlite:" + s.path
}
