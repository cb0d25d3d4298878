package models

import (
	"context"
	"encoding/json"
)

type Article struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// TagResult maps an article id to the tag data Siera returned for it.
type TagResult map[string]json.RawMessage

// Merge copies every entry of other into r, overwriting duplicates.
func (r TagResult) Merge(other TagResult) {
	for id, tags := range other {
		r[id] = tags
	}
}

type ArticleSource interface {
	FetchArticles(ctx context.Context) ([]Article, error)
	GetName() string
}

type Tagger interface {
	Version(ctx context.Context) (string, error)
	TagArticles(ctx context.Context, articles []Article) (TagResult, error)
}

// TokenStore persists configuration values that change at runtime,
// such as a renewed access token.
type TokenStore interface {
	SetConfigValue(key, value string) error
}

type ResultSink interface {
	Publish(ctx context.Context, batch []Article, result TagResult) error
}

// TokenStoreFunc adapts a plain function to TokenStore.
type TokenStoreFunc func(key, value string) error

func (f TokenStoreFunc) SetConfigValue(key, value string) error {
	return f(key, value)
}
