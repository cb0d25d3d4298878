// Package sqlite keeps articles awaiting tagging and the tags Siera returned
// for them in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ObiAU/sieratagger/internal/models"
)

var _ models.ResultSink = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id    TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	text  TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS article_tags (
	article_id TEXT PRIMARY KEY,
	tags       TEXT NOT NULL,
	tagged_at  TEXT NOT NULL
);`

// ErrNotFound is returned when an article has no stored tags.
var ErrNotFound = errors.New("sqlite: not found")

type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Articles returns every stored article in insertion order.
func (s *Store) Articles(ctx context.Context) ([]models.Article, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, text FROM articles ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Text); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// ImportArticles upserts articles. Existing ids keep their original position.
func (s *Store) ImportArticles(ctx context.Context, articles []models.Article) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (id, title, text) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, text = excluded.text`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, a.Title, a.Text); err != nil {
			return fmt.Errorf("inserting article %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// Publish records the tags of one batch.
func (s *Store) Publish(ctx context.Context, _ []models.Article, result models.TagResult) error {
	if len(result) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	taggedAt := s.now().UTC().Format(time.RFC3339)
	for id, tags := range result {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO article_tags (article_id, tags, tagged_at) VALUES (?, ?, ?)
			ON CONFLICT(article_id) DO UPDATE SET tags = excluded.tags, tagged_at = excluded.tagged_at`,
			id, string(tags), taggedAt); err != nil {
			return fmt.Errorf("saving tags for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Tags returns the stored tag data for an article.
func (s *Store) Tags(ctx context.Context, articleID string) (json.RawMessage, time.Time, error) {
	var tags, taggedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT tags, tagged_at FROM article_tags WHERE article_id = ?`, articleID).Scan(&tags, &taggedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("querying tags: %w", err)
	}

	at, err := time.Parse(time.RFC3339, taggedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing tagged_at: %w", err)
	}
	return json.RawMessage(tags), at, nil
}
