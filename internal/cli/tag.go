package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ObiAU/sieratagger/internal/aggregator"
	"github.com/ObiAU/sieratagger/internal/ai"
	"github.com/ObiAU/sieratagger/internal/cache"
	"github.com/ObiAU/sieratagger/internal/models"
	"github.com/ObiAU/sieratagger/internal/sources"
	"github.com/ObiAU/sieratagger/internal/store/sqlite"
	"github.com/ObiAU/sieratagger/internal/telegram"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Tag articles in batches",
	Long: `Reads articles from a source, sends them to the tagger in batches and
prints the tags returned for every article as JSON.

Sources:
  json     a JSON array of {"id", "title", "text"} objects (--articles)
  sqlite   the articles table of the database (--db); tags are saved back
  newsapi  recent articles from NewsAPI matching --query
  treenews the latest Tree of Alpha headlines

Examples:
  sieratagger tag --articles articles.json
  sieratagger tag --source sqlite --db news.db --batch-size 5
  sieratagger tag --source newsapi --query "net zero" --backend openai`,
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)

	tagCmd.Flags().String("source", "json", "article source: json, sqlite, newsapi or treenews")
	tagCmd.Flags().String("articles", "", "JSON article file (default ARTICLES_FILE)")
	tagCmd.Flags().String("db", "", "sqlite database (default ARTICLES_DB)")
	tagCmd.Flags().String("query", "esg", "NewsAPI search query")
	tagCmd.Flags().Int("limit", 20, "maximum articles fetched from NewsAPI or Tree of Alpha")
	tagCmd.Flags().Int("batch-size", 0, "articles per request, 1 to 10 (default BATCH_SIZE)")
	tagCmd.Flags().String("backend", "siera", "tagger: siera or openai")
	tagCmd.Flags().Bool("save", false, "save tags to the sqlite database for non-sqlite sources")
}

func runTag(cmd *cobra.Command, _ []string) error {
	sourceName, _ := cmd.Flags().GetString("source")
	backend, _ := cmd.Flags().GetString("backend")
	save, _ := cmd.Flags().GetBool("save")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize == 0 {
		batchSize = cfg.BatchSize
	}
	if batchSize < 1 || batchSize > 10 {
		return fmt.Errorf("batch size must be between 1 and 10, got %d", batchSize)
	}

	tagger, err := newTagger(backend)
	if err != nil {
		return err
	}

	results := cache.New(24 * time.Hour)
	defer results.Close()
	sinks := []models.ResultSink{results}

	var db *sqlite.Store
	if sourceName == "sqlite" || save {
		db, err = openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, db)
	}

	source, err := newSource(cmd, sourceName, db)
	if err != nil {
		return err
	}

	if cfg.TelegramEnabled() {
		bot, err := telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, logger.With("component", "telegram"))
		if err != nil {
			logger.Warn("telegram disabled", "error", err)
		} else {
			sinks = append(sinks, bot)
		}
	}

	agg := aggregator.New(source, tagger, batchSize, logger.With("component", "aggregator"), sinks...)
	report, err := agg.Run(cmd.Context())
	if err != nil {
		return err
	}

	if err := printResults(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	logger.Info("run complete",
		"run_id", report.RunID,
		"version", report.Version,
		"articles", report.Articles,
		"tagged", results.Len())
	return nil
}

func newTagger(backend string) (models.Tagger, error) {
	switch backend {
	case "siera":
		client, err := newSieraClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai backend")
		}
		return ai.NewOpenAITagger(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func newSource(cmd *cobra.Command, name string, db *sqlite.Store) (models.ArticleSource, error) {
	switch name {
	case "json":
		path, _ := cmd.Flags().GetString("articles")
		if path == "" {
			path = cfg.ArticlesFile
		}
		return sources.NewJSONFileSource(path), nil
	case "sqlite":
		return sources.NewSQLiteSource(db, db.Path()), nil
	case "newsapi":
		if cfg.NewsAPIKey == "" {
			return nil, errors.New("NEWS_API_KEY is required for the newsapi source")
		}
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")
		return sources.NewNewsAPIClient(cfg.NewsAPIKey, query, limit), nil
	case "treenews":
		limit, _ := cmd.Flags().GetInt("limit")
		return sources.NewTreeNewsClient(limit), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

func openDB(cmd *cobra.Command) (*sqlite.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.ArticlesDB
	}
	return sqlite.Open(path)
}

type taggedArticle struct {
	ID   string          `json:"id"`
	Tags json.RawMessage `json:"tags"`
}

// printResults writes a JSON array of {"id", "tags"} in tagging order.
func printResults(w io.Writer, results *cache.Cache) error {
	ordered := make([]taggedArticle, 0, results.Len())
	for _, id := range results.IDs() {
		if tags, ok := results.Get(id); ok {
			ordered = append(ordered, taggedArticle{ID: id, Tags: tags})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ordered)
}
