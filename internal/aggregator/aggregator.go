package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ObiAU/sieratagger/internal/batch"
	"github.com/ObiAU/sieratagger/internal/models"
)

const defaultBatchSize = 10

// ErrAlreadyRunning is returned when Run is called while a run is in progress.
var ErrAlreadyRunning = errors.New("aggregator: run already in progress")

type Aggregator struct {
	source    models.ArticleSource
	tagger    models.Tagger
	sinks     []models.ResultSink
	batchSize int
	logger    *slog.Logger
	mu        sync.RWMutex
	running   bool
}

// Report summarizes a completed run.
type Report struct {
	RunID    string
	Source   string
	Version  string
	Articles int
	Batches  int
	Results  models.TagResult
	Duration time.Duration
}

func New(source models.ArticleSource, tagger models.Tagger, batchSize int, logger *slog.Logger, sinks ...models.ResultSink) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	return &Aggregator{
		source:    source,
		tagger:    tagger,
		sinks:     sinks,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Run fetches the articles, tags them batch by batch in source order and
// hands every batch result to the sinks. The first failure stops the run.
func (a *Aggregator) Run(ctx context.Context) (*Report, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	start := time.Now()
	report := &Report{
		RunID:   uuid.NewString(),
		Source:  a.source.GetName(),
		Results: make(models.TagResult),
	}
	logger := a.logger.With("run_id", report.RunID)

	articles, err := a.source.FetchArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch articles from %s: %w", report.Source, err)
	}
	report.Articles = len(articles)

	version, err := a.tagger.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules version: %w", err)
	}
	report.Version = version
	logger.Info("tagging articles",
		"source", report.Source,
		"articles", len(articles),
		"batches", batch.Count(len(articles), a.batchSize),
		"version", version)

	for group := range batch.Make(articles, a.batchSize) {
		report.Batches++

		if err := a.processBatch(ctx, logger, report.Batches, group, report.Results); err != nil {
			return nil, fmt.Errorf("batch %d: %w", report.Batches, err)
		}
	}

	report.Duration = time.Since(start)
	logger.Info("tagging finished",
		"batches", report.Batches,
		"tagged", len(report.Results),
		"duration_ms", report.Duration.Milliseconds())

	return report, nil
}

func (a *Aggregator) processBatch(ctx context.Context, logger *slog.Logger, n int, group []models.Article, results models.TagResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result, err := a.tagger.TagArticles(ctx, group)
	if err != nil {
		return fmt.Errorf("failed to tag articles: %w", err)
	}
	logger.Debug("batch tagged", "batch", n, "size", len(group), "tagged", len(result))

	for _, sink := range a.sinks {
		if err := sink.Publish(ctx, group, result); err != nil {
			return fmt.Errorf("failed to publish results: %w", err)
		}
	}

	results.Merge(result)
	return nil
}

func (a *Aggregator) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}
