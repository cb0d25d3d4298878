package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ObiAU/sieratagger/internal/models"
)

var _ models.ResultSink = (*Cache)(nil)

type entry struct {
	article  models.Article
	tags     json.RawMessage
	storedAt time.Time
}

// Cache keeps the tags of recently tagged articles, keyed by article id.
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]entry
	order         []string
	retention     time.Duration
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	closeOnce     sync.Once
}

func New(retention time.Duration) *Cache {
	c := &Cache{
		entries:   make(map[string]entry),
		retention: retention,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(1 * time.Hour)
	go c.cleanup()

	return c
}

// Publish stores the tags of every article in the batch. Ids the service
// answered for but that were not in the batch are kept too.
func (c *Cache) Publish(_ context.Context, batch []models.Article, result models.TagResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, article := range batch {
		tags, ok := result[article.ID]
		if !ok {
			continue
		}
		c.put(article.ID, entry{article: article, tags: tags, storedAt: now})
	}
	for id, tags := range result {
		if _, ok := c.entries[id]; !ok {
			c.put(id, entry{article: models.Article{ID: id}, tags: tags, storedAt: now})
		}
	}
	return nil
}

// put stores e (caller must hold lock).
func (c *Cache) put(id string, e entry) {
	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
	}
	c.entries[id] = e
}

func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.entries[id]
	return exists
}

func (c *Cache) Get(id string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[id]
	return e.tags, exists
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns all cached tags.
func (c *Cache) Snapshot() models.TagResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(models.TagResult, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.tags
	}
	return out
}

// IDs returns cached article ids in the order they were first stored.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Cache) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.Purge(c.now())
		case <-c.stopChan:
			return
		}
	}
}

// Purge drops entries stored longer than the retention before now.
func (c *Cache) Purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now.Add(-c.retention)
	removed := 0
	kept := c.order[:0]
	for _, id := range c.order {
		if c.entries[id].storedAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
	return removed
}

func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopChan)
	})
}

func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"tagged_articles": len(c.entries),
		"retention":       c.retention.String(),
	}
}
