package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"NewsDigest/internal/collect"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Collector gathers one merged batch of draft articles.
type Collector interface {
	Run(ctx context.Context, cutoff time.Duration) []domain.Article
}

// Enricher runs the analysis pipeline over a stored batch.
type Enricher interface {
	Process(ctx context.Context, batch []domain.Article) []domain.Article
}

// Renderer turns an enriched batch into a digest document.
type Renderer interface {
	Render(articles []domain.Article, day time.Time) (string, error)
}

// Deliverer sends a rendered digest to every active recipient.
type Deliverer interface {
	Send(ctx context.Context, subject, htmlBody string) (int, error)
}

// SubjectFunc builds the digest subject line for a given day.
type SubjectFunc func(day time.Time) string

// Cycle is the daily end-to-end run: collect, admit, analyze, render,
// deliver. Each stage degrades rather than aborts where the data allows it;
// only an empty batch or a render failure stops the cycle early.
type Cycle struct {
	collector Collector
	store     ports.ArticleStore
	enricher  Enricher
	renderer  Renderer
	deliverer Deliverer
	subject   SubjectFunc

	cutoff  time.Duration
	dataDir string
	logger  *slog.Logger
	now     func() time.Time
}

type Config struct {
	Collector Collector
	Store     ports.ArticleStore
	Enricher  Enricher
	Renderer  Renderer
	Deliverer Deliverer
	Subject   SubjectFunc
	Cutoff    time.Duration
	DataDir   string
	Logger    *slog.Logger
}

func NewCycle(cfg Config) *Cycle {
	subject := cfg.Subject
	if subject == nil {
		subject = func(day time.Time) string { return day.Format("2006-01-02") }
	}
	cutoff := cfg.Cutoff
	if cutoff <= 0 {
		cutoff = 24 * time.Hour
	}
	return &Cycle{
		collector: cfg.Collector,
		store:     cfg.Store,
		enricher:  cfg.Enricher,
		renderer:  cfg.Renderer,
		deliverer: cfg.Deliverer,
		subject:   subject,
		cutoff:    cutoff,
		dataDir:   cfg.DataDir,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// CollectResult summarizes one collection pass.
type CollectResult struct {
	Collected  int
	Inserted   int
	Duplicates int
}

// Collect gathers the current batch and admits it into the store. Per-article
// admission failures are logged and skipped; the pass itself only fails when
// the store is unusable for every article.
func (c *Cycle) Collect(ctx context.Context) (CollectResult, error) {
	batch := c.collector.Run(ctx, c.cutoff)
	result := CollectResult{Collected: len(batch)}

	var lastErr error
	failures := 0
	for _, article := range batch {
		outcome, err := c.store.Admit(ctx, article)
		if err != nil {
			failures++
			lastErr = err
			c.warn("admission failed", "url", article.URL, "error", err)
			continue
		}
		if outcome == ports.AdmitInserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}
	if failures > 0 && failures == len(batch) {
		return result, fmt.Errorf("admit batch: %w", lastErr)
	}

	c.info("collection complete",
		"collected", result.Collected,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates)
	return result, nil
}

// Analyze loads the recent window from the store and runs the enrichment
// pipeline over it, returning the enriched batch.
func (c *Cycle) Analyze(ctx context.Context) ([]domain.Article, error) {
	since := c.now().Add(-c.cutoff)
	batch, err := c.store.Recent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load recent articles: %w", err)
	}
	if len(batch) == 0 {
		return nil, nil
	}
	return c.enricher.Process(ctx, batch), nil
}

// Run executes the full daily cycle for the given fire time. An empty batch
// ends the cycle cleanly with nothing sent; a delivery pass that reaches no
// recipient is logged, not failed.
func (c *Cycle) Run(ctx context.Context, fireTime time.Time) error {
	if _, err := c.Collect(ctx); err != nil {
		return err
	}

	batch, err := c.Analyze(ctx)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		c.info("no articles in window, skipping digest", "fire_time", fireTime)
		return nil
	}

	c.exportBatch(fireTime, batch)

	html, err := c.renderer.Render(batch, fireTime)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	sent, err := c.deliverer.Send(ctx, c.subject(fireTime), html)
	if err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}
	c.info("cycle delivered", "articles", len(batch), "recipients", sent)
	return nil
}

// Export writes the current recent window to the data directory as a JSON
// snapshot and returns the file path.
func (c *Cycle) Export(ctx context.Context, day time.Time) (string, error) {
	if c.dataDir == "" {
		return "", errors.New("no data directory configured")
	}
	batch, err := c.store.Recent(ctx, day.Add(-c.cutoff))
	if err != nil {
		return "", fmt.Errorf("load recent articles: %w", err)
	}
	return collect.ExportBatch(c.dataDir, day, batch)
}

// exportBatch writes the day's batch to the data directory as a JSON
// snapshot. Export trouble never fails the cycle.
func (c *Cycle) exportBatch(day time.Time, batch []domain.Article) {
	if c.dataDir == "" {
		return
	}
	path, err := collect.ExportBatch(c.dataDir, day, batch)
	if err != nil {
		c.warn("batch export failed", "error", err)
		return
	}
	c.info("batch exported", "path", path, "articles", len(batch))
}

func (c *Cycle) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Cycle) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
