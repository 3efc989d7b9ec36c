package collect

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// Orchestrator fans out across all configured sources concurrently, isolates
// per-source failures, applies the recency cutoff and merges the results into
// one time-descending batch. It never returns an error: a broken source
// contributes nothing and a warning.
type Orchestrator struct {
	sources        []ports.Source
	adapterTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// NewOrchestrator wires the source set. A zero adapterTimeout disables the
// per-adapter deadline.
func NewOrchestrator(sources []ports.Source, adapterTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		sources:        sources,
		adapterTimeout: adapterTimeout,
		logger:         logger,
		now:            time.Now,
	}
}

// Run executes every adapter concurrently and returns the merged batch.
// Articles older than now-cutoff are dropped; articles with no parseable
// date are stamped with run time instead of dropped, so a persistently
// malformed date field never silently removes a source's content.
func (o *Orchestrator) Run(ctx context.Context, cutoff time.Duration) []domain.Article {
	runTime := o.now()
	oldest := runTime.Add(-cutoff)

	results := make([][]domain.Article, len(o.sources))
	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src ports.Source) {
			defer wg.Done()
			results[i] = o.collectOne(ctx, src, oldest)
		}(i, src)
	}
	wg.Wait()

	var merged []domain.Article
	for _, batch := range results {
		merged = append(merged, batch...)
	}

	admitted := merged[:0]
	for _, article := range merged {
		if article.PublishedAt.IsZero() {
			article.PublishedAt = runTime
		}
		if article.PublishedAt.Before(oldest) {
			continue
		}
		admitted = append(admitted, article)
	}

	// Stable sort keeps source-declared order for equal timestamps.
	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].PublishedAt.After(admitted[j].PublishedAt)
	})

	o.log("collection run done", "sources", len(o.sources), "articles", len(admitted))
	return admitted
}

func (o *Orchestrator) collectOne(ctx context.Context, src ports.Source, oldest time.Time) []domain.Article {
	if o.adapterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.adapterTimeout)
		defer cancel()
	}

	articles, err := src.Collect(ctx, oldest)
	if err != nil {
		o.warn("source collection failed", "source", src.Name(), "error", err)
		return nil
	}
	o.log("source collected", "source", src.Name(), "count", len(articles))
	return articles
}

func (o *Orchestrator) log(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}

func (o *Orchestrator) warn(msg string, args ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, args...)
	}
}
