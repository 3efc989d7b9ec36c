package source

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// FeedSource collects from one RSS/Atom feed via gofeed. Malformed entries
// are skipped and counted; a fetch or parse failure of the whole feed is
// returned to the orchestrator, which treats it as an empty result.
type FeedSource struct {
	cfg     config.SourceConfig
	fetcher *Fetcher
	logger  *slog.Logger
}

var _ ports.Source = (*FeedSource)(nil)

// NewFeedSource wires one feed endpoint.
func NewFeedSource(cfg config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) *FeedSource {
	return &FeedSource{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Name identifies the source in logs and on produced articles.
func (s *FeedSource) Name() string { return s.cfg.Name }

// Collect downloads and normalizes the feed. Entries older than cutoff are
// dropped here only when they carry a parseable date; dateless entries go
// through with a zero timestamp for the orchestrator to stamp.
func (s *FeedSource) Collect(ctx context.Context, cutoff time.Time) ([]domain.Article, error) {
	raw, err := s.fetcher.Get(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	articles := make([]domain.Article, 0, s.cfg.MaxItems)
	skipped := 0
	for _, item := range feed.Items {
		if len(articles) >= s.cfg.MaxItems {
			break
		}
		article, ok := s.normalize(item)
		if !ok {
			skipped++
			continue
		}
		if !article.PublishedAt.IsZero() && article.PublishedAt.Before(cutoff) {
			continue
		}
		articles = append(articles, article)
	}

	if skipped > 0 && s.logger != nil {
		s.logger.Warn("skipped malformed feed entries", "source", s.cfg.Name, "count", skipped)
	}
	return articles, nil
}

func (s *FeedSource) normalize(item *gofeed.Item) (domain.Article, bool) {
	if item == nil || item.Link == "" {
		return domain.Article{}, false
	}

	title := cleanText(item.Title)
	if title == "" {
		return domain.Article{}, false
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}
	body = cleanText(body)

	if !matchesKeywords(s.cfg.Keywords, title, body) {
		return domain.Article{}, false
	}

	author := ""
	if item.Author != nil {
		author = cleanText(item.Author.Name)
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	return domain.Article{
		Title:       title,
		URL:         domain.NormalizeURL(item.Link),
		Body:        body,
		Author:      author,
		Source:      s.cfg.Name,
		PublishedAt: published,
	}, true
}
