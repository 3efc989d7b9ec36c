package source

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// PageSource collects from a raw HTML listing page, extracting items with a
// configured CSS selector. Every per-item lookup tolerates absent elements;
// items with no usable title or link are skipped and counted.
type PageSource struct {
	cfg     config.SourceConfig
	fetcher *Fetcher
	logger  *slog.Logger
}

var _ ports.Source = (*PageSource)(nil)

// NewPageSource wires one HTML listing endpoint.
func NewPageSource(cfg config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) *PageSource {
	return &PageSource{cfg: cfg, fetcher: fetcher, logger: logger}
}

// Name identifies the source in logs and on produced articles.
func (s *PageSource) Name() string { return s.cfg.Name }

// Collect downloads the listing page and extracts up to MaxItems articles.
func (s *PageSource) Collect(ctx context.Context, cutoff time.Time) ([]domain.Article, error) {
	raw, err := s.fetcher.Get(ctx, s.cfg.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(s.cfg.URL)

	articles := make([]domain.Article, 0, s.cfg.MaxItems)
	skipped := 0
	doc.Find(s.cfg.Selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		article, ok := s.parseItem(sel, base)
		if !ok {
			skipped++
			return true
		}
		if !article.PublishedAt.IsZero() && article.PublishedAt.Before(cutoff) {
			return true
		}
		articles = append(articles, article)
		return len(articles) < s.cfg.MaxItems
	})

	if skipped > 0 && s.logger != nil {
		s.logger.Warn("skipped malformed page items", "source", s.cfg.Name, "count", skipped)
	}
	return articles, nil
}

func (s *PageSource) parseItem(sel *goquery.Selection, base *url.URL) (domain.Article, bool) {
	titleNode := sel.Find("h1, h2, h3, h4, a").First()
	title := cleanText(titleNode.Text())
	if title == "" {
		return domain.Article{}, false
	}

	link, _ := sel.Find("a").First().Attr("href")
	link = strings.TrimSpace(link)
	if link == "" {
		return domain.Article{}, false
	}
	if !strings.HasPrefix(link, "http") && base != nil {
		if ref, err := url.Parse(link); err == nil {
			link = base.ResolveReference(ref).String()
		}
	}

	body := cleanText(sel.Find("p, .content, .description, .summary, .entry-content").First().Text())
	author := cleanText(sel.Find(".author, .entry-author, .byline").First().Text())

	var published time.Time
	if dateAttr, ok := sel.Find("time").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(dateAttr)); err == nil {
			published = parsed
		}
	}
	if published.IsZero() {
		dateText := cleanText(sel.Find(".entry-date, .date, time").First().Text())
		for _, layout := range []string{"2006-01-02", "January 2, 2006", "2 Jan 2006"} {
			if parsed, err := time.Parse(layout, dateText); err == nil {
				published = parsed
				break
			}
		}
	}

	if !matchesKeywords(s.cfg.Keywords, title, body) {
		return domain.Article{}, false
	}

	return domain.Article{
		Title:       title,
		URL:         domain.NormalizeURL(link),
		Body:        body,
		Author:      author,
		Source:      s.cfg.Name,
		PublishedAt: published,
	}, true
}
