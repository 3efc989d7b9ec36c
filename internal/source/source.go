package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultMaxItems = 10
)

var (
	tagExpr   = regexp.MustCompile(`<[^>]+>`)
	spaceExpr = regexp.MustCompile(`\s+`)
)

// Fetcher is the shared network helper composed into every adapter variant.
type Fetcher struct {
	client *http.Client
}

// NewFetcher wires an HTTP client; nil defaults to a 20s-timeout client.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Get downloads one page body with a realistic client identification header.
func (f *Fetcher) Get(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	return body, nil
}

// cleanText strips tags, unescapes the common entities and collapses
// whitespace runs.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = tagExpr.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = spaceExpr.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// matchesKeywords reports whether any keyword occurs in the given text,
// case-insensitively. An empty keyword list matches everything.
func matchesKeywords(keywords []string, texts ...string) bool {
	if len(keywords) == 0 {
		return true
	}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

// Constructor builds one adapter for a configured source.
type Constructor func(cfg config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) ports.Source

// Registry keeps a mapping from source kinds to their adapter constructors.
type Registry struct {
	kinds map[string]Constructor
}

// NewRegistry builds a registry pre-populated with the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{kinds: map[string]Constructor{}}
	r.Register("feed", func(cfg config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) ports.Source {
		return NewFeedSource(cfg, fetcher, logger)
	})
	r.Register("page", func(cfg config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) ports.Source {
		return NewPageSource(cfg, fetcher, logger)
	})
	return r
}

// Register adds or replaces the constructor for a kind.
func (r *Registry) Register(kind string, build Constructor) {
	if r.kinds == nil {
		r.kinds = map[string]Constructor{}
	}
	r.kinds[kind] = build
}

// Resolve returns the constructor for a kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Constructor, error) {
	if build, ok := r.kinds[kind]; ok {
		return build, nil
	}
	return nil, fmt.Errorf("source kind %s is not registered", kind)
}

// Build constructs one adapter per configured source. Unknown kinds are
// logged and skipped so a config typo never takes the whole set down.
func Build(cfgs []config.SourceConfig, fetcher *Fetcher, logger *slog.Logger) []ports.Source {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}

	registry := NewRegistry()
	sources := make([]ports.Source, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.MaxItems <= 0 {
			cfg.MaxItems = defaultMaxItems
		}
		build, err := registry.Resolve(cfg.Kind)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping source", "source", cfg.Name, "error", err)
			}
			continue
		}
		sources = append(sources, build(cfg, fetcher, logger))
	}
	return sources
}
