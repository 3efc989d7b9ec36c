package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// ErrNotFound is returned by lookups and updates targeting a record that is
// not (or no longer) in the store.
var ErrNotFound = errors.New("article not found")

// MemoryStore keeps canonical articles in process memory. All mutation goes
// through one mutex, so concurrent adapters discovering the same URL cannot
// double-insert: the first admission wins and the rest see a duplicate.
type MemoryStore struct {
	mu       sync.Mutex
	articles map[string]domain.Article
	order    []string
}

var _ ports.ArticleStore = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{articles: map[string]domain.Article{}}
}

// Admit inserts the article unless its normalized URL already exists.
func (s *MemoryStore) Admit(ctx context.Context, article domain.Article) (ports.AdmitResult, error) {
	key := domain.NormalizeURL(article.URL)
	article.URL = key

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[key]; ok {
		return ports.AdmitDuplicate, nil
	}
	s.articles[key] = article
	s.order = append(s.order, key)
	return ports.AdmitInserted, nil
}

// Recent returns all articles published at or after since, newest first.
func (s *MemoryStore) Recent(ctx context.Context, since time.Time) ([]domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Article
	for _, key := range s.order {
		article := s.articles[key]
		if article.PublishedAt.Before(since) {
			continue
		}
		out = append(out, article)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, nil
}

// ByURL looks up one article by its identity.
func (s *MemoryStore) ByURL(ctx context.Context, url string) (domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[domain.NormalizeURL(url)]
	if !ok {
		return domain.Article{}, ErrNotFound
	}
	return article, nil
}

// Update writes enrichment fields onto an existing article.
func (s *MemoryStore) Update(ctx context.Context, url string, enrichment domain.Enrichment) error {
	key := domain.NormalizeURL(url)

	s.mu.Lock()
	defer s.mu.Unlock()

	article, ok := s.articles[key]
	if !ok {
		return ErrNotFound
	}
	enrichment.Apply(&article)
	s.articles[key] = article
	return nil
}

// List supports the HTTP boundary's filtered pagination over stored articles.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]domain.Article, error) {
	all, err := s.Recent(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return applyFilter(all, filter), nil
}

// ListFilter narrows and pages a listing query.
type ListFilter struct {
	Category     string
	ClusterLabel string
	Since        time.Time
	Skip         int
	Limit        int
}

func applyFilter(articles []domain.Article, filter ListFilter) []domain.Article {
	var out []domain.Article
	for _, a := range articles {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.ClusterLabel != "" && a.ClusterLabel != filter.ClusterLabel {
			continue
		}
		if !filter.Since.IsZero() && a.PublishedAt.Before(filter.Since) {
			continue
		}
		out = append(out, a)
	}

	if filter.Skip > 0 {
		if filter.Skip >= len(out) {
			return nil
		}
		out = out[filter.Skip:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out
}
