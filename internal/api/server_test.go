package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/store"
	"NewsDigest/internal/usecase"
)

type stubCycle struct {
	collectResult usecase.CollectResult
	collectErr    error
	analyzed      []domain.Article
	analyzeErr    error
}

func (s *stubCycle) Collect(ctx context.Context) (usecase.CollectResult, error) {
	return s.collectResult, s.collectErr
}

func (s *stubCycle) Analyze(ctx context.Context) ([]domain.Article, error) {
	return s.analyzed, s.analyzeErr
}

func seededServer(t *testing.T, articles ...domain.Article) (*Server, *store.MemoryStore) {
	t.Helper()
	memory := store.NewMemoryStore()
	for _, a := range articles {
		if _, err := memory.Admit(context.Background(), a); err != nil {
			t.Fatalf("seed %s: %v", a.URL, err)
		}
	}
	return NewServer(memory, &stubCycle{}, nil), memory
}

func doJSON(t *testing.T, srv *Server, method, target string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s %s: bad JSON: %v", method, target, err)
	}
	return rec.Code, body
}

func TestListNewsFiltersAndPages(t *testing.T) {
	t.Parallel()

	now := time.Now()
	srv, _ := seededServer(t,
		domain.Article{Title: "One", URL: "https://example.com/1", Category: "Policy", PublishedAt: now},
		domain.Article{Title: "Two", URL: "https://example.com/2", Category: "Research", PublishedAt: now.Add(-time.Hour)},
		domain.Article{Title: "Three", URL: "https://example.com/3", Category: "Policy", PublishedAt: now.Add(-2 * time.Hour)},
	)

	code, body := doJSON(t, srv, http.MethodGet, "/api/news?category=Policy")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := body["count"].(float64); got != 2 {
		t.Errorf("count = %v, want 2", got)
	}

	code, body = doJSON(t, srv, http.MethodGet, "/api/news?skip=1&limit=1")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := body["count"].(float64); got != 1 {
		t.Errorf("paged count = %v, want 1", got)
	}

	code, _ = doJSON(t, srv, http.MethodGet, "/api/news?limit=9999")
	if code != http.StatusBadRequest {
		t.Errorf("oversized limit: status = %d, want 400", code)
	}
	code, _ = doJSON(t, srv, http.MethodGet, "/api/news?skip=-1")
	if code != http.StatusBadRequest {
		t.Errorf("negative skip: status = %d, want 400", code)
	}
}

func TestClustersGrouped(t *testing.T) {
	t.Parallel()

	now := time.Now()
	one, two := 1, 2
	srv, _ := seededServer(t,
		domain.Article{Title: "A", URL: "https://example.com/a", ClusterID: &one, ClusterLabel: "Governance", PublishedAt: now},
		domain.Article{Title: "B", URL: "https://example.com/b", ClusterID: &two, ClusterLabel: "Science", PublishedAt: now.Add(-time.Minute)},
		domain.Article{Title: "C", URL: "https://example.com/c", ClusterID: &one, ClusterLabel: "Governance", PublishedAt: now.Add(-2 * time.Minute)},
		domain.Article{Title: "D", URL: "https://example.com/d", PublishedAt: now.Add(-3 * time.Minute)},
	)

	code, body := doJSON(t, srv, http.MethodGet, "/api/news/clusters")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	clusters := body["clusters"].([]any)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}
	first := clusters[0].(map[string]any)
	if first["label"] != "Governance" {
		t.Errorf("first cluster = %v, want Governance", first["label"])
	}
	if got := len(first["articles"].([]any)); got != 2 {
		t.Errorf("Governance has %d articles, want 2", got)
	}
}

// An empty window is a 404 on the summary endpoint, distinct from a fault.
func TestSummaryEmptyWindow(t *testing.T) {
	t.Parallel()

	srv, _ := seededServer(t)
	code, _ := doJSON(t, srv, http.MethodGet, "/api/news/summary")
	if code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}

	srv, _ = seededServer(t, domain.Article{
		Title: "A", URL: "https://example.com/a", Category: "Policy",
		Summary: "done", PublishedAt: time.Now(),
	})
	code, body := doJSON(t, srv, http.MethodGet, "/api/news/summary")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got := body["analyzed"].(float64); got != 1 {
		t.Errorf("analyzed = %v, want 1", got)
	}
}

func TestTriggers(t *testing.T) {
	t.Parallel()

	cycle := &stubCycle{
		collectResult: usecase.CollectResult{Collected: 3, Inserted: 2, Duplicates: 1},
		analyzed:      []domain.Article{{Title: "A"}, {Title: "B"}},
	}
	srv := NewServer(store.NewMemoryStore(), cycle, nil)

	code, body := doJSON(t, srv, http.MethodPost, "/api/news/collect")
	if code != http.StatusOK {
		t.Fatalf("collect status = %d", code)
	}
	if got := body["inserted"].(float64); got != 2 {
		t.Errorf("inserted = %v, want 2", got)
	}

	code, body = doJSON(t, srv, http.MethodPost, "/api/news/analyze")
	if code != http.StatusOK {
		t.Fatalf("analyze status = %d", code)
	}
	if got := body["analyzed"].(float64); got != 2 {
		t.Errorf("analyzed = %v, want 2", got)
	}

	cycle.collectErr = errors.New("sources down")
	code, _ = doJSON(t, srv, http.MethodPost, "/api/news/collect")
	if code != http.StatusInternalServerError {
		t.Errorf("failed collect status = %d, want 500", code)
	}
}
