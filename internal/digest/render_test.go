package digest

import (
	"strings"
	"testing"
	"time"

	"NewsDigest/internal/domain"
)

func TestRenderGroupsByFirstSeenCategory(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{Title: "A", URL: "https://e/a", Category: "Policy", Summary: "s1", Source: "x", Sentiment: "Neutral", PublishedAt: day},
		{Title: "B", URL: "https://e/b", Category: "Research", Summary: "s2", Source: "x", Sentiment: "Neutral", PublishedAt: day},
		{Title: "C", URL: "https://e/c", Category: "Policy", Summary: "s3", Source: "x", Sentiment: "Neutral", PublishedAt: day},
	}

	html, err := NewRenderer().Render(articles, day)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	policyAt := strings.Index(html, ">Policy</h2>")
	researchAt := strings.Index(html, ">Research</h2>")
	if policyAt < 0 || researchAt < 0 {
		t.Fatalf("missing category headers:\n%s", html)
	}
	if policyAt > researchAt {
		t.Fatal("categories must keep first-seen order")
	}
	if strings.Count(html, ">Policy</h2>") != 1 {
		t.Fatal("category rendered more than once")
	}

	for _, want := range []string{"A", "B", "C", "https://e/a", "2026-08-24"} {
		if !strings.Contains(html, want) {
			t.Fatalf("digest missing %q", want)
		}
	}
}

func TestRenderFiltersOffTopic(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{Title: "Keep", URL: "https://e/k", Category: "Research", PublishedAt: day},
		{Title: "Drop", URL: "https://e/d", Category: domain.OffTopicPrefix + ": Sports", PublishedAt: day},
	}

	html, err := NewRenderer().Render(articles, day)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if !strings.Contains(html, "Keep") {
		t.Fatal("on-topic article missing")
	}
	if strings.Contains(html, "Drop") {
		t.Fatal("off-topic article must be filtered before grouping")
	}
}

func TestRenderSelfContained(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	html, err := NewRenderer().Render([]domain.Article{
		{Title: "A", URL: "https://e/a", Category: "Policy", PublishedAt: day},
	}, day)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	for _, forbidden := range []string{"<link", "<script", "src="} {
		if strings.Contains(html, forbidden) {
			t.Fatalf("digest must not reference external assets, found %q", forbidden)
		}
	}
}

func TestRenderEscapesContent(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	html, err := NewRenderer().Render([]domain.Article{
		{Title: "<script>alert(1)</script>", URL: "https://e/x", Category: "Policy", PublishedAt: day},
	}, day)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("title not escaped")
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	if got := Subject(day); got != "AI & Tech News Digest (2026-08-24)" {
		t.Fatalf("unexpected subject: %q", got)
	}
}
