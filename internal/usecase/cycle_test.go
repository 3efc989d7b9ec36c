package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"NewsDigest/internal/analyze"
	"NewsDigest/internal/delivery"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/store"
)

type stubCollector struct {
	batch []domain.Article
}

func (s *stubCollector) Run(ctx context.Context, cutoff time.Duration) []domain.Article {
	return s.batch
}

// stageGenerator answers pipeline prompts by stage marker; rules are checked
// in order and the first match wins.
type stageGenerator struct {
	mu    sync.Mutex
	rules []stageRule
	calls int
}

type stageRule struct {
	marker string
	reply  string
}

func (g *stageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	for _, rule := range g.rules {
		if strings.Contains(prompt, rule.marker) {
			return rule.reply, nil
		}
	}
	return "", nil
}

type captureSender struct {
	mu         sync.Mutex
	recipients []string
	subject    string
	body       string
}

func (c *captureSender) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recipients = append(c.recipients, recipient)
	c.subject = subject
	c.body = htmlBody
	return nil
}

// Full run against real store, pipeline, renderer and delivery: two sources
// produce overlapping URLs, the duplicate is dropped, both survivors are
// classified and land in the digest sent to every active subscriber.
func TestCycleRunEndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	articleA := domain.Article{
		Title:       "EU drafts new model rules",
		URL:         "https://example.com/eu-rules",
		Body:        "Lawmakers published a draft framework for frontier systems.",
		Source:      "TechCrunch",
		PublishedAt: now.Add(-2 * time.Hour),
	}
	articleB := domain.Article{
		Title:       "Lab reports protein folding advance",
		URL:         "https://example.org/folding",
		Body:        "A research group improved structure prediction accuracy.",
		Source:      "Nature",
		PublishedAt: now.Add(-5 * time.Hour),
	}
	duplicateA := articleA
	duplicateA.URL = "https://Example.COM/eu-rules?utm_source=feed"

	articles := store.NewMemoryStore()
	gen := &stageGenerator{rules: []stageRule{
		{marker: "Classify each", reply: "1: Policy - regulation news\n2: Research - lab result"},
		{marker: "Group the following", reply: "Cluster 1: Governance\n- 1\nCluster 2: Science\n- 2"},
		{marker: "overall sentiment", reply: "Neutral | ai, policy, research"},
		{marker: "Summarize the following", reply: "A concise recap. / 간결한 요약."},
	}}
	pipeline := analyze.NewPipeline(gen, articles, 2, nil)

	subscribers := store.NewMemorySubscribers(
		domain.Subscriber{Email: "alice@example.com", Active: true},
		domain.Subscriber{Email: "bob@example.com", Active: true},
		domain.Subscriber{Email: "carol@example.com", Active: false},
	)
	sender := &captureSender{}

	cycle := NewCycle(Config{
		Collector: &stubCollector{batch: []domain.Article{articleA, articleB, duplicateA}},
		Store:     articles,
		Enricher:  pipeline,
		Renderer:  digest.NewRenderer(),
		Deliverer: delivery.NewService(subscribers, sender, nil),
		Subject:   digest.Subject,
		Cutoff:    24 * time.Hour,
	})
	cycle.now = func() time.Time { return now }

	if err := cycle.Run(context.Background(), now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := articles.Recent(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d articles, want 2 after dedup", len(stored))
	}
	byURL := map[string]domain.Article{}
	for _, a := range stored {
		byURL[a.URL] = a
	}
	if got := byURL["https://example.com/eu-rules"].Category; got != "Policy" {
		t.Errorf("article A category = %q, want Policy", got)
	}
	if got := byURL["https://example.org/folding"].Category; got != "Research" {
		t.Errorf("article B category = %q, want Research", got)
	}

	if len(sender.recipients) != 2 {
		t.Fatalf("delivered to %d recipients, want 2", len(sender.recipients))
	}
	if sender.subject != digest.Subject(now) {
		t.Errorf("subject = %q", sender.subject)
	}
	for _, want := range []string{"Policy", "Research", "EU drafts new model rules", "A concise recap."} {
		if !strings.Contains(sender.body, want) {
			t.Errorf("digest body missing %q", want)
		}
	}
	for _, email := range []string{"alice@example.com", "bob@example.com"} {
		if subscribers.LastSentAt(email).IsZero() {
			t.Errorf("%s not stamped as delivered", email)
		}
	}
}

func TestCollectCountsOutcomes(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := domain.Article{Title: "One", URL: "https://example.com/a", PublishedAt: now}
	b := domain.Article{Title: "Two", URL: "https://example.com/b", PublishedAt: now}
	articles := store.NewMemoryStore()
	if _, err := articles.Admit(context.Background(), a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cycle := NewCycle(Config{
		Collector: &stubCollector{batch: []domain.Article{a, b}},
		Store:     articles,
	})

	result, err := cycle.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Collected != 2 || result.Inserted != 1 || result.Duplicates != 1 {
		t.Errorf("result = %+v, want collected 2, inserted 1, duplicates 1", result)
	}
}

// An empty window ends the cycle cleanly with nothing rendered or sent.
func TestRunEmptyWindowSkipsDigest(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	cycle := NewCycle(Config{
		Collector: &stubCollector{},
		Store:     store.NewMemoryStore(),
		Renderer:  digest.NewRenderer(),
		Deliverer: delivery.NewService(store.NewMemorySubscribers(), sender, nil),
	})

	if err := cycle.Run(context.Background(), time.Now()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sender.recipients) != 0 {
		t.Errorf("sent %d mails on empty window, want 0", len(sender.recipients))
	}
}
