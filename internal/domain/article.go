package domain

import "time"

// Sentinel values assigned when a source or the analysis pipeline cannot
// produce a real value.
const (
	CategoryUnclassified = "Unclassified"
	// OffTopicPrefix marks categories excluded from rendered digests. The
	// classification prompt instructs the model to use it for items outside
	// the AI/technology scope.
	OffTopicPrefix = "Off-Topic"

	UnknownAuthor    = "Unknown"
	UnknownSource    = "Unknown"
	SentimentNeutral = "Neutral"
)

// BodyPreviewLimit bounds the stored body preview, in runes.
const BodyPreviewLimit = 500

// Article is the canonical record for one collected item, keyed by its
// normalized URL. Enrichment fields are owned by the analysis pipeline and
// stay empty until it runs; each is independently optional.
type Article struct {
	Title       string
	URL         string
	Body        string
	Author      string
	Source      string
	Language    string
	PublishedAt time.Time

	Category     string
	Summary      string
	Translation  string
	Sentiment    string
	Keywords     []string
	ClusterID    *int
	ClusterLabel string
}

// Enrichment carries the pipeline-owned fields for a store update.
type Enrichment struct {
	Category     string
	Summary      string
	Translation  string
	Sentiment    string
	Keywords     []string
	ClusterID    *int
	ClusterLabel string
}

// Apply copies the enrichment onto the article.
func (e Enrichment) Apply(a *Article) {
	a.Category = e.Category
	a.Summary = e.Summary
	a.Translation = e.Translation
	a.Sentiment = e.Sentiment
	a.Keywords = e.Keywords
	a.ClusterID = e.ClusterID
	a.ClusterLabel = e.ClusterLabel
}

// EnrichmentOf extracts the pipeline-owned fields from an article.
func EnrichmentOf(a Article) Enrichment {
	return Enrichment{
		Category:     a.Category,
		Summary:      a.Summary,
		Translation:  a.Translation,
		Sentiment:    a.Sentiment,
		Keywords:     a.Keywords,
		ClusterID:    a.ClusterID,
		ClusterLabel: a.ClusterLabel,
	}
}

// OffTopic reports whether the article's category excludes it from digests.
func (a Article) OffTopic() bool {
	return len(a.Category) >= len(OffTopicPrefix) &&
		a.Category[:len(OffTopicPrefix)] == OffTopicPrefix
}

// Cluster is an ephemeral per-run grouping. Positions are 1-based indices
// into the batch that was clustered; they are not stable across runs.
type Cluster struct {
	ID        int
	Label     string
	Positions []int
}

// Subscriber is the delivery collaborator's entity, consumed read-only here
// except for the last-delivery stamp.
type Subscriber struct {
	Email       string
	Active      bool
	LastSentAt  time.Time
	Preferences map[string]string
}
