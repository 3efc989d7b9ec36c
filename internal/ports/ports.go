package ports

import (
	"context"
	"time"

	"NewsDigest/internal/domain"
)

// Source pulls draft articles from one upstream provider. Implementations
// never fail the batch for a single malformed entry and return an empty
// slice (with an error for the orchestrator to log) on total fetch failure.
type Source interface {
	Name() string
	Collect(ctx context.Context, cutoff time.Time) ([]domain.Article, error)
}

// AdmitResult signals the outcome of a store admission. A duplicate is an
// expected condition, not an error.
type AdmitResult int

const (
	AdmitInserted AdmitResult = iota
	AdmitDuplicate
)

// ArticleStore persists canonical articles keyed by normalized URL and lets
// the analysis pipeline read recent batches and write enrichment back.
type ArticleStore interface {
	Admit(ctx context.Context, article domain.Article) (AdmitResult, error)
	Recent(ctx context.Context, since time.Time) ([]domain.Article, error)
	ByURL(ctx context.Context, url string) (domain.Article, error)
	Update(ctx context.Context, url string, enrichment domain.Enrichment) error
}

// SubscriberStore exposes the delivery collaborator's subscriber records.
type SubscriberStore interface {
	Active(ctx context.Context) ([]domain.Subscriber, error)
	MarkDelivered(ctx context.Context, email string, at time.Time) error
}

// TextGenerator is the external text-generation capability: one prompt in,
// one free-text completion out. Treated as unreliable; callers degrade on
// error rather than propagate.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// MailSender hands a rendered digest to the mail transport for one recipient.
type MailSender interface {
	Send(ctx context.Context, recipient, subject, htmlBody string) error
}
