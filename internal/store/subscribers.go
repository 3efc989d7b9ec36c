package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// PostgresSubscribers reads the subscriber collaborator's table. This core
// only lists active subscribers and stamps successful deliveries; all other
// subscriber management lives outside it.
type PostgresSubscribers struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.SubscriberStore = (*PostgresSubscribers)(nil)

// NewPostgresSubscribers wires a sql.DB handle.
func NewPostgresSubscribers(db *sql.DB) *PostgresSubscribers {
	return &PostgresSubscribers{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Active lists subscribers with the active flag set.
func (s *PostgresSubscribers) Active(ctx context.Context) ([]domain.Subscriber, error) {
	query, args, err := s.builder.
		Select("email", "is_active", "last_sent_at", "preferences").
		From("subscribers").
		Where(sq.Eq{"is_active": true}).
		OrderBy("email").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscribers query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var (
			sub      domain.Subscriber
			lastSent sql.NullTime
			prefs    sql.NullString
		)
		if err := rows.Scan(&sub.Email, &sub.Active, &lastSent, &prefs); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if lastSent.Valid {
			sub.LastSentAt = lastSent.Time
		}
		if prefs.Valid && prefs.String != "" {
			// Preferences are a free-form JSON object; a bad blob degrades
			// to no preferences rather than failing the listing.
			_ = json.Unmarshal([]byte(prefs.String), &sub.Preferences)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// MarkDelivered stamps a successful delivery for one subscriber.
func (s *PostgresSubscribers) MarkDelivered(ctx context.Context, email string, at time.Time) error {
	query, args, err := s.builder.
		Update("subscribers").
		Set("last_sent_at", at).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delivery stamp: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("stamp delivery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stamp result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MemorySubscribers is the in-memory SubscriberStore used without a database
// and in tests.
type MemorySubscribers struct {
	mu   sync.Mutex
	subs map[string]domain.Subscriber
}

var _ ports.SubscriberStore = (*MemorySubscribers)(nil)

// NewMemorySubscribers seeds the store with the given subscribers.
func NewMemorySubscribers(subs ...domain.Subscriber) *MemorySubscribers {
	m := &MemorySubscribers{subs: map[string]domain.Subscriber{}}
	for _, sub := range subs {
		m.subs[sub.Email] = sub
	}
	return m
}

// Active lists subscribers with the active flag set.
func (m *MemorySubscribers) Active(ctx context.Context) ([]domain.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Subscriber
	for _, sub := range m.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}

// MarkDelivered stamps a successful delivery for one subscriber.
func (m *MemorySubscribers) MarkDelivered(ctx context.Context, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[email]
	if !ok {
		return ErrNotFound
	}
	sub.LastSentAt = at
	m.subs[email] = sub
	return nil
}

// LastSentAt reports the current stamp for one subscriber; test helper.
func (m *MemorySubscribers) LastSentAt(email string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[email].LastSentAt
}
