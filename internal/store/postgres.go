package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

// PostgresStore persists canonical articles in Postgres. Admission relies on
// the unique url constraint with ON CONFLICT DO NOTHING, so the database is
// the single admission path across concurrent writers.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const articleColumns = "url, title, body, author, source, language, published_at, " +
	"category, summary, translation, sentiment, keywords, cluster_id, cluster_label"

// Admit inserts the article unless its normalized URL already exists.
func (s *PostgresStore) Admit(ctx context.Context, article domain.Article) (ports.AdmitResult, error) {
	query, args, err := s.builder.
		Insert("articles").
		Columns("url", "title", "body", "author", "source", "language", "published_at").
		Values(
			domain.NormalizeURL(article.URL),
			article.Title,
			article.Body,
			article.Author,
			article.Source,
			article.Language,
			article.PublishedAt,
		).
		Suffix("ON CONFLICT (url) DO NOTHING").
		ToSql()
	if err != nil {
		return ports.AdmitDuplicate, fmt.Errorf("build admit query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return ports.AdmitDuplicate, fmt.Errorf("admit article: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return ports.AdmitDuplicate, fmt.Errorf("admit result: %w", err)
	}
	if inserted == 0 {
		return ports.AdmitDuplicate, nil
	}
	return ports.AdmitInserted, nil
}

// Recent returns articles published at or after since, newest first.
func (s *PostgresStore) Recent(ctx context.Context, since time.Time) ([]domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns).
		From("articles").
		Where(sq.GtOrEq{"published_at": since}).
		OrderBy("published_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}
	return s.queryArticles(ctx, query, args...)
}

// ByURL looks up one article by its identity.
func (s *PostgresStore) ByURL(ctx context.Context, url string) (domain.Article, error) {
	query, args, err := s.builder.
		Select(articleColumns).
		From("articles").
		Where(sq.Eq{"url": domain.NormalizeURL(url)}).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build lookup query: %w", err)
	}

	articles, err := s.queryArticles(ctx, query, args...)
	if err != nil {
		return domain.Article{}, err
	}
	if len(articles) == 0 {
		return domain.Article{}, ErrNotFound
	}
	return articles[0], nil
}

// Update writes enrichment fields onto an existing article.
func (s *PostgresStore) Update(ctx context.Context, url string, enrichment domain.Enrichment) error {
	var clusterID sql.NullInt64
	if enrichment.ClusterID != nil {
		clusterID = sql.NullInt64{Int64: int64(*enrichment.ClusterID), Valid: true}
	}

	query, args, err := s.builder.
		Update("articles").
		Set("category", enrichment.Category).
		Set("summary", enrichment.Summary).
		Set("translation", enrichment.Translation).
		Set("sentiment", enrichment.Sentiment).
		Set("keywords", pq.StringArray(enrichment.Keywords)).
		Set("cluster_id", clusterID).
		Set("cluster_label", enrichment.ClusterLabel).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"url": domain.NormalizeURL(url)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List supports the HTTP boundary's filtered pagination over stored articles.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]domain.Article, error) {
	q := s.builder.
		Select(articleColumns).
		From("articles").
		OrderBy("published_at DESC")

	if filter.Category != "" {
		q = q.Where(sq.Eq{"category": filter.Category})
	}
	if filter.ClusterLabel != "" {
		q = q.Where(sq.Eq{"cluster_label": filter.ClusterLabel})
	}
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	if filter.Skip > 0 {
		q = q.Offset(uint64(filter.Skip))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	return s.queryArticles(ctx, query, args...)
}

func (s *PostgresStore) queryArticles(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		var (
			article   domain.Article
			author    sql.NullString
			language  sql.NullString
			category  sql.NullString
			summary   sql.NullString
			transl    sql.NullString
			sentiment sql.NullString
			keywords  pq.StringArray
			clusterID sql.NullInt64
			label     sql.NullString
		)
		err := rows.Scan(
			&article.URL, &article.Title, &article.Body, &author, &article.Source,
			&language, &article.PublishedAt, &category, &summary, &transl,
			&sentiment, &keywords, &clusterID, &label,
		)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		article.Author = author.String
		article.Language = language.String
		article.Category = category.String
		article.Summary = summary.String
		article.Translation = transl.String
		article.Sentiment = sentiment.String
		article.Keywords = keywords
		article.ClusterLabel = label.String
		if clusterID.Valid {
			id := int(clusterID.Int64)
			article.ClusterID = &id
		}
		out = append(out, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation; callers that race the ON CONFLICT path can map it to a
// duplicate signal.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
