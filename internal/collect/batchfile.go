package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"NewsDigest/internal/domain"
)

// batchArticle is the wire shape of one canonical article in a batch export.
// Round-tripping through it is lossless for every documented field.
type batchArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	Source      string    `json:"source"`
	Language    string    `json:"language,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// BatchFileName returns the dated export file name for a given day.
func BatchFileName(day time.Time) string {
	return fmt.Sprintf("news_%s.json", day.Format("20060102"))
}

// ExportBatch writes the batch as a JSON array to a dated file under dir,
// creating dir if needed, and returns the written path.
func ExportBatch(dir string, day time.Time, articles []domain.Article) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	records := make([]batchArticle, 0, len(articles))
	for _, a := range articles {
		records = append(records, batchArticle{
			Title:       a.Title,
			URL:         a.URL,
			Body:        a.Body,
			Author:      a.Author,
			Source:      a.Source,
			Language:    a.Language,
			PublishedAt: a.PublishedAt,
		})
	}

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	path := filepath.Join(dir, BatchFileName(day))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write batch file: %w", err)
	}
	return path, nil
}

// ImportBatch reads a batch file previously written by ExportBatch.
func ImportBatch(path string) ([]domain.Article, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var records []batchArticle
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("parse batch file %s: %w", path, err)
	}

	articles := make([]domain.Article, 0, len(records))
	for _, r := range records {
		articles = append(articles, domain.Article{
			Title:       r.Title,
			URL:         r.URL,
			Body:        r.Body,
			Author:      r.Author,
			Source:      r.Source,
			Language:    r.Language,
			PublishedAt: r.PublishedAt,
		})
	}
	return articles, nil
}
