package digest

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"NewsDigest/internal/domain"
)

// Renderer turns an enriched batch into a self-contained HTML digest:
// inline styling only, no external asset references, so the document embeds
// in an email body or serves as a static page. Rendering is deterministic
// for a given input.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer compiles the digest template.
func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("digest").Parse(digestTemplate))}
}

type group struct {
	Category string
	Articles []domain.Article
}

type digestData struct {
	Date   string
	Groups []group
}

// Render groups the batch by category, preserving first-seen category order,
// and renders the digest document. Off-topic records are filtered out before
// grouping.
func (r *Renderer) Render(articles []domain.Article, day time.Time) (string, error) {
	var groups []group
	index := map[string]int{}

	for _, article := range articles {
		if article.OffTopic() {
			continue
		}
		category := article.Category
		if category == "" {
			category = domain.CategoryUnclassified
		}
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, group{Category: category})
		}
		groups[i].Articles = append(groups[i].Articles, article)
	}

	var b strings.Builder
	err := r.tmpl.Execute(&b, digestData{
		Date:   day.Format("2006-01-02"),
		Groups: groups,
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return b.String(), nil
}

// Subject returns the digest's mail subject line for a given day.
func Subject(day time.Time) string {
	return fmt.Sprintf("AI & Tech News Digest (%s)", day.Format("2006-01-02"))
}

const digestTemplate = `<html>
<head></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #2c3e50;">
  <h1>AI &amp; Tech News Digest ({{.Date}})</h1>
{{- range .Groups}}
  <div style="margin-bottom: 20px;">
    <h2 style="color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 5px;">{{.Category}}</h2>
{{- range .Articles}}
    <div style="margin: 10px 0; padding: 10px; background-color: #f8f9fa; border-radius: 5px;">
      <div style="font-weight: bold; margin-bottom: 5px;">
        <a href="{{.URL}}" style="color: #2c3e50; text-decoration: none;">{{.Title}}</a>
      </div>
      <div style="color: #34495e;">{{.Summary}}</div>
{{- if .ClusterLabel}}
      <div style="color: #7f8c8d; font-size: 0.9em;">Topic: {{.ClusterLabel}}</div>
{{- end}}
      <div style="color: #7f8c8d; font-size: 0.9em; margin-top: 5px;">
        Source: {{.Source}} | Published: {{.PublishedAt.Format "2006-01-02 15:04"}} | Sentiment: {{.Sentiment}}
      </div>
    </div>
{{- end}}
  </div>
{{- end}}
  <div style="margin-top: 20px; font-size: 0.9em; color: #7f8c8d;">
    <p>This digest is sent automatically by NewsDigest.</p>
    <p>Reply to this email to unsubscribe.</p>
  </div>
</body>
</html>
`
