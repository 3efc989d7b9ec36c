package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/ports"
)

const defaultConcurrency = 4

// Pipeline runs the fixed enrichment sequence over one batch of articles:
// classify, enrich metadata, summarize/translate, cluster. Classification
// and clustering invoke the text-generation capability once per batch;
// summarization once per article under a bounded concurrency window. Any
// capability failure degrades the affected stage and never aborts the
// stages after it.
type Pipeline struct {
	gen         ports.TextGenerator
	store       ports.ArticleStore
	concurrency int
	logger      *slog.Logger
}

// NewPipeline wires the capability, the store enrichment is committed to,
// and the stage-3 concurrency window.
func NewPipeline(gen ports.TextGenerator, store ports.ArticleStore, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Pipeline{gen: gen, store: store, concurrency: concurrency, logger: logger}
}

// Process enriches the batch in place and commits each article's enrichment
// to the store. The returned batch carries whatever enrichment succeeded;
// fields from degraded stages keep their sentinels.
func (p *Pipeline) Process(ctx context.Context, batch []domain.Article) []domain.Article {
	if len(batch) == 0 {
		return batch
	}

	p.classify(ctx, batch)
	p.enrichMetadata(batch)
	p.summarize(ctx, batch)
	p.cluster(ctx, batch)

	p.commit(ctx, batch)
	return batch
}

// classify issues one batch prompt and applies the parsed category lines.
// Articles never referenced by a parseable line keep the unclassified
// sentinel.
func (p *Pipeline) classify(ctx context.Context, batch []domain.Article) {
	for i := range batch {
		batch[i].Category = domain.CategoryUnclassified
	}
	if p.gen == nil {
		return
	}

	reply, err := p.gen.Generate(ctx, classifyPrompt(batch))
	if err != nil {
		p.warn("classification call failed", "error", err)
		return
	}

	for pos, c := range ParseClassifications(reply, len(batch)) {
		batch[pos-1].Category = c.Category
	}
}

// enrichMetadata is the pure local stage: sentinel author/source and a
// bounded body preview.
func (p *Pipeline) enrichMetadata(batch []domain.Article) {
	for i := range batch {
		if strings.TrimSpace(batch[i].Author) == "" {
			batch[i].Author = domain.UnknownAuthor
		}
		if strings.TrimSpace(batch[i].Source) == "" {
			batch[i].Source = domain.UnknownSource
		}
		batch[i].Body = Truncate(batch[i].Body, domain.BodyPreviewLimit)
	}
}

// summarize runs the per-article capability calls under the concurrency
// window. A malformed or failed reply falls back to the truncated body with
// an empty translation; sentiment and keywords degrade independently.
func (p *Pipeline) summarize(ctx context.Context, batch []domain.Article) {
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i := range batch {
		wg.Add(1)
		go func(article *domain.Article) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			p.summarizeOne(ctx, article)
		}(&batch[i])
	}
	wg.Wait()
}

func (p *Pipeline) summarizeOne(ctx context.Context, article *domain.Article) {
	article.Summary = Truncate(article.Body, domain.BodyPreviewLimit)
	article.Translation = ""
	article.Sentiment = domain.SentimentNeutral

	if p.gen == nil {
		return
	}

	reply, err := p.gen.Generate(ctx, summaryPrompt(*article))
	if err != nil {
		p.warn("summarize call failed", "url", article.URL, "error", err)
	} else if summary, translation, ok := SplitSummary(reply); ok {
		article.Summary = summary
		article.Translation = translation
	}

	reply, err = p.gen.Generate(ctx, sentimentPrompt(*article))
	if err != nil {
		p.warn("sentiment call failed", "url", article.URL, "error", err)
		return
	}
	article.Sentiment, article.Keywords = ParseSentimentKeywords(reply)
}

// cluster issues one batch prompt and assigns group ids and labels by
// position. Articles absent from every parsed group stay unclustered, which
// is expected rather than an error.
func (p *Pipeline) cluster(ctx context.Context, batch []domain.Article) {
	if p.gen == nil {
		return
	}

	reply, err := p.gen.Generate(ctx, clusterPrompt(batch))
	if err != nil {
		p.warn("clustering call failed", "error", err)
		return
	}

	for _, cluster := range ParseClusters(reply, len(batch)) {
		for _, pos := range cluster.Positions {
			id := cluster.ID
			batch[pos-1].ClusterID = &id
			batch[pos-1].ClusterLabel = cluster.Label
		}
	}
}

// commit writes each article's enrichment back to the store. Partially
// enriched records are committed as-is; a vanished record is logged, not
// retried.
func (p *Pipeline) commit(ctx context.Context, batch []domain.Article) {
	if p.store == nil {
		return
	}
	for _, article := range batch {
		if err := p.store.Update(ctx, article.URL, domain.EnrichmentOf(article)); err != nil {
			p.warn("enrichment commit failed", "url", article.URL, "error", err)
		}
	}
}

func classifyPrompt(batch []domain.Article) string {
	var b strings.Builder
	b.WriteString("Classify each of the following articles into a short topical category ")
	b.WriteString("(for example Policy, Research, Industry, Products). Use the category ")
	b.WriteString("prefix \"" + domain.OffTopicPrefix + "\" for items unrelated to AI or technology.\n")
	b.WriteString("Reply with one line per article, formatted exactly as:\n")
	b.WriteString("<position>: <category> - <reason>\n\n")
	for i, article := range batch {
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, article.Title, Truncate(article.Body, 200))
	}
	return b.String()
}

func summaryPrompt(article domain.Article) string {
	return fmt.Sprintf(
		"Summarize the following article in 3-4 sentences, then translate the summary "+
			"into Korean. Reply exactly as: <summary> / <translation>\n\nTitle: %s\n\n%s",
		article.Title, article.Body,
	)
}

func sentimentPrompt(article domain.Article) string {
	return fmt.Sprintf(
		"Give the overall sentiment of this article (Positive, Neutral or Negative) and "+
			"its five most important keywords. Reply exactly as: "+
			"<sentiment> | <keyword>, <keyword>, ...\n\nTitle: %s\n\n%s",
		article.Title, article.Body,
	)
}

func clusterPrompt(batch []domain.Article) string {
	var b strings.Builder
	b.WriteString("Group the following articles by shared topic. For each group reply with ")
	b.WriteString("a header line \"Cluster <n>: <label>\" followed by one line per member ")
	b.WriteString("containing its number. Leave articles that fit no group out entirely.\n\n")
	for i, article := range batch {
		fmt.Fprintf(&b, "%d. %s\n", i+1, article.Title)
	}
	return b.String()
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
