package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/store"
	"NewsDigest/internal/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ArticleReader is the read surface the HTTP layer needs from a store.
type ArticleReader interface {
	List(ctx context.Context, filter store.ListFilter) ([]domain.Article, error)
	Recent(ctx context.Context, since time.Time) ([]domain.Article, error)
}

// CycleRunner exposes the ad hoc pipeline triggers.
type CycleRunner interface {
	Collect(ctx context.Context) (usecase.CollectResult, error)
	Analyze(ctx context.Context) ([]domain.Article, error)
}

// Server is the read-mostly HTTP boundary over the article store plus two
// manual pipeline triggers for operators.
type Server struct {
	articles ArticleReader
	cycle    CycleRunner
	logger   *slog.Logger
	engine   *gin.Engine
}

func NewServer(articles ArticleReader, cycle CycleRunner, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		articles: articles,
		cycle:    cycle,
		logger:   logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())

	news := s.engine.Group("/api/news")
	news.GET("", s.listNews)
	news.GET("/today", s.todayNews)
	news.GET("/clusters", s.listClusters)
	news.GET("/summary", s.summary)
	news.POST("/collect", s.triggerCollect)
	news.POST("/analyze", s.triggerAnalyze)

	return s
}

// Handler exposes the router for http.Server wiring and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run blocks serving HTTP until the listener fails or the context ends.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type articleResponse struct {
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	Author       string    `json:"author,omitempty"`
	Source       string    `json:"source"`
	Language     string    `json:"language,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	Category     string    `json:"category,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	Translation  string    `json:"translation,omitempty"`
	Sentiment    string    `json:"sentiment,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	ClusterID    *int      `json:"cluster_id,omitempty"`
	ClusterLabel string    `json:"cluster_label,omitempty"`
}

func toResponse(a domain.Article) articleResponse {
	return articleResponse{
		Title:        a.Title,
		URL:          a.URL,
		Author:       a.Author,
		Source:       a.Source,
		Language:     a.Language,
		PublishedAt:  a.PublishedAt,
		Category:     a.Category,
		Summary:      a.Summary,
		Translation:  a.Translation,
		Sentiment:    a.Sentiment,
		Keywords:     a.Keywords,
		ClusterID:    a.ClusterID,
		ClusterLabel: a.ClusterLabel,
	}
}

func toResponses(articles []domain.Article) []articleResponse {
	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, toResponse(a))
	}
	return out
}

func (s *Server) listNews(c *gin.Context) {
	filter := store.ListFilter{
		Category:     c.Query("category"),
		ClusterLabel: c.Query("cluster"),
		Limit:        defaultListLimit,
	}
	if raw := c.Query("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be a non-negative integer"})
			return
		}
		filter.Skip = skip
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		filter.Limit = limit
	}

	articles, err := s.articles.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "list articles", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(articles), "articles": toResponses(articles)})
}

func (s *Server) todayNews(c *gin.Context) {
	articles, err := s.articles.Recent(c.Request.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		s.fail(c, "list today", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(articles), "articles": toResponses(articles)})
}

type clusterResponse struct {
	ID       int               `json:"id"`
	Label    string            `json:"label,omitempty"`
	Articles []articleResponse `json:"articles"`
}

func (s *Server) listClusters(c *gin.Context) {
	articles, err := s.articles.Recent(c.Request.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		s.fail(c, "list clusters", err)
		return
	}

	// Group by cluster id preserving first-seen order; unclustered
	// articles are left out.
	order := []int{}
	groups := map[int]*clusterResponse{}
	for _, a := range articles {
		if a.ClusterID == nil {
			continue
		}
		id := *a.ClusterID
		group, ok := groups[id]
		if !ok {
			group = &clusterResponse{ID: id, Label: a.ClusterLabel}
			groups[id] = group
			order = append(order, id)
		}
		group.Articles = append(group.Articles, toResponse(a))
	}
	out := make([]clusterResponse, 0, len(order))
	for _, id := range order {
		out = append(out, *groups[id])
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "clusters": out})
}

// summary reports window statistics. An empty window is a 404 so callers can
// tell "nothing collected yet" apart from a server fault.
func (s *Server) summary(c *gin.Context) {
	articles, err := s.articles.Recent(c.Request.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		s.fail(c, "summarize window", err)
		return
	}
	if len(articles) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no articles in the current window"})
		return
	}

	categories := map[string]int{}
	sentiments := map[string]int{}
	analyzed := 0
	for _, a := range articles {
		categories[a.Category]++
		if a.Sentiment != "" {
			sentiments[a.Sentiment]++
		}
		if a.Summary != "" {
			analyzed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":      len(articles),
		"analyzed":   analyzed,
		"categories": categories,
		"sentiments": sentiments,
	})
}

func (s *Server) triggerCollect(c *gin.Context) {
	result, err := s.cycle.Collect(c.Request.Context())
	if err != nil {
		s.fail(c, "collect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"collected":  result.Collected,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
	})
}

func (s *Server) triggerAnalyze(c *gin.Context) {
	batch, err := s.cycle.Analyze(c.Request.Context())
	if err != nil {
		s.fail(c, "analyze", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyzed": len(batch)})
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	if s.logger != nil {
		s.logger.Error("request failed", "op", op, "error", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
