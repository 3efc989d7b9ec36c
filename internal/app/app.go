package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"NewsDigest/internal/analyze"
	"NewsDigest/internal/api"
	"NewsDigest/internal/collect"
	"NewsDigest/internal/config"
	"NewsDigest/internal/delivery"
	"NewsDigest/internal/digest"
	"NewsDigest/internal/llm"
	"NewsDigest/internal/logging"
	"NewsDigest/internal/mail"
	"NewsDigest/internal/ports"
	"NewsDigest/internal/schedule"
	"NewsDigest/internal/source"
	"NewsDigest/internal/store"
	"NewsDigest/internal/usecase"
)

// articleStore is the full surface the application needs from a store; both
// the Postgres and in-memory implementations satisfy it.
type articleStore interface {
	ports.ArticleStore
	api.ArticleReader
}

// Application wires configuration to the daily cycle, the scheduler and the
// HTTP boundary.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	cycle     *usecase.Cycle
	scheduler *schedule.Scheduler
	server    *api.Server
	db        *sql.DB
}

// New builds a runnable application. With no database DSN the article store
// is in-memory and delivery has no recipients; the rest of the pipeline
// works the same.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	var articles articleStore
	var subscribers ports.SubscriberStore
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		app.db = db
		articles = store.NewPostgresStore(db)
		subscribers = store.NewPostgresSubscribers(db)
	} else {
		baseLogger.Warn("no database configured, using in-memory store")
		articles = store.NewMemoryStore()
		subscribers = store.NewMemorySubscribers()
	}

	fetcher := source.NewFetcher(nil)
	sourceCfgs := make([]config.SourceConfig, len(cfg.Sources))
	copy(sourceCfgs, cfg.Sources)
	for i := range sourceCfgs {
		if sourceCfgs[i].MaxItems == 0 {
			sourceCfgs[i].MaxItems = cfg.Collect.MaxPerSource
		}
	}
	sources := source.Build(sourceCfgs, fetcher, logging.Component(baseLogger, "source"))

	orchestrator := collect.NewOrchestrator(
		sources,
		cfg.Collect.AdapterTimeout,
		logging.Component(baseLogger, "collect"),
	)

	var generator ports.TextGenerator
	if cfg.LLM.APIKey != "" {
		generator = llm.NewClient(cfg.LLM)
	} else {
		baseLogger.Warn("no LLM API key configured, analysis will degrade to fallbacks")
	}
	pipeline := analyze.NewPipeline(
		generator,
		articles,
		cfg.LLM.Concurrency,
		logging.Component(baseLogger, "analyze"),
	)

	deliverer := delivery.NewService(
		subscribers,
		mail.NewSMTPSender(cfg.SMTP),
		logging.Component(baseLogger, "delivery"),
	)

	app.cycle = usecase.NewCycle(usecase.Config{
		Collector: orchestrator,
		Store:     articles,
		Enricher:  pipeline,
		Renderer:  digest.NewRenderer(),
		Deliverer: deliverer,
		Subject:   digest.Subject,
		Cutoff:    cfg.Collect.Cutoff(),
		DataDir:   cfg.Collect.DataDir,
		Logger:    logging.Component(baseLogger, "cycle"),
	})

	scheduler, err := schedule.New(
		cfg.Scheduler.FireTime,
		cfg.Scheduler.Location(),
		cfg.Scheduler.PollInterval,
		nil,
		app.cycle.Run,
		logging.Component(baseLogger, "schedule"),
	)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	app.scheduler = scheduler

	app.server = api.NewServer(articles, app.cycle, logging.Component(baseLogger, "api"))

	return app, nil
}

// Run starts the scheduler and the HTTP server and blocks until the context
// ends or the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	schedulerDone := make(chan struct{})
	go func() {
		a.scheduler.Run(ctx)
		close(schedulerDone)
	}()

	a.logger.Info("application started",
		"addr", a.cfg.API.Addr,
		"fire_time", a.cfg.Scheduler.FireTime,
		"timezone", a.cfg.Scheduler.Timezone,
		"sources", len(a.cfg.Sources))

	err := a.server.Run(ctx, a.cfg.API.Addr)

	a.scheduler.Stop()
	select {
	case <-schedulerDone:
	case <-time.After(5 * time.Second):
		a.logger.Warn("scheduler did not stop in time")
	}
	return err
}

// RunOnce executes a single cycle immediately, bypassing the scheduler.
func (a *Application) RunOnce(ctx context.Context) error {
	defer a.Close()
	return a.cycle.Run(ctx, time.Now().In(a.cfg.Scheduler.Location()))
}

// Cycle exposes the use case for ad hoc command wiring.
func (a *Application) Cycle() *usecase.Cycle {
	return a.cycle
}

// Close releases held resources. Safe on a partially built application.
func (a *Application) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
		a.db = nil
	}
}
