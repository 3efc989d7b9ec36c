package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/logging"
)

// One-shot collection for cron jobs and manual runs. By default it gathers
// and stores the current batch; flags add analysis, export and a full digest
// send on top.
func main() {
	analyzeFlag := flag.Bool("analyze", false, "run the enrichment pipeline after collecting")
	exportFlag := flag.Bool("export", false, "write the collected batch to the data directory")
	sendFlag := flag.Bool("send", false, "run the full cycle including digest delivery")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if *sendFlag {
		if err := application.RunOnce(ctx); err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}
		return
	}
	defer application.Close()

	cycle := application.Cycle()
	result, err := cycle.Collect(ctx)
	if err != nil {
		logger.Error("collection failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("collected %d articles (%d new, %d duplicates)\n",
		result.Collected, result.Inserted, result.Duplicates)

	if *analyzeFlag {
		batch, err := cycle.Analyze(ctx)
		if err != nil {
			logger.Error("analysis failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("analyzed %d articles\n", len(batch))
	}

	if *exportFlag {
		path, err := cycle.Export(ctx, time.Now().In(cfg.Scheduler.Location()))
		if err != nil {
			logger.Error("export failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("batch written to %s\n", path)
	}
}
