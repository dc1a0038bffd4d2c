package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/openphon/alignd/internal/align"
	"github.com/openphon/alignd/internal/config"
	"github.com/openphon/alignd/internal/dict"
	"github.com/openphon/alignd/internal/engine"
	"github.com/openphon/alignd/internal/langid"
	"github.com/openphon/alignd/internal/persistence"
	"github.com/openphon/alignd/internal/upload"
	"github.com/openphon/alignd/internal/worker"
	"github.com/openphon/alignd/pkg/icron"
	"github.com/openphon/alignd/pkg/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file loaded: %v", err)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		log.Fatal("Failed to open task store %s: %v", cfg.Storage.DBPath, err)
	}

	languages := langid.LoadLanguages(cfg.Storage.AdminRoot)
	detector := langid.NewDetector(languages, cfg.DefaultLanguage)
	cache := dict.NewCache(cfg.Storage.AdminRoot)
	runner := engine.Runner{}

	processor := align.NewProcessor(store, runner, cfg)
	pipeline := upload.NewPipeline(store, cache, detector, cfg)

	alignWorker := worker.NewAlignmentWorker(store, processor, runner, cfg)
	uploadWorker := worker.NewUploadWorker(store, pipeline, cfg)
	alignWorker.Start()
	uploadWorker.Start()

	scheduler := cron.New(cron.WithSeconds())
	_, err = scheduler.AddFunc(cfg.Cleanup.CronExpr, func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Cleanup.RetentionDays)
		expired, err := store.ExpireTasksBefore(context.Background(), cutoff)
		if err != nil {
			log.Error("Retention sweep failed: %v", err)
			return
		}
		if expired > 0 {
			log.Info("Retention sweep expired %d tasks older than %s", expired, cutoff.Format(time.DateOnly))
		}
		// Dictionary reloads happen per batch; drop memoized sets so
		// admin-side dictionary updates become visible.
		cache.Reset()
	})
	if err != nil {
		log.Fatal("Invalid cleanup schedule %q: %v", cfg.Cleanup.CronExpr, err)
	}
	if info, err := icron.GetTriggerInfo(cfg.Cleanup.CronExpr, time.Now()); err == nil {
		log.Info("Cleanup sweep scheduled (%s), next run in %s", info.Expression, info.TimeUntilNext)
	}
	scheduler.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutdown signal received")

	cronCtx := scheduler.Stop()
	uploadWorker.Stop()
	alignWorker.Stop()
	<-cronCtx.Done()

	if err := store.Close(); err != nil {
		log.Error("Failed to close task store: %v", err)
	}
	log.Info("Shutdown complete")
}
