package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/noah-isme/watch-api/pkg/config"
	"github.com/noah-isme/watch-api/pkg/jobs"
	"github.com/noah-isme/watch-api/pkg/logger"
)

func main() {
	once := flag.Bool("once", false, "fire a single purge and exit")
	dryRun := flag.Bool("dry-run", false, "only count eligible cases")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Cron.Secret == "" || cfg.Cron.TargetURL == "" {
		logr.Sugar().Fatalw("CRON_SECRET and CRON_TARGET_URL are required")
	}

	t := newTrigger(cfg.Cron.TargetURL, cfg.Cron.Secret, cfg.Cron.Timeout, *dryRun, logr)
	scheduler := jobs.NewScheduler("purge-old-cases", cfg.Cron.Schedule, t.fire, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := scheduler.RunOnce(ctx); err != nil {
			logr.Sugar().Errorw("purge trigger failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := scheduler.Start(ctx); err != nil {
		logr.Sugar().Fatalw("failed to start scheduler", "error", err)
	}
	if next := scheduler.NextRun(); next != nil {
		logr.Sugar().Infow("next purge scheduled", "at", next)
	}
	<-ctx.Done()
	scheduler.Stop()
}
