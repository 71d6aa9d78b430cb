package main

import (
	"log"
	"os"

	"github.com/noah-isme/watch-api/internal/repository"
	"github.com/noah-isme/watch-api/pkg/config"
	"github.com/noah-isme/watch-api/pkg/database"
	"github.com/noah-isme/watch-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	cli := commandLine{
		db:     db.DB,
		users:  repository.NewUserRepository(db),
		logger: logr,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logr.Sugar().Errorw("command failed", "error", err)
		}
		os.Exit(1)
	}
}
