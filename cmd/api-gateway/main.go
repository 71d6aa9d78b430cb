package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/watch-api/api/swagger"
	"github.com/noah-isme/watch-api/internal/handler"
	"github.com/noah-isme/watch-api/internal/middleware"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	"github.com/noah-isme/watch-api/internal/service"
	"github.com/noah-isme/watch-api/pkg/cache"
	"github.com/noah-isme/watch-api/pkg/config"
	"github.com/noah-isme/watch-api/pkg/database"
	"github.com/noah-isme/watch-api/pkg/jobs"
	"github.com/noah-isme/watch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/watch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/watch-api/pkg/middleware/requestid"
	securemiddleware "github.com/noah-isme/watch-api/pkg/middleware/secure"
	"github.com/noah-isme/watch-api/pkg/storage"
)

// @title Discipline Office API
// @version 1.0.0
// @description Case records with soft delete, a retention archive and backup-before-purge.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var redisClient *redis.Client
	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, "watch", logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Archive.StatsCacheTTL, logr, true)
	}

	backupStore, err := storage.NewLocalStorage(cfg.Archive.BackupDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare backup directory", "error", err)
	}
	uploadStore, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare attachment directory", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	caseRepo := repository.NewCaseRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	searchFields, err := models.ParseSearchFields(cfg.Listing.SearchFields)
	if err != nil {
		logr.Sugar().Fatalw("invalid CASES_SEARCH_FIELDS", "error", err)
	}
	caseSvc := service.NewCaseService(caseRepo, auditRepo, auditRepo, validate, logr, service.CaseListingConfig{
		PageSize:     cfg.Listing.PageSize,
		MaxPageSize:  cfg.Listing.MaxPageSize,
		SearchFields: searchFields,
	})
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr)
	lifecycleSvc := service.NewLifecycleService(caseRepo, auditRepo, cacheSvc, metricsSvc, logr)
	archiveSvc := service.NewArchiveService(caseRepo, cacheSvc, auditRepo, logr, cfg.Archive.RetentionDays, cfg.Archive.StatsCacheTTL)
	backupSvc := service.NewBackupService(backupStore, logr)

	attachmentSvc := service.NewAttachmentService(attachmentRepo, caseRepo, uploadStore, signer, auditRepo, metricsSvc, logr, service.AttachmentServiceConfig{
		MaxFileSize:  cfg.Attachments.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Attachments.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	cleanupQueue := jobs.NewQueue("attachment-cleanup", attachmentSvc.HandleCleanup, jobs.QueueConfig{
		Workers:    cfg.Attachments.CleanupWorkers,
		MaxRetries: cfg.Attachments.CleanupRetries,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, err error) {
			metricsSvc.RecordCleanupFailure()
		},
	})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()
	attachmentSvc.UseCleanupQueue(cleanupQueue)

	purgeSvc := service.NewPurgeService(caseRepo, backupSvc, attachmentSvc, auditRepo, cacheSvc, metricsSvc, logr, cfg.Archive.RetentionDays, cfg.Archive.PurgeBatch)

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo != nil {
		checks["cache"] = handler.PingFunc(cacheRepo.Ping)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(securemiddleware.Headers(securemiddleware.Options{HSTS: cfg.Env == config.EnvProduction, DocsPrefix: "/docs"}))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.AuditContext())

	registerRoutes(r, handlers{
		auth:        handler.NewAuthHandler(authSvc),
		cases:       handler.NewCaseHandler(caseSvc),
		lifecycle:   handler.NewLifecycleHandler(lifecycleSvc, purgeSvc),
		archive:     handler.NewArchiveHandler(archiveSvc),
		attachments: handler.NewAttachmentHandler(attachmentSvc),
		backups:     handler.NewBackupHandler(backupSvc),
		cron:        handler.NewCronHandler(purgeSvc, logr),
		metrics:     handler.NewMetricsHandler(metricsSvc, checks),
		users:       handler.NewUserHandler(userSvc),
	}, routeOptions{
		apiPrefix:  cfg.APIPrefix,
		cronSecret: cfg.Cron.Secret,
		docs:       cfg.Env != config.EnvProduction,
		validator:  authSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "retention_days", cfg.Archive.RetentionDays)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logr.Sugar().Errorw("server failed", "error", err)
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	// a scheduled purge in flight gets the full CRON_TIMEOUT to finish its current case
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Cron.Timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
