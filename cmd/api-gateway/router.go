package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/watch-api/internal/handler"
	"github.com/noah-isme/watch-api/internal/middleware"
	"github.com/noah-isme/watch-api/internal/models"
)

type handlers struct {
	auth        *handler.AuthHandler
	cases       *handler.CaseHandler
	lifecycle   *handler.LifecycleHandler
	archive     *handler.ArchiveHandler
	attachments *handler.AttachmentHandler
	backups     *handler.BackupHandler
	cron        *handler.CronHandler
	metrics     *handler.MetricsHandler
	users       *handler.UserHandler
}

type routeOptions struct {
	apiPrefix  string
	cronSecret string
	docs       bool
	validator  middleware.TokenValidator
}

func registerRoutes(r *gin.Engine, h handlers, opts routeOptions) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	if opts.docs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.GET("/cron/purge-old-cases", middleware.CronSecret(opts.cronSecret), h.cron.PurgeOldCases)

	api := r.Group(opts.apiPrefix)
	api.POST("/auth/login", h.auth.Login)
	api.POST("/auth/refresh", h.auth.Refresh)

	secured := api.Group("", middleware.JWT(opts.validator))
	secured.POST("/auth/logout", h.auth.Logout)
	secured.GET("/auth/me", h.auth.Me)

	officer := middleware.RequireRoles(models.RoleAdmin)

	secured.GET("/cases", h.cases.List)
	secured.POST("/cases", h.cases.Create)
	secured.GET("/cases/archive", h.archive.List)
	secured.GET("/cases/archive/stats", h.archive.Stats)
	secured.GET("/cases/archive/export", h.archive.Export)
	secured.GET("/cases/:id", h.cases.Get)
	secured.GET("/cases/:id/history", officer, h.cases.History)
	secured.POST("/cases/:id/delete", officer, h.lifecycle.Delete)
	secured.POST("/cases/:id/restore", officer, h.lifecycle.Restore)
	secured.POST("/cases/:id/purge", officer, h.lifecycle.Purge)
	secured.GET("/cases/:id/attachments", h.attachments.List)
	secured.POST("/cases/:id/attachments", h.attachments.Upload)
	secured.GET("/cases/:id/attachments/:attachmentId/download", h.attachments.Download)
	secured.GET("/backups", officer, h.backups.List)
	secured.GET("/system/metrics", officer, h.metrics.System)

	users := secured.Group("/users", officer)
	users.GET("", h.users.List)
	users.POST("", h.users.Create)
	users.GET("/:id", h.users.Get)
	users.PUT("/:id", h.users.Update)
	users.PATCH("/:id/status", h.users.SetStatus)
}
