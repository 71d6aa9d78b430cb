package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/service"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/logger"
)

type scheduledPurger interface {
	PurgeExpired(ctx context.Context, opts service.PurgeOptions, actor *models.JWTClaims) (*models.PurgeReport, error)
}

// CronHandler is the entry point for the external purge trigger.
type CronHandler struct {
	purger scheduledPurger
	logger *zap.Logger
}

// NewCronHandler constructs the handler.
func NewCronHandler(purger scheduledPurger, logger *zap.Logger) *CronHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronHandler{purger: purger, logger: logger}
}

// PurgeOldCases godoc
// @Summary Purge cases past retention
// @Description Backs up and removes every archived case older than the retention window. Per-case failures are reported and do not abort the run.
// @Tags Cron
// @Produce json
// @Param X-Cron-Secret header string true "Shared cron secret"
// @Param dryRun query bool false "Only count eligible cases"
// @Success 200 {object} dto.CronPurgeResponse
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} dto.CronPurgeResponse
// @Router /cron/purge-old-cases [get]
func (h *CronHandler) PurgeOldCases(c *gin.Context) {
	if h.purger == nil {
		c.JSON(http.StatusInternalServerError, dto.CronPurgeResponse{Message: "purge service not configured"})
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		claims = models.SystemActor()
	}
	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))
	log := logger.FromContext(c, h.logger).With(zap.String("actor", claims.UserID), zap.Bool("dry_run", dryRun))
	log.Info("scheduled purge triggered")

	report, err := h.purger.PurgeExpired(c.Request.Context(), service.PurgeOptions{DryRun: dryRun}, claims)
	if err != nil {
		appErr := appErrors.FromError(err)
		_ = c.Error(err)
		log.Error("scheduled purge aborted", zap.String("code", appErr.Code), zap.Error(err))
		c.JSON(appErr.Status, dto.CronPurgeResponse{Message: appErr.Message})
		return
	}

	if report.Errors > 0 {
		log.Warn("scheduled purge finished with failures", zap.Int("count", report.Count), zap.Int("errors", report.Errors))
	}
	c.JSON(http.StatusOK, dto.CronPurgeResponse{
		Success:  true,
		Count:    report.Count,
		Errors:   report.Errors,
		Skipped:  report.Skipped,
		DryRun:   report.DryRun,
		Message:  purgeMessage(report),
		Failures: report.Failures,
	})
}

func purgeMessage(report *models.PurgeReport) string {
	if report.DryRun {
		return fmt.Sprintf("%d cases eligible for purge", report.Count)
	}
	if report.Errors > 0 {
		return fmt.Sprintf("purged %d cases, %d failed", report.Count, report.Errors)
	}
	return fmt.Sprintf("purged %d cases", report.Count)
}
