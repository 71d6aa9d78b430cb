package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/service"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/response"
)

type archiveService interface {
	RetentionDays() int
	List(ctx context.Context, query service.ArchiveQuery, actor *models.JWTClaims) ([]models.ArchivedCaseView, error)
	Stats(ctx context.Context, actor *models.JWTClaims) (*models.ArchiveStats, error)
	Export(ctx context.Context, query service.ArchiveQuery, format string, actor *models.JWTClaims) (*service.ArchiveReport, error)
}

// ArchiveHandler serves the archive view of soft deleted cases.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(service archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: service}
}

// List godoc
// @Summary List archived cases
// @Description Each entry carries the days left before automatic purge and its warning band.
// @Tags Archive
// @Produce json
// @Security BearerAuth
// @Param type query string false "student, faculty or staff"
// @Param severity query string false "minor or major"
// @Success 200 {object} response.Envelope
// @Router /cases/archive [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "archive service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query service.ArchiveQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{
		"retentionDays": h.service.RetentionDays(),
	})
}

// Stats godoc
// @Summary Archive band counts
// @Tags Archive
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /cases/archive/stats [get]
func (h *ArchiveHandler) Stats(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "archive service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export the archive
// @Tags Archive
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Param type query string false "student, faculty or staff"
// @Param severity query string false "minor or major"
// @Success 200 {file} binary
// @Router /cases/archive/export [get]
func (h *ArchiveHandler) Export(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "archive service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query service.ArchiveQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	report, err := h.service.Export(c.Request.Context(), query, c.DefaultQuery("format", "csv"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Data)
}
