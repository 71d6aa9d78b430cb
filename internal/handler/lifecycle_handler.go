package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/response"
)

type lifecycleService interface {
	SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) error
	Restore(ctx context.Context, id string, actor *models.JWTClaims) error
}

type casePurger interface {
	PurgeNow(ctx context.Context, id string, req dto.PurgeCaseRequest, actor *models.JWTClaims) (string, error)
}

// LifecycleHandler exposes soft delete, restore and manual purge.
type LifecycleHandler struct {
	service lifecycleService
	purger  casePurger
}

// NewLifecycleHandler constructs the handler.
func NewLifecycleHandler(service lifecycleService, purger casePurger) *LifecycleHandler {
	return &LifecycleHandler{service: service, purger: purger}
}

// Delete godoc
// @Summary Archive a case
// @Description Soft deletes the case and starts its retention countdown. Archiving an archived case is a no-op.
// @Tags Case Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/delete [post]
func (h *LifecycleHandler) Delete(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lifecycle service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id := c.Param("id")
	if err := h.service.SoftDelete(c.Request.Context(), id, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LifecycleResponse{
		ID:      id,
		State:   models.StateArchived,
		Message: "case moved to archive",
	}, nil)
}

// Restore godoc
// @Summary Restore an archived case
// @Tags Case Lifecycle
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases/{id}/restore [post]
func (h *LifecycleHandler) Restore(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "lifecycle service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id := c.Param("id")
	if err := h.service.Restore(c.Request.Context(), id, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LifecycleResponse{
		ID:      id,
		State:   models.StateActive,
		Message: "case restored",
	}, nil)
}

// Purge godoc
// @Summary Permanently delete an archived case
// @Description Exports a verified backup, then removes the case. Requires confirm=true and confirmCaseId matching the path.
// @Tags Case Lifecycle
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Param payload body dto.PurgeCaseRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /cases/{id}/purge [post]
func (h *LifecycleHandler) Purge(c *gin.Context) {
	if h.purger == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "purge service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.PurgeCaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
			return
		}
	}
	id := c.Param("id")
	artifact, err := h.purger.PurgeNow(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LifecycleResponse{
		ID:       id,
		State:    models.StatePurged,
		Artifact: artifact,
		Message:  "case permanently deleted",
	}, nil)
}
