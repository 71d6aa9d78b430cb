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

type caseService interface {
	Create(ctx context.Context, req dto.CreateCaseRequest, actor *models.JWTClaims) (*models.Case, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Case, error)
	List(ctx context.Context, query dto.ListCasesQuery, actor *models.JWTClaims) (*dto.CaseListResult, error)
	History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.AuditLog, error)
}

// CaseHandler serves active case records.
type CaseHandler struct {
	service caseService
}

// NewCaseHandler constructs the handler.
func NewCaseHandler(service caseService) *CaseHandler {
	return &CaseHandler{service: service}
}

// Create godoc
// @Summary File a new case
// @Tags Cases
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cases [post]
func (h *CaseHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "case service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid case payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// List godoc
// @Summary List active cases
// @Description Search runs over the whole filtered collection before the page is cut.
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param type query string false "student, faculty or staff"
// @Param severity query string false "minor or major"
// @Param page query int false "1-indexed page"
// @Param pageSize query int false "Page size"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /cases [get]
func (h *CaseHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "case service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.ListCasesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Items, &result.Pagination)
}

// Get godoc
// @Summary Get an active case
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "case service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// History godoc
// @Summary Audit trail of a case
// @Tags Cases
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/history [get]
func (h *CaseHandler) History(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "case service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.service.History(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
