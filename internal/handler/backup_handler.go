package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/response"
)

type backupLister interface {
	List(entity string, actor *models.JWTClaims) ([]models.BackupArtifact, error)
}

// BackupHandler lists the backup artifacts written before purges.
type BackupHandler struct {
	service backupLister
}

// NewBackupHandler constructs the handler.
func NewBackupHandler(service backupLister) *BackupHandler {
	return &BackupHandler{service: service}
}

// List godoc
// @Summary List backup artifacts
// @Tags Backups
// @Produce json
// @Security BearerAuth
// @Param entity query string false "Entity kind" default(cases)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "backup service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.List(c.DefaultQuery("entity", string(models.BackupEntityCase)), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
