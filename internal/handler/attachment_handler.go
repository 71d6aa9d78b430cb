package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/service"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, caseID string, upload service.AttachmentUpload, actor *models.JWTClaims) (*models.Attachment, error)
	List(ctx context.Context, caseID string, actor *models.JWTClaims) ([]dto.AttachmentResponse, error)
	Download(ctx context.Context, caseID, id, token string, actor *models.JWTClaims) (*service.AttachmentDownload, error)
}

// AttachmentHandler manages case attachment endpoints.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(service attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: service}
}

// Upload godoc
// @Summary Attach a file to a case
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /cases/{id}/attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "attachment service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	upload := service.AttachmentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	item, err := h.service.Upload(c.Request.Context(), c.Param("id"), upload, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, item, nil)
}

// List godoc
// @Summary List case attachments
// @Tags Attachments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/attachments [get]
func (h *AttachmentHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "attachment service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.List(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Download godoc
// @Summary Download attachment via signed token
// @Tags Attachments
// @Produce octet-stream
// @Security BearerAuth
// @Param id path string true "Case ID"
// @Param attachmentId path string true "Attachment ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /cases/{id}/attachments/{attachmentId}/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "attachment service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Download(c.Request.Context(), c.Param("id"), c.Param("attachmentId"), token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}
