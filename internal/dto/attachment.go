package dto

import "github.com/noah-isme/watch-api/internal/models"

// AttachmentResponse adds a short lived signed download link to attachment metadata.
type AttachmentResponse struct {
	models.Attachment
	DownloadURL string `json:"downloadUrl"`
}
