package models

import "time"

// Attachment is a file attached to a case. Its lifecycle follows the case.
type Attachment struct {
	ID         string    `db:"id" json:"id"`
	CaseID     string    `db:"case_id" json:"caseId"`
	Filename   string    `db:"filename" json:"filename"`
	FilePath   string    `db:"file_path" json:"-"`
	MimeType   string    `db:"mime_type" json:"mimeType"`
	SizeBytes  int64     `db:"size_bytes" json:"sizeBytes"`
	SHA256     string    `db:"sha256" json:"sha256"`
	UploadedBy string    `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploadedAt"`
}
