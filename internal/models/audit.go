package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin            = "LOGIN"
	AuditActionLogout           = "LOGOUT"
	AuditActionLoginDenied      = "LOGIN_DENIED"
	AuditActionTokenRefresh     = "TOKEN_REFRESH"
	AuditActionCaseCreate       = "CASE_CREATE"
	AuditActionCaseSoftDelete   = "CASE_SOFT_DELETE"
	AuditActionCaseRestore      = "CASE_RESTORE"
	AuditActionCasePurge        = "CASE_PURGE"
	AuditActionAttachmentUpload = "ATTACHMENT_UPLOAD"
	AuditActionArchiveExport    = "ARCHIVE_EXPORT"
	AuditActionUserCreate       = "USER_CREATE"
	AuditActionUserUpdate       = "USER_UPDATE"
	AuditActionUserStatus       = "USER_STATUS"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	UserAgent  string    `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
