package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watch-api/internal/models"
)

const attachmentColumns = `id, case_id, filename, file_path, mime_type, size_bytes, sha256, uploaded_by, uploaded_at`

// AttachmentRepository handles case attachment metadata.
type AttachmentRepository struct {
	db *sqlx.DB
}

// NewAttachmentRepository constructs the repository.
func NewAttachmentRepository(db *sqlx.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create stores metadata for an uploaded file. The insert only succeeds while
// the parent case is active.
func (r *AttachmentRepository) Create(ctx context.Context, item *models.Attachment) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.UploadedAt.IsZero() {
		item.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO case_attachments (` + attachmentColumns + `)
	SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9 WHERE EXISTS (SELECT 1 FROM cases WHERE id = $2 AND is_deleted = FALSE)`
	res, err := r.db.ExecContext(ctx, query, item.ID, item.CaseID, item.Filename, item.FilePath, item.MimeType, item.SizeBytes, item.SHA256, item.UploadedBy, item.UploadedAt)
	if err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check attachment insert rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByCase returns the attachments of a case, oldest first.
func (r *AttachmentRepository) ListByCase(ctx context.Context, caseID string) ([]models.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM case_attachments WHERE case_id = $1 ORDER BY uploaded_at ASC, id ASC`
	items := make([]models.Attachment, 0)
	if err := r.db.SelectContext(ctx, &items, query, caseID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}

// GetByID retrieves one attachment scoped to its case.
func (r *AttachmentRepository) GetByID(ctx context.Context, caseID, id string) (*models.Attachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM case_attachments WHERE id = $1 AND case_id = $2`
	var item models.Attachment
	if err := r.db.GetContext(ctx, &item, query, id, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return &item, nil
}
