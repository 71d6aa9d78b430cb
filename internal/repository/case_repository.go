package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/watch-api/internal/models"
)

var (
	// ErrCaseNotArchived is returned when a restore or purge targets an active case.
	ErrCaseNotArchived = errors.New("case is not archived")
	// ErrRetentionNotElapsed is returned when a scheduled purge finds a case that
	// was re-deleted after it was selected.
	ErrRetentionNotElapsed = errors.New("case retention window has not elapsed")
)

const caseColumns = `id, severity, subject_type, subject_first_name, subject_last_name, program_or_dept, section,
       offense_category, offense_type, description, date_reported, status, remarks, created_by, created_at, updated_at,
       is_deleted, deleted_at, deleted_by`

// ExpiredCase is a purge candidate plus the keyset cursor position.
type ExpiredCase struct {
	ID        string    `db:"id"`
	DeletedAt time.Time `db:"deleted_at"`
}

// PurgeExport is invoked while the case row is locked, before it is deleted.
// Returning an error aborts the purge and rolls the transaction back.
type PurgeExport func(c *models.Case, attachments []models.Attachment) error

// CaseRepository persists cases and their lifecycle columns.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs the repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts an active case.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.CaseStatusOpen
	}
	c.IsDeleted, c.DeletedAt, c.DeletedBy = false, nil, nil

	const query = `INSERT INTO cases
	(id, severity, subject_type, subject_first_name, subject_last_name, program_or_dept, section, offense_category, offense_type,
	 description, date_reported, status, remarks, created_by, created_at, updated_at, is_deleted)
	VALUES (:id, :severity, :subject_type, :subject_first_name, :subject_last_name, :program_or_dept, :section, :offense_category, :offense_type,
	 :description, :date_reported, :status, :remarks, :created_by, :created_at, :updated_at, FALSE)`
	if _, err := r.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByID returns a case in any lifecycle state.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	var c models.Case
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// List returns one page of active cases plus the total matching count. Search
// is applied in the WHERE clause so it spans the entire filtered collection.
func (r *CaseRepository) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	conditions := []string{"is_deleted = FALSE"}
	args := make([]interface{}, 0, 4)

	if filter.SubjectType != "" {
		args = append(args, filter.SubjectType)
		conditions = append(conditions, fmt.Sprintf("subject_type = $%d", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		matches := make([]string, 0, 4)
		for _, field := range filter.SearchFields {
			for _, column := range field.Columns() {
				matches = append(matches, fmt.Sprintf("%s ILIKE %s", column, placeholder))
			}
		}
		if len(filter.SearchFields) == 0 || containsField(filter.SearchFields, models.SearchByName) {
			matches = append(matches, fmt.Sprintf("(subject_first_name || ' ' || subject_last_name) ILIKE %s", placeholder))
		}
		conditions = append(conditions, "("+strings.Join(matches, " OR ")+")")
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM cases"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	offset := filter.Offset()
	if offset >= total {
		return []models.Case{}, total, nil
	}

	listQuery := fmt.Sprintf("SELECT %s FROM cases%s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d",
		caseColumns, where, filter.PageSize, offset)
	items := make([]models.Case, 0, filter.PageSize)
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list cases: %w", err)
	}
	return items, total, nil
}

// ListArchived returns archived cases, the oldest deletion first.
func (r *CaseRepository) ListArchived(ctx context.Context, filter models.ArchiveFilter) ([]models.Case, error) {
	conditions := []string{"is_deleted = TRUE"}
	args := make([]interface{}, 0, 2)
	if filter.SubjectType != "" {
		args = append(args, filter.SubjectType)
		conditions = append(conditions, fmt.Sprintf("subject_type = $%d", len(args)))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	query := `SELECT ` + caseColumns + ` FROM cases WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY deleted_at ASC, id ASC`
	items := make([]models.Case, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list archived cases: %w", err)
	}
	return items, nil
}

// ArchiveStats counts archived cases per countdown band. criticalBefore and
// safeAfter are the deleted_at thresholds for the critical and safe bands.
func (r *CaseRepository) ArchiveStats(ctx context.Context, criticalBefore, safeAfter time.Time) (*models.ArchiveStats, error) {
	const query = `SELECT
       COUNT(*) AS total,
       COUNT(*) FILTER (WHERE deleted_at > $2) AS safe,
       COUNT(*) FILTER (WHERE deleted_at <= $2 AND deleted_at > $1) AS warning,
       COUNT(*) FILTER (WHERE deleted_at <= $1) AS critical
	FROM cases WHERE is_deleted = TRUE`
	var stats models.ArchiveStats
	if err := r.db.GetContext(ctx, &stats, query, criticalBefore, safeAfter); err != nil {
		return nil, fmt.Errorf("archive stats: %w", err)
	}
	return &stats, nil
}

// SoftDelete archives an active case. It reports false without touching the row
// when the case is already archived, so the retention timer is never reset.
func (r *CaseRepository) SoftDelete(ctx context.Context, id, actorID string, at time.Time) (changed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin soft delete transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var isDeleted bool
	if err = tx.GetContext(ctx, &isDeleted, `SELECT is_deleted FROM cases WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		return false, fmt.Errorf("lock case: %w", err)
	}
	if isDeleted {
		if err = tx.Commit(); err != nil {
			return false, fmt.Errorf("commit soft delete: %w", err)
		}
		return false, nil
	}

	const update = `UPDATE cases SET is_deleted = TRUE, deleted_at = $2, deleted_by = $3, updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, update, id, at, actorID); err != nil {
		return false, fmt.Errorf("soft delete case: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit soft delete: %w", err)
	}
	return true, nil
}

// Restore returns an archived case to the active set, clearing all deletion
// metadata in a single statement.
func (r *CaseRepository) Restore(ctx context.Context, id string, at time.Time) error {
	const update = `UPDATE cases SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL, updated_at = $2 WHERE id = $1 AND is_deleted = TRUE`
	res, err := r.db.ExecContext(ctx, update, id, at)
	if err != nil {
		return fmt.Errorf("restore case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check restore rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM cases WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("check case existence: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}
	return ErrCaseNotArchived
}

// ListExpired returns up to limit archived cases deleted at or before cutoff,
// ordered by (deleted_at, id) and starting strictly after the given cursor.
func (r *CaseRepository) ListExpired(ctx context.Context, cutoff time.Time, after *ExpiredCase, limit int) ([]ExpiredCase, error) {
	args := []interface{}{cutoff}
	query := `SELECT id, deleted_at FROM cases WHERE is_deleted = TRUE AND deleted_at <= $1`
	if after != nil {
		args = append(args, after.DeletedAt, after.ID)
		query += ` AND (deleted_at, id) > ($2, $3)`
	}
	query += fmt.Sprintf(` ORDER BY deleted_at ASC, id ASC LIMIT %d`, limit)

	items := make([]ExpiredCase, 0, limit)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list expired cases: %w", err)
	}
	return items, nil
}

// PurgeArchived permanently removes one archived case. Inside a single
// transaction it locks the row, re-checks that the case is still archived (and,
// when cutoff is set, still past retention), hands the locked snapshot and its
// attachments to export, and deletes only after export returns nil.
// Attachment rows go with the case through ON DELETE CASCADE.
func (r *CaseRepository) PurgeArchived(ctx context.Context, id string, cutoff *time.Time, export PurgeExport) (purged *models.Case, attachments []models.Attachment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin purge transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var c models.Case
	if err = tx.GetContext(ctx, &c, `SELECT `+caseColumns+` FROM cases WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock case: %w", err)
	}
	if !c.IsDeleted || c.DeletedAt == nil {
		err = ErrCaseNotArchived
		return nil, nil, err
	}
	if cutoff != nil && c.DeletedAt.After(*cutoff) {
		err = ErrRetentionNotElapsed
		return nil, nil, err
	}

	attachments = make([]models.Attachment, 0)
	if err = tx.SelectContext(ctx, &attachments, `SELECT `+attachmentColumns+` FROM case_attachments WHERE case_id = $1 ORDER BY uploaded_at ASC, id ASC`, id); err != nil {
		return nil, nil, fmt.Errorf("load case attachments: %w", err)
	}

	if err = export(&c, attachments); err != nil {
		return nil, nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cases WHERE id = $1 AND is_deleted = TRUE`, id); err != nil {
		return nil, nil, fmt.Errorf("delete case: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit purge: %w", err)
	}
	return &c, attachments, nil
}

// Ping verifies the record store is reachable.
func (r *CaseRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func containsField(fields []models.SearchField, target models.SearchField) bool {
	for _, f := range fields {
		if f == target {
			return true
		}
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
