package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

// memoryCaseStore mimics CaseRepository semantics over an in-memory map.
type memoryCaseStore struct {
	mu          sync.Mutex
	seq         int
	cases       map[string]*models.Case
	attachments map[string][]models.Attachment

	listErr    error
	expiredErr error
	// beforeLock runs inside PurgeArchived before the row is re-checked.
	beforeLock func(id string)
	deleteLog  []string
}

func newMemoryCaseStore() *memoryCaseStore {
	return &memoryCaseStore{cases: map[string]*models.Case{}, attachments: map[string][]models.Attachment{}}
}

func (m *memoryCaseStore) seed(c models.Case) *models.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("case-%03d", m.seq)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	}
	if c.Severity == "" {
		c.Severity = models.SeverityMinor
	}
	if c.SubjectType == "" {
		c.SubjectType = models.SubjectStudent
	}
	stored := c
	m.cases[c.ID] = &stored
	return &stored
}

func (m *memoryCaseStore) seedArchived(deletedAt time.Time) *models.Case {
	by := "officer-1"
	at := deletedAt
	return m.seed(models.Case{IsDeleted: true, DeletedAt: &at, DeletedBy: &by})
}

func (m *memoryCaseStore) snapshot(id string) (models.Case, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return models.Case{}, false
	}
	return *c, true
}

func (m *memoryCaseStore) Create(ctx context.Context, c *models.Case) error {
	stored := m.seed(*c)
	*c = *stored
	return nil
}

func (m *memoryCaseStore) GetByID(ctx context.Context, id string) (*models.Case, error) {
	c, ok := m.snapshot(id)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (m *memoryCaseStore) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	term := strings.ToLower(filter.Search)
	matches := make([]models.Case, 0)
	for _, c := range m.cases {
		if c.IsDeleted {
			continue
		}
		if filter.SubjectType != "" && c.SubjectType != filter.SubjectType {
			continue
		}
		if filter.Severity != "" && c.Severity != filter.Severity {
			continue
		}
		if term != "" && !matchesSearch(c, term, filter.SearchFields) {
			continue
		}
		matches = append(matches, *c)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	total := len(matches)
	offset := filter.Offset()
	if offset >= total {
		return []models.Case{}, total, nil
	}
	end := offset + filter.PageSize
	if end > total {
		end = total
	}
	return matches[offset:end], total, nil
}

func matchesSearch(c *models.Case, term string, fields []models.SearchField) bool {
	values := make([]string, 0)
	for _, f := range fields {
		switch f {
		case models.SearchByName:
			values = append(values, c.SubjectFirstName, c.SubjectLastName, c.SubjectFirstName+" "+c.SubjectLastName)
		case models.SearchByOffense:
			values = append(values, c.OffenseType, c.OffenseCategory)
		case models.SearchByDescription:
			values = append(values, c.Description)
		case models.SearchByProgram:
			values = append(values, c.ProgramOrDept)
		}
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func (m *memoryCaseStore) ListArchived(ctx context.Context, filter models.ArchiveFilter) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]models.Case, 0)
	for _, c := range m.cases {
		if !c.IsDeleted {
			continue
		}
		if filter.SubjectType != "" && c.SubjectType != filter.SubjectType {
			continue
		}
		if filter.Severity != "" && c.Severity != filter.Severity {
			continue
		}
		items = append(items, *c)
	}
	sortByDeletion(items)
	return items, nil
}

func (m *memoryCaseStore) ArchiveStats(ctx context.Context, criticalBefore, safeAfter time.Time) (*models.ArchiveStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.ArchiveStats{}
	for _, c := range m.cases {
		if !c.IsDeleted {
			continue
		}
		stats.Total++
		switch {
		case c.DeletedAt.After(safeAfter):
			stats.Safe++
		case c.DeletedAt.After(criticalBefore):
			stats.Warning++
		default:
			stats.Critical++
		}
	}
	return stats, nil
}

func (m *memoryCaseStore) SoftDelete(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	if c.IsDeleted {
		return false, nil
	}
	deletedAt := at
	by := actorID
	c.IsDeleted, c.DeletedAt, c.DeletedBy = true, &deletedAt, &by
	return true, nil
}

func (m *memoryCaseStore) Restore(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return sql.ErrNoRows
	}
	if !c.IsDeleted {
		return repository.ErrCaseNotArchived
	}
	c.IsDeleted, c.DeletedAt, c.DeletedBy, c.UpdatedAt = false, nil, nil, at
	return nil
}

func (m *memoryCaseStore) ListExpired(ctx context.Context, cutoff time.Time, after *repository.ExpiredCase, limit int) ([]repository.ExpiredCase, error) {
	if m.expiredErr != nil {
		return nil, m.expiredErr
	}
	archived, _ := m.ListArchived(ctx, models.ArchiveFilter{})
	out := make([]repository.ExpiredCase, 0, limit)
	for _, c := range archived {
		if c.DeletedAt.After(cutoff) {
			continue
		}
		if after != nil {
			if c.DeletedAt.Before(after.DeletedAt) || (c.DeletedAt.Equal(after.DeletedAt) && c.ID <= after.ID) {
				continue
			}
		}
		out = append(out, repository.ExpiredCase{ID: c.ID, DeletedAt: *c.DeletedAt})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryCaseStore) PurgeArchived(ctx context.Context, id string, cutoff *time.Time, export repository.PurgeExport) (*models.Case, []models.Attachment, error) {
	if m.beforeLock != nil {
		m.beforeLock(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	if !c.IsDeleted || c.DeletedAt == nil {
		return nil, nil, repository.ErrCaseNotArchived
	}
	if cutoff != nil && c.DeletedAt.After(*cutoff) {
		return nil, nil, repository.ErrRetentionNotElapsed
	}
	snapshot := *c
	attachments := append([]models.Attachment{}, m.attachments[id]...)
	if err := export(&snapshot, attachments); err != nil {
		return nil, nil, err
	}
	delete(m.cases, id)
	delete(m.attachments, id)
	m.deleteLog = append(m.deleteLog, id)
	return &snapshot, attachments, nil
}

func sortByDeletion(items []models.Case) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DeletedAt.Equal(*items[j].DeletedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].DeletedAt.Before(*items[j].DeletedAt)
	})
}

// recordingExporter stands in for BackupService, optionally failing chosen cases.
type recordingExporter struct {
	mu        sync.Mutex
	failFor   map[string]bool
	artifacts map[string]string
	order     []string
	store     *memoryCaseStore
}

func (e *recordingExporter) Export(c *models.Case, attachments []models.Attachment, mode models.PurgeMode, actorID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[c.ID] {
		return "", errExportStub
	}
	if e.store != nil {
		// the row must still exist when the artifact is produced
		if _, ok := e.store.cases[c.ID]; !ok {
			return "", errors.New("case deleted before export")
		}
	}
	if e.artifacts == nil {
		e.artifacts = map[string]string{}
	}
	name := fmt.Sprintf("cases/%s_%s.json", c.ID, mode)
	e.artifacts[c.ID] = name
	e.order = append(e.order, c.ID)
	return name, nil
}

var errExportStub = appErrors.Wrap(errors.New("disk full"), appErrors.ErrExportFailure.Code, appErrors.ErrExportFailure.Status, "failed to write backup artifact")
