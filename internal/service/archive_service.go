package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/export"
)

type archiveStore interface {
	ListArchived(ctx context.Context, filter models.ArchiveFilter) ([]models.Case, error)
	ArchiveStats(ctx context.Context, criticalBefore, safeAfter time.Time) (*models.ArchiveStats, error)
}

// ArchiveQuery carries archive listing filters as received from clients.
type ArchiveQuery struct {
	Type     string `form:"type"`
	Severity string `form:"severity"`
}

// ArchiveReport is a rendered archive export ready for download.
type ArchiveReport struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ArchiveService surfaces soft-deleted cases with their purge countdown.
type ArchiveService struct {
	repo          archiveStore
	cache         *CacheService
	audit         auditTrail
	logger        *zap.Logger
	retentionDays int
	statsTTL      time.Duration
	now           func() time.Time
}

// NewArchiveService constructs the archive query service.
func NewArchiveService(repo archiveStore, cache *CacheService, audit auditLogger, logger *zap.Logger, retentionDays int, statsTTL time.Duration) *ArchiveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 60
	}
	return &ArchiveService{
		repo:          repo,
		cache:         cache,
		audit:         auditTrail{repo: audit, logger: logger, source: "archive-service"},
		logger:        logger,
		retentionDays: retentionDays,
		statsTTL:      statsTTL,
		now:           time.Now,
	}
}

// RetentionDays exposes the configured retention window.
func (s *ArchiveService) RetentionDays() int {
	return s.retentionDays
}

// List returns archived cases oldest deletion first, each with its countdown.
func (s *ArchiveService) List(ctx context.Context, query ArchiveQuery, actor *models.JWTClaims) ([]models.ArchivedCaseView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	filter, err := parseArchiveQuery(query)
	if err != nil {
		return nil, err
	}
	cases, err := s.repo.ListArchived(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list archived cases")
	}
	now := s.now().UTC()
	views := make([]models.ArchivedCaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, models.NewArchivedCaseView(c, s.retentionDays, now))
	}
	return views, nil
}

// Stats counts archived cases per countdown band. Results are cached briefly and
// dropped whenever a case enters or leaves the archive.
func (s *ArchiveService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.ArchiveStats, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%d", cacheKeyArchiveStats, s.retentionDays)
	var cached models.ArchiveStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	now := s.now().UTC()
	day := 24 * time.Hour
	criticalBefore := now.Add(-time.Duration(s.retentionDays-7) * day)
	safeAfter := now.Add(-time.Duration(s.retentionDays-30) * day)
	stats, err := s.repo.ArchiveStats(ctx, criticalBefore, safeAfter)
	if err != nil {
		return nil, storeError(err, "failed to compute archive statistics")
	}
	stats.RetentionDays = s.retentionDays
	stats.GeneratedAt = now
	s.cache.Set(ctx, key, stats, s.statsTTL)
	return stats, nil
}

// Export renders the archive listing with its countdown as CSV or PDF.
func (s *ArchiveService) Export(ctx context.Context, query ArchiveQuery, format string, actor *models.JWTClaims) (*ArchiveReport, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	views, err := s.List(ctx, query, actor)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Archived cases (retention %d days)", s.retentionDays),
		Headers: []string{"Case ID", "Subject", "Type", "Severity", "Offense", "Deleted At", "Deleted By", "Days Remaining", "Band"},
		Rows:    make([]map[string]string, 0, len(views)),
	}
	for _, v := range views {
		row := map[string]string{
			"Case ID":        v.ID,
			"Subject":        v.SubjectName(),
			"Type":           string(v.SubjectType),
			"Severity":       string(v.Severity),
			"Offense":        v.OffenseType,
			"Days Remaining": strconv.Itoa(v.DaysRemaining),
			"Band":           string(v.Band),
		}
		if v.DeletedAt != nil {
			row["Deleted At"] = v.DeletedAt.UTC().Format(time.RFC3339)
		}
		if v.DeletedBy != nil {
			row["Deleted By"] = *v.DeletedBy
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	renderer := export.RendererFor(f)
	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render archive report")
	}
	s.audit.record(ctx, actor, models.AuditActionArchiveExport, "archive", "", nil, map[string]interface{}{
		"format": string(f),
		"rows":   len(views),
	})
	return &ArchiveReport{
		Filename:    fmt.Sprintf("archived_cases_%s%s", s.now().UTC().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
		Rows:        len(views),
	}, nil
}

func parseArchiveQuery(query ArchiveQuery) (models.ArchiveFilter, error) {
	subjectType, err := models.ParseSubjectType(query.Type)
	if err != nil {
		return models.ArchiveFilter{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	severity, err := models.ParseCaseSeverity(query.Severity)
	if err != nil {
		return models.ArchiveFilter{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return models.ArchiveFilter{SubjectType: subjectType, Severity: severity}, nil
}
