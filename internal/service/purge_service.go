package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type purgeStore interface {
	ListExpired(ctx context.Context, cutoff time.Time, after *repository.ExpiredCase, limit int) ([]repository.ExpiredCase, error)
	PurgeArchived(ctx context.Context, id string, cutoff *time.Time, export repository.PurgeExport) (*models.Case, []models.Attachment, error)
}

type caseExporter interface {
	Export(c *models.Case, attachments []models.Attachment, mode models.PurgeMode, actorID string) (string, error)
}

type attachmentCleaner interface {
	ScheduleCleanup(caseID string, attachments []models.Attachment)
}

// PurgeOptions tunes a scheduled purge run.
type PurgeOptions struct {
	DryRun bool
}

// PurgeService permanently removes archived cases, always writing a backup
// artifact before the row is deleted.
type PurgeService struct {
	repo          purgeStore
	backup        caseExporter
	cleaner       attachmentCleaner
	audit         auditTrail
	cache         *CacheService
	metrics       *MetricsService
	logger        *zap.Logger
	retentionDays int
	batchSize     int
	now           func() time.Time
}

// NewPurgeService wires a purge service.
func NewPurgeService(repo purgeStore, backup caseExporter, cleaner attachmentCleaner, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger, retentionDays, batchSize int) *PurgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retentionDays <= 0 {
		retentionDays = 60
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &PurgeService{
		repo:          repo,
		backup:        backup,
		cleaner:       cleaner,
		audit:         auditTrail{repo: audit, logger: logger, source: "purge-service"},
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		retentionDays: retentionDays,
		batchSize:     batchSize,
		now:           time.Now,
	}
}

// PurgeExpired removes every archived case whose retention window has elapsed.
// Each case is exported and deleted in its own transaction; one failure never
// stops the batch. The cutoff is fixed when the run starts.
func (s *PurgeService) PurgeExpired(ctx context.Context, opts PurgeOptions, actor *models.JWTClaims) (*models.PurgeReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSystem && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "purge requires the system trigger or the discipline officer")
	}

	started := s.now().UTC()
	report := &models.PurgeReport{
		DryRun:    opts.DryRun,
		Cutoff:    started.Add(-models.RetentionWindow(s.retentionDays)),
		StartedAt: started,
		Failures:  []models.PurgeFailure{},
		Artifacts: []string{},
	}

	var cursor *repository.ExpiredCase
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("purge run interrupted", zap.Int("purged", report.Count), zap.Error(err))
			break
		}
		batch, err := s.repo.ListExpired(ctx, report.Cutoff, cursor, s.batchSize)
		if err != nil {
			s.logger.Error("purge selection failed", zap.Error(err))
			return nil, storeError(err, "failed to select expired cases")
		}
		if len(batch) == 0 {
			break
		}
		last := batch[len(batch)-1]
		cursor = &last

		if opts.DryRun {
			report.Count += len(batch)
			continue
		}
		for _, candidate := range batch {
			s.purgeOne(ctx, candidate.ID, report, actor)
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	report.FinishedAt = s.now().UTC()
	if !opts.DryRun {
		s.metrics.ObservePurgeRun(report.FinishedAt.Sub(started), report.FinishedAt)
		if report.Count > 0 {
			s.cache.Invalidate(ctx, cachePatternArchiveAll)
		}
	}
	s.logger.Info("purge run finished",
		zap.Bool("dry_run", report.DryRun),
		zap.Int("count", report.Count),
		zap.Int("errors", report.Errors),
		zap.Int("skipped", report.Skipped),
		zap.Time("cutoff", report.Cutoff),
		zap.Duration("duration", report.FinishedAt.Sub(started)))
	return report, nil
}

func (s *PurgeService) purgeOne(ctx context.Context, id string, report *models.PurgeReport, actor *models.JWTClaims) {
	cutoff := report.Cutoff
	artifact, purged, attachments, err := s.purge(ctx, id, &cutoff, models.PurgeScheduled, actor)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows),
			errors.Is(err, repository.ErrCaseNotArchived),
			errors.Is(err, repository.ErrRetentionNotElapsed):
			report.Skipped++
			s.logger.Info("case left the purge set before it was locked", zap.String("case_id", id), zap.Error(err))
		default:
			code := appErrors.FromError(err).Code
			if !appErrors.Is(err, appErrors.ErrExportFailure) {
				code = appErrors.ErrStoreFailure.Code
			}
			report.Errors++
			report.Failures = append(report.Failures, models.PurgeFailure{CaseID: id, Code: code, Reason: err.Error()})
			s.metrics.RecordPurgeFailure(models.PurgeScheduled, code)
			s.logger.Error("case purge failed", zap.String("case_id", id), zap.String("code", code), zap.Error(err))
		}
		return
	}
	report.Count++
	report.Artifacts = append(report.Artifacts, artifact)
	s.afterPurge(ctx, purged, attachments, artifact, models.PurgeScheduled, actor)
}

// PurgeNow removes one archived case immediately, regardless of how long it has
// been archived. The caller must confirm by repeating the case id.
func (s *PurgeService) PurgeNow(ctx context.Context, id string, req dto.PurgeCaseRequest, actor *models.JWTClaims) (string, error) {
	if err := requireOfficer(actor); err != nil {
		return "", err
	}
	if !req.Confirm || strings.TrimSpace(req.ConfirmCaseID) != id {
		return "", appErrors.Clone(appErrors.ErrConfirmationRequired, "confirm the purge by repeating the case id")
	}

	artifact, purged, attachments, err := s.purge(ctx, id, nil, models.PurgeManual, actor)
	if err != nil {
		code := appErrors.ErrStoreFailure.Code
		var out error
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return "", appErrors.Clone(appErrors.ErrNotFound, "case not found")
		case errors.Is(err, repository.ErrCaseNotArchived):
			return "", appErrors.Clone(appErrors.ErrNotDeleted, "only archived cases can be purged")
		case appErrors.Is(err, appErrors.ErrExportFailure):
			code = appErrors.ErrExportFailure.Code
			out = err
		default:
			out = storeError(err, "failed to purge case")
		}
		s.metrics.RecordPurgeFailure(models.PurgeManual, code)
		s.logger.Error("manual purge failed", zap.String("case_id", id), zap.String("code", code), zap.Error(err))
		return "", out
	}

	s.afterPurge(ctx, purged, attachments, artifact, models.PurgeManual, actor)
	s.cache.Invalidate(ctx, cachePatternArchiveAll)
	return artifact, nil
}

// purge runs the export-then-delete transaction for one case.
func (s *PurgeService) purge(ctx context.Context, id string, cutoff *time.Time, mode models.PurgeMode, actor *models.JWTClaims) (string, *models.Case, []models.Attachment, error) {
	var artifact string
	purged, attachments, err := s.repo.PurgeArchived(ctx, id, cutoff, func(c *models.Case, atts []models.Attachment) error {
		name, err := s.backup.Export(c, atts, mode, actor.UserID)
		if err != nil {
			return err
		}
		artifact = name
		return nil
	})
	if err != nil {
		return "", nil, nil, err
	}
	return artifact, purged, attachments, nil
}

func (s *PurgeService) afterPurge(ctx context.Context, purged *models.Case, attachments []models.Attachment, artifact string, mode models.PurgeMode, actor *models.JWTClaims) {
	if s.cleaner != nil && len(attachments) > 0 {
		s.cleaner.ScheduleCleanup(purged.ID, attachments)
	}
	s.audit.record(ctx, actor, models.AuditActionCasePurge, "case", purged.ID,
		map[string]interface{}{"isDeleted": true, "deletedAt": purged.DeletedAt, "deletedBy": purged.DeletedBy},
		map[string]interface{}{"artifact": artifact, "mode": mode, "attachments": len(attachments)})
	s.metrics.RecordPurge(mode)
	s.logger.Info("case purged",
		zap.String("case_id", purged.ID),
		zap.String("mode", string(mode)),
		zap.String("artifact", artifact),
		zap.String("actor", actor.UserID))
}
