package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type lifecycleStore interface {
	SoftDelete(ctx context.Context, id, actorID string, at time.Time) (bool, error)
	Restore(ctx context.Context, id string, at time.Time) error
}

// LifecycleService moves cases between the active set and the archive.
type LifecycleService struct {
	repo    lifecycleStore
	audit   auditTrail
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewLifecycleService constructs a LifecycleService.
func NewLifecycleService(repo lifecycleStore, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		repo:    repo,
		audit:   auditTrail{repo: audit, logger: logger, source: "lifecycle-service"},
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// SoftDelete archives a case. Deleting an archived case again succeeds without
// changing deleted_at, so retention is never extended.
func (s *LifecycleService) SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireOfficer(actor); err != nil {
		return err
	}
	at := s.now().UTC()
	changed, err := s.repo.SoftDelete(ctx, id, actor.UserID, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return storeError(err, "failed to archive case")
	}
	if !changed {
		s.logger.Debug("case already archived", zap.String("case_id", id))
		return nil
	}

	s.audit.record(ctx, actor, models.AuditActionCaseSoftDelete, "case", id,
		map[string]interface{}{"isDeleted": false},
		map[string]interface{}{"isDeleted": true, "deletedAt": at, "deletedBy": actor.UserID})
	s.cache.Invalidate(ctx, cachePatternArchiveAll)
	s.metrics.RecordSoftDelete()
	s.logger.Info("case archived", zap.String("case_id", id), zap.String("actor", actor.UserID))
	return nil
}

// Restore returns an archived case to the active set. Any case not yet purged
// is restorable regardless of how long it has been archived.
func (s *LifecycleService) Restore(ctx context.Context, id string, actor *models.JWTClaims) error {
	if err := requireOfficer(actor); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, id, s.now().UTC()); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "case not found")
		case errors.Is(err, repository.ErrCaseNotArchived):
			return appErrors.Clone(appErrors.ErrNotDeleted, "case is active and cannot be restored")
		default:
			return storeError(err, "failed to restore case")
		}
	}

	s.audit.record(ctx, actor, models.AuditActionCaseRestore, "case", id,
		map[string]interface{}{"isDeleted": true},
		map[string]interface{}{"isDeleted": false})
	s.cache.Invalidate(ctx, cachePatternArchiveAll)
	s.metrics.RecordRestore()
	s.logger.Info("case restored", zap.String("case_id", id), zap.String("actor", actor.UserID))
	return nil
}
