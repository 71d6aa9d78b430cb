package service

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/storage"
)

const backupNameAttempts = 3

type backupStorage interface {
	SaveExclusive(filename string, data []byte) (string, error)
	Stat(filename string) (*storage.FileInfo, error)
	List(dir string) ([]storage.FileInfo, error)
}

// BackupService writes the durable snapshot a case leaves behind when purged.
// Artifacts are append-only: a name is never reused or overwritten.
type BackupService struct {
	storage backupStorage
	logger  *zap.Logger
	now     func() time.Time
	suffix  func() string
}

// NewBackupService constructs a BackupService writing through store.
func NewBackupService(store backupStorage, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{storage: store, logger: logger, now: time.Now, suffix: randomSuffix}
}

// Export serialises the case and its attachment metadata and confirms the
// artifact is on disk before returning its name. Any failure yields
// ErrExportFailure so the caller can abort the delete.
func (s *BackupService) Export(c *models.Case, attachments []models.Attachment, mode models.PurgeMode, actorID string) (string, error) {
	if s == nil || s.storage == nil {
		return "", appErrors.Clone(appErrors.ErrExportFailure, "backup storage not configured")
	}
	if c == nil || c.ID == "" {
		return "", appErrors.Clone(appErrors.ErrExportFailure, "case snapshot missing")
	}
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	purgedAt := s.now().UTC()
	payload, err := json.MarshalIndent(models.CaseBackup{
		SchemaVersion: models.BackupSchemaVersion,
		Entity:        models.BackupEntityCase,
		Mode:          mode,
		Case:          *c,
		Attachments:   attachments,
		DeletedAt:     c.DeletedAt,
		DeletedBy:     c.DeletedBy,
		PurgedAt:      purgedAt,
		PurgedBy:      actorID,
	}, "", "  ")
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrExportFailure.Code, appErrors.ErrExportFailure.Status, "failed to encode backup")
	}

	var name string
	for attempt := 0; attempt < backupNameAttempts; attempt++ {
		name, err = s.storage.SaveExclusive(s.artifactName(models.BackupEntityCase, c.ID, purgedAt), payload)
		if !errors.Is(err, storage.ErrExists) {
			break
		}
	}
	if err != nil {
		s.logger.Error("backup write failed", zap.String("case_id", c.ID), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrExportFailure.Code, appErrors.ErrExportFailure.Status, "failed to write backup artifact")
	}

	info, err := s.storage.Stat(name)
	if err != nil || info.SizeBytes != int64(len(payload)) {
		if err == nil {
			err = fmt.Errorf("artifact %s is %d bytes, expected %d", name, info.SizeBytes, len(payload))
		}
		s.logger.Error("backup verification failed", zap.String("case_id", c.ID), zap.String("artifact", name), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrExportFailure.Code, appErrors.ErrExportFailure.Status, "failed to verify backup artifact")
	}

	s.logger.Info("backup written", zap.String("case_id", c.ID), zap.String("artifact", name), zap.Int64("size_bytes", info.SizeBytes))
	return name, nil
}

// List returns the artifacts written for entity, newest first.
func (s *BackupService) List(entity string, actor *models.JWTClaims) ([]models.BackupArtifact, error) {
	if err := requireOfficer(actor); err != nil {
		return nil, err
	}
	kind, err := models.ParseBackupEntity(entity)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	files, err := s.storage.List(string(kind))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list backups")
	}
	artifacts := make([]models.BackupArtifact, 0, len(files))
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		artifacts = append(artifacts, models.BackupArtifact{
			Entity:     kind,
			Name:       f.Name,
			SizeBytes:  f.SizeBytes,
			ModifiedAt: f.ModifiedAt,
		})
	}
	return artifacts, nil
}

// artifactName encodes entity, case id and export time, e.g.
// cases/2024/05/case_<id>_20240512T030000.123Z_9f2c1a7b.json.
func (s *BackupService) artifactName(entity models.BackupEntity, id string, at time.Time) string {
	return fmt.Sprintf("%s/%s/case_%s_%s_%s.json",
		entity, at.Format("2006/01"), sanitize(id), at.Format("20060102T150405.000Z"), s.suffix())
}

func sanitize(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
