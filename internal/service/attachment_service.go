package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
	"github.com/noah-isme/watch-api/pkg/jobs"
)

// JobTypeAttachmentCleanup removes the binary of an attachment whose case was purged.
const JobTypeAttachmentCleanup = "attachment_cleanup"

type attachmentStore interface {
	Create(ctx context.Context, item *models.Attachment) error
	ListByCase(ctx context.Context, caseID string) ([]models.Attachment, error)
	GetByID(ctx context.Context, caseID, id string) (*models.Attachment, error)
}

type activeCaseReader interface {
	GetByID(ctx context.Context, id string) (*models.Case, error)
}

type attachmentFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type attachmentSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type cleanupQueue interface {
	Enqueue(job jobs.Job) error
}

// AttachmentUpload carries upload metadata and stream reader.
type AttachmentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// AttachmentDownload bundles file reader metadata for streaming.
type AttachmentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// AttachmentServiceConfig holds validation parameters.
type AttachmentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// AttachmentService stores case files and removes them once their case is purged.
type AttachmentService struct {
	repo    attachmentStore
	cases   activeCaseReader
	storage attachmentFileStorage
	signer  attachmentSigner
	queue   cleanupQueue
	audit   auditTrail
	metrics *MetricsService
	logger  *zap.Logger
	cfg     AttachmentServiceConfig
	mimeSet map[string]struct{}
}

// NewAttachmentService constructs the service with defaults.
func NewAttachmentService(repo attachmentStore, cases activeCaseReader, storage attachmentFileStorage, signer attachmentSigner, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg AttachmentServiceConfig) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png", "text/plain"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &AttachmentService{
		repo:    repo,
		cases:   cases,
		storage: storage,
		signer:  signer,
		audit:   auditTrail{repo: audit, logger: logger, source: "attachment-service"},
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		mimeSet: mimeSet,
	}
}

// UseCleanupQueue sets the queue that receives file removal jobs after purges.
func (s *AttachmentService) UseCleanupQueue(queue cleanupQueue) {
	s.queue = queue
}

// Upload persists the file and its metadata against an active case.
func (s *AttachmentService) Upload(ctx context.Context, caseID string, upload AttachmentUpload, actor *models.JWTClaims) (*models.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.activeCase(ctx, caseID); err != nil {
		return nil, err
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}

	filename := s.generateFilename(caseID, upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	hasher := sha256.New()
	path, err := s.storage.SaveStream(filename, io.TeeReader(io.LimitReader(upload.Content, s.cfg.MaxFileSize), hasher))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attachment file")
	}

	item := &models.Attachment{
		CaseID:     caseID,
		Filename:   filepath.Base(strings.TrimSpace(upload.Filename)),
		FilePath:   path,
		MimeType:   mimeType,
		SizeBytes:  upload.Size,
		SHA256:     hex.EncodeToString(hasher.Sum(nil)),
		UploadedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		_ = s.storage.Delete(path)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, storeError(err, "failed to create attachment metadata")
	}
	s.audit.record(ctx, actor, models.AuditActionAttachmentUpload, "case", caseID, nil, map[string]interface{}{
		"attachmentId": item.ID,
		"filename":     item.Filename,
		"sha256":       item.SHA256,
	})
	return item, nil
}

// List returns the attachments of an active case with signed download links.
func (s *AttachmentService) List(ctx context.Context, caseID string, actor *models.JWTClaims) ([]dto.AttachmentResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := s.activeCase(ctx, caseID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByCase(ctx, caseID)
	if err != nil {
		return nil, storeError(err, "failed to list attachments")
	}
	result := make([]dto.AttachmentResponse, 0, len(items))
	for _, item := range items {
		url, err := s.downloadURL(&item)
		if err != nil {
			return nil, err
		}
		result = append(result, dto.AttachmentResponse{Attachment: item, DownloadURL: url})
	}
	return result, nil
}

// Download validates token and opens the attachment file.
func (s *AttachmentService) Download(ctx context.Context, caseID, id, token string, actor *models.JWTClaims) (*AttachmentDownload, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	if _, err := s.activeCase(ctx, caseID); err != nil {
		return nil, err
	}
	item, err := s.repo.GetByID(ctx, caseID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
		}
		return nil, storeError(err, "failed to load attachment")
	}
	attachmentID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if attachmentID != item.ID || relPath != item.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open attachment file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attachment metadata")
	}
	return &AttachmentDownload{
		File:      file,
		Filename:  item.Filename,
		MimeType:  item.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// ScheduleCleanup queues removal of the stored binaries of a purged case.
// Without a queue the files are removed inline.
func (s *AttachmentService) ScheduleCleanup(caseID string, attachments []models.Attachment) {
	for _, item := range attachments {
		job := jobs.Job{ID: item.ID, Type: JobTypeAttachmentCleanup, Payload: item.FilePath}
		if s.queue != nil {
			err := s.queue.Enqueue(job)
			if err == nil {
				continue
			}
			s.logger.Warn("cleanup enqueue failed, removing inline", zap.String("case_id", caseID), zap.String("attachment_id", item.ID), zap.Error(err))
		}
		if err := s.HandleCleanup(context.Background(), job); err != nil {
			s.metrics.RecordCleanupFailure()
			s.logger.Error("attachment cleanup failed", zap.String("case_id", caseID), zap.String("attachment_id", item.ID), zap.Error(err))
		}
	}
}

// HandleCleanup is the queue handler deleting one attachment binary.
func (s *AttachmentService) HandleCleanup(_ context.Context, job jobs.Job) error {
	path, ok := job.Payload.(string)
	if !ok || path == "" {
		return fmt.Errorf("cleanup job %s: missing file path", job.ID)
	}
	if err := s.storage.Delete(path); err != nil {
		return err
	}
	s.logger.Debug("attachment file removed", zap.String("attachment_id", job.ID), zap.String("path", path))
	return nil
}

// activeCase resolves a case that is visible to attachment operations.
func (s *AttachmentService) activeCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, storeError(err, "failed to load case")
	}
	if c.State() != models.StateActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	return c, nil
}

func (s *AttachmentService) downloadURL(item *models.Attachment) (string, error) {
	if s.signer == nil {
		return "", nil
	}
	token, _, err := s.signer.Generate(item.ID, item.FilePath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/cases/%s/attachments/%s/download?token=%s", base, item.CaseID, item.ID, token), nil
}

func (s *AttachmentService) detectMime(upload AttachmentUpload) (string, error) {
	if upload.MimeType != "" && upload.MimeType != "application/octet-stream" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	mimeType := http.DetectContentType(header[:n])
	if idx := strings.Index(mimeType, ";"); idx > 0 {
		mimeType = mimeType[:idx]
	}
	return mimeType, nil
}

func (s *AttachmentService) generateFilename(caseID, original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("cases/%s/attachment_%d_%s%s", sanitize(caseID), time.Now().Unix(), randomSuffix(), ext)
}

func mimeExtension(mime string) string {
	switch strings.ToLower(mime) {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "text/plain":
		return ".txt"
	case "application/msword":
		return ".doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	default:
		return ""
	}
}
