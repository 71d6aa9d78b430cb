package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type caseStore interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
}

type caseHistoryReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// CaseListingConfig bounds paginated listings and names the searchable fields.
type CaseListingConfig struct {
	PageSize     int
	MaxPageSize  int
	SearchFields []models.SearchField
}

// CaseService serves active case records: filing, lookup and paginated search.
type CaseService struct {
	repo      caseStore
	history   caseHistoryReader
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CaseListingConfig
	now       func() time.Time
}

// NewCaseService constructs a CaseService instance.
func NewCaseService(repo caseStore, history caseHistoryReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg CaseListingConfig) *CaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPageSize < cfg.PageSize {
		cfg.MaxPageSize = cfg.PageSize
	}
	if len(cfg.SearchFields) == 0 {
		cfg.SearchFields = []models.SearchField{models.SearchByName}
	}
	return &CaseService{
		repo:      repo,
		history:   history,
		audit:     auditTrail{repo: audit, logger: logger, source: "case-service"},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create files a new active case.
func (s *CaseService) Create(ctx context.Context, req dto.CreateCaseRequest, actor *models.JWTClaims) (*models.Case, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid case payload")
	}
	severity, err := models.ParseCaseSeverity(req.Severity)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	subjectType, err := models.ParseSubjectType(req.SubjectType)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	now := s.now().UTC()
	reported := now
	if req.DateReported != nil && !req.DateReported.IsZero() {
		reported = req.DateReported.UTC()
	}
	c := &models.Case{
		Severity:         severity,
		SubjectType:      subjectType,
		SubjectFirstName: strings.TrimSpace(req.SubjectFirstName),
		SubjectLastName:  strings.TrimSpace(req.SubjectLastName),
		ProgramOrDept:    strings.TrimSpace(req.ProgramOrDept),
		Section:          trimmedOrNil(req.Section),
		OffenseCategory:  strings.TrimSpace(req.OffenseCategory),
		OffenseType:      strings.TrimSpace(req.OffenseType),
		Description:      strings.TrimSpace(req.Description),
		DateReported:     reported,
		Status:           models.CaseStatusOpen,
		Remarks:          trimmedOrNil(req.Remarks),
		CreatedBy:        actor.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, storeError(err, "failed to create case")
	}
	s.audit.record(ctx, actor, models.AuditActionCaseCreate, "case", c.ID, nil, map[string]string{
		"severity":    string(c.Severity),
		"subjectType": string(c.SubjectType),
	})
	return c, nil
}

// Get returns an active case. Archived cases are only reachable through the archive.
func (s *CaseService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Case, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	c, err := s.repo.GetByID(ctx, id)
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

// List returns one page of active cases. Search filters the whole collection
// before the page is cut; pages past the end are empty, not errors.
func (s *CaseService) List(ctx context.Context, query dto.ListCasesQuery, actor *models.JWTClaims) (*dto.CaseListResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	subjectType, err := models.ParseSubjectType(query.Type)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	severity, err := models.ParseCaseSeverity(query.Severity)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = s.cfg.PageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}

	filter := models.CaseFilter{
		SubjectType:  subjectType,
		Severity:     severity,
		Search:       strings.TrimSpace(query.Search),
		SearchFields: s.cfg.SearchFields,
		Page:         page,
		PageSize:     pageSize,
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list cases")
	}
	return &dto.CaseListResult{
		Items:      items,
		Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}, nil
}

// History returns the audit trail of a case. Restricted to the discipline officer.
func (s *CaseService) History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.AuditLog, error) {
	if err := requireOfficer(actor); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []models.AuditLog{}, nil
	}
	logs, err := s.history.ListByResource(ctx, "case", id, 100)
	if err != nil {
		return nil, storeError(err, "failed to load case history")
	}
	return logs, nil
}

// storeError maps unexpected repository failures to the transient store error.
func storeError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrStoreFailure.Code, appErrors.ErrStoreFailure.Status, message)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
