package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type historyStub struct {
	logs     []models.AuditLog
	resource string
	id       string
}

func (h *historyStub) ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error) {
	h.resource, h.id = resource, resourceID
	return h.logs, nil
}

func newCaseServiceFixture(cfg CaseListingConfig) (*CaseService, *memoryCaseStore, *auditRecorder) {
	store := newMemoryCaseStore()
	audit := &auditRecorder{}
	svc := NewCaseService(store, &historyStub{}, audit, validator.New(), nil, cfg)
	return svc, store, audit
}

func validCaseRequest() dto.CreateCaseRequest {
	return dto.CreateCaseRequest{
		Severity:         "major",
		SubjectType:      "student",
		SubjectFirstName: " Juan ",
		SubjectLastName:  "Dela Cruz",
		ProgramOrDept:    "BSIT",
		OffenseCategory:  "Conduct",
		OffenseType:      "Cheating",
		Description:      "Copied during the midterm exam",
	}
}

func TestCaseServiceCreate(t *testing.T) {
	svc, store, audit := newCaseServiceFixture(CaseListingConfig{})
	now := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	created, err := svc.Create(context.Background(), validCaseRequest(), committee)
	require.NoError(t, err)
	assert.Equal(t, "Juan", created.SubjectFirstName)
	assert.Equal(t, models.SeverityMajor, created.Severity)
	assert.Equal(t, models.CaseStatusOpen, created.Status)
	assert.Equal(t, committee.UserID, created.CreatedBy)
	assert.True(t, created.DateReported.Equal(now))
	assert.False(t, created.IsDeleted)

	_, ok := store.snapshot(created.ID)
	assert.True(t, ok)
	assert.Equal(t, []string{models.AuditActionCaseCreate}, audit.actions())
}

func TestCaseServiceCreateValidation(t *testing.T) {
	svc, _, _ := newCaseServiceFixture(CaseListingConfig{})
	req := validCaseRequest()
	req.Severity = "catastrophic"

	_, err := svc.Create(context.Background(), req, officer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), validCaseRequest(), nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceGetHidesArchivedCases(t *testing.T) {
	svc, store, _ := newCaseServiceFixture(CaseListingConfig{})
	active := store.seed(models.Case{})
	archived := store.seedArchived(time.Now().Add(-time.Hour))

	got, err := svc.Get(context.Background(), active.ID, committee)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = svc.Get(context.Background(), archived.ID, committee)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.Get(context.Background(), "missing", committee)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceSearchFiltersBeforePaging(t *testing.T) {
	svc, store, _ := newCaseServiceFixture(CaseListingConfig{PageSize: 50, MaxPageSize: 100})
	for i := 0; i < 119; i++ {
		store.seed(models.Case{SubjectFirstName: fmt.Sprintf("Student%03d", i), SubjectLastName: "Reyes"})
	}
	store.seed(models.Case{SubjectFirstName: "Juan", SubjectLastName: "Dela Cruz"})

	result, err := svc.List(context.Background(), dto.ListCasesQuery{Search: "Juan"}, committee)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pagination.TotalCount)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Juan", result.Items[0].SubjectFirstName)

	result, err = svc.List(context.Background(), dto.ListCasesQuery{Search: "juan dela"}, committee)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pagination.TotalCount)

	result, err = svc.List(context.Background(), dto.ListCasesQuery{}, committee)
	require.NoError(t, err)
	assert.Equal(t, 120, result.Pagination.TotalCount)
	assert.Len(t, result.Items, 50)
}

func TestCaseServicePaginationIsDeterministic(t *testing.T) {
	svc, store, _ := newCaseServiceFixture(CaseListingConfig{PageSize: 10, MaxPageSize: 10})
	sameInstant := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		created := sameInstant
		if i%2 == 0 {
			created = sameInstant.Add(time.Duration(i) * time.Second)
		}
		store.seed(models.Case{CreatedAt: created})
	}

	collect := func() []string {
		ids := make([]string, 0, 25)
		for page := 1; page <= 3; page++ {
			result, err := svc.List(context.Background(), dto.ListCasesQuery{Page: page}, committee)
			require.NoError(t, err)
			for _, c := range result.Items {
				ids = append(ids, c.ID)
			}
		}
		return ids
	}

	first := collect()
	assert.Len(t, first, 25)
	seen := map[string]bool{}
	for _, id := range first {
		assert.False(t, seen[id], "duplicate %s across pages", id)
		seen[id] = true
	}
	assert.Equal(t, first, collect())

	for _, page := range []int{4, 200000000000000000} {
		beyond, err := svc.List(context.Background(), dto.ListCasesQuery{Page: page}, committee)
		require.NoError(t, err)
		assert.Empty(t, beyond.Items)
		assert.Equal(t, 25, beyond.Pagination.TotalCount)
	}
}

func TestCaseServiceListClampsAndValidates(t *testing.T) {
	svc, store, _ := newCaseServiceFixture(CaseListingConfig{PageSize: 5, MaxPageSize: 20})
	for i := 0; i < 30; i++ {
		store.seed(models.Case{})
	}
	store.seedArchived(time.Now())

	result, err := svc.List(context.Background(), dto.ListCasesQuery{PageSize: 500, Page: -3}, committee)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Pagination.PageSize)
	assert.Equal(t, 1, result.Pagination.Page)
	assert.Equal(t, 30, result.Pagination.TotalCount)

	_, err = svc.List(context.Background(), dto.ListCasesQuery{Type: "alumni"}, committee)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	store.listErr = errors.New("connection reset")
	_, err = svc.List(context.Background(), dto.ListCasesQuery{}, committee)
	assert.Equal(t, appErrors.ErrStoreFailure.Code, appErrors.FromError(err).Code)
}

func TestCaseServiceHistoryRequiresOfficer(t *testing.T) {
	history := &historyStub{logs: []models.AuditLog{{Action: models.AuditActionCaseSoftDelete}}}
	svc := NewCaseService(newMemoryCaseStore(), history, nil, nil, nil, CaseListingConfig{})

	_, err := svc.History(context.Background(), "c1", committee)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	logs, err := svc.History(context.Background(), "c1", officer)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, "case", history.resource)
	assert.Equal(t, "c1", history.id)
}
