package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type mockUserRepo struct {
	users       map[string]*models.User
	listFilter  models.UserFilter
	listErr     error
	passwords   map[string]string
	revokedFor  []string
	updateCalls int
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User), passwords: make(map[string]string)}
	for _, u := range users {
		copy := *u
		repo.users[u.ID] = &copy
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.updateCalls++
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedFor = append(m.revokedFor, userID)
	return nil
}

func committeeAccount() *models.User {
	return &models.User{ID: "member-1", Email: "member@school.edu", FullName: "Committee Member", Role: models.RoleCommittee, Active: true}
}

func newUserServiceFixture(users ...*models.User) (*UserService, *mockUserRepo, *auditRecorder) {
	repo := newMockUserRepo(users...)
	audit := &auditRecorder{}
	return NewUserService(repo, audit, validator.New(), zap.NewNop()), repo, audit
}

func appStatus(t *testing.T, err error) int {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected app error, got %v", err)
	return appErr.Status
}

func TestUserServiceRequiresOfficer(t *testing.T) {
	svc, _, _ := newUserServiceFixture(committeeAccount())

	_, _, err := svc.List(context.Background(), dto.ListUsersQuery{}, &models.JWTClaims{UserID: "member-1", Role: models.RoleCommittee})
	assert.Equal(t, http.StatusForbidden, appStatus(t, err))

	_, err = svc.Get(context.Background(), "member-1", nil)
	assert.Equal(t, http.StatusUnauthorized, appStatus(t, err))
}

func TestUserServiceListNormalisesFilter(t *testing.T) {
	svc, repo, _ := newUserServiceFixture(committeeAccount())
	active := true

	users, pagination, err := svc.List(context.Background(), dto.ListUsersQuery{Role: "committee", Active: &active, PageSize: 500}, officer)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, repo.listFilter.Role)
	assert.Equal(t, models.RoleCommittee, *repo.listFilter.Role)
	assert.True(t, *repo.listFilter.Active)

	_, _, err = svc.List(context.Background(), dto.ListUsersQuery{Role: "SYSTEM"}, officer)
	assert.Equal(t, http.StatusBadRequest, appStatus(t, err))
}

func TestUserServiceCreate(t *testing.T) {
	svc, repo, audit := newUserServiceFixture()

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: " New.Member@School.edu ", FullName: "New Member", Role: models.RoleCommittee, Password: "s3cure-pass",
	}, officer)
	require.NoError(t, err)
	assert.Equal(t, "new.member@school.edu", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[user.ID].PasswordHash), []byte("s3cure-pass")))
	assert.Equal(t, []string{models.AuditActionUserCreate}, audit.actions())
	assert.NotContains(t, string(audit.logs[0].NewValues), "s3cure-pass")
}

func TestUserServiceCreateRejectsDuplicateAndWeakPassword(t *testing.T) {
	svc, _, audit := newUserServiceFixture(committeeAccount())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "member@school.edu", FullName: "Someone", Role: models.RoleCommittee, Password: "long-enough",
	}, officer)
	assert.Equal(t, http.StatusConflict, appStatus(t, err))

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "other@school.edu", FullName: "Someone", Role: models.RoleCommittee, Password: "short",
	}, officer)
	assert.Equal(t, http.StatusBadRequest, appStatus(t, err))
	assert.Empty(t, audit.logs)
}

func TestUserServiceUpdateChangesPasswordAndRevokesSessions(t *testing.T) {
	svc, repo, audit := newUserServiceFixture(committeeAccount())

	user, err := svc.Update(context.Background(), "member-1", dto.UpdateUserRequest{
		Email: "member@school.edu", FullName: "Renamed Member", Role: models.RoleAdmin, Password: "another-pass",
	}, officer)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Member", user.FullName)
	assert.Equal(t, models.RoleAdmin, repo.users["member-1"].Role)
	assert.NotEmpty(t, repo.passwords["member-1"])
	assert.Equal(t, []string{"member-1"}, repo.revokedFor)
	require.Len(t, audit.logs, 1)
	assert.Contains(t, string(audit.logs[0].NewValues), "passwordChanged")
}

func TestUserServiceUpdateGuards(t *testing.T) {
	self := &models.User{ID: "officer-1", Email: "officer@school.edu", FullName: "Officer", Role: models.RoleAdmin, Active: true}
	svc, repo, _ := newUserServiceFixture(self, committeeAccount())

	_, err := svc.Update(context.Background(), "officer-1", dto.UpdateUserRequest{
		Email: "officer@school.edu", FullName: "Officer", Role: models.RoleCommittee,
	}, officer)
	assert.Equal(t, http.StatusForbidden, appStatus(t, err))

	_, err = svc.Update(context.Background(), "member-1", dto.UpdateUserRequest{
		Email: "officer@school.edu", FullName: "Member", Role: models.RoleCommittee,
	}, officer)
	assert.Equal(t, http.StatusConflict, appStatus(t, err))

	_, err = svc.Update(context.Background(), "ghost", dto.UpdateUserRequest{
		Email: "ghost@school.edu", FullName: "Ghost", Role: models.RoleCommittee,
	}, officer)
	assert.Equal(t, http.StatusNotFound, appStatus(t, err))
	assert.Zero(t, repo.updateCalls)
}

func TestUserServiceSetActive(t *testing.T) {
	self := &models.User{ID: "officer-1", Email: "officer@school.edu", Role: models.RoleAdmin, Active: true}
	svc, repo, audit := newUserServiceFixture(self, committeeAccount())

	_, err := svc.SetActive(context.Background(), "officer-1", false, officer)
	assert.Equal(t, http.StatusForbidden, appStatus(t, err))

	user, err := svc.SetActive(context.Background(), "member-1", false, officer)
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Equal(t, []string{"member-1"}, repo.revokedFor)
	assert.Equal(t, []string{models.AuditActionUserStatus}, audit.actions())

	// no-op when already in the requested state
	_, err = svc.SetActive(context.Background(), "member-1", false, officer)
	require.NoError(t, err)
	assert.Len(t, audit.logs, 1)
}
