package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/watch-api/internal/dto"
	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
	appErrors "github.com/noah-isme/watch-api/pkg/errors"
)

type userAccountRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// UserService lets the discipline officer manage office accounts.
type UserService struct {
	repo      userAccountRepository
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userAccountRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		audit:     auditTrail{repo: audit, logger: logger, source: "user-service"},
		validator: validate,
		logger:    logger,
	}
}

func requireAccountManager(actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only the discipline officer may manage accounts")
	}
	return nil
}

// List returns one page of accounts.
func (s *UserService) List(ctx context.Context, query dto.ListUsersQuery, actor *models.JWTClaims) ([]models.User, *models.Pagination, error) {
	if err := requireAccountManager(actor); err != nil {
		return nil, nil, err
	}

	filter := models.UserFilter{
		Active:    query.Active,
		Search:    query.Search,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Role != "" {
		role := models.UserRole(strings.ToUpper(query.Role))
		if role != models.RoleAdmin && role != models.RoleCommittee {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "role must be ADMIN or COMMITTEE")
		}
		filter.Role = &role
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.User, error) {
	if err := requireAccountManager(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create registers a new account with a bcrypt hashed password.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if err := requireAccountManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit.record(ctx, actor, models.AuditActionUserCreate, "users", user.ID, nil, accountSnapshot(user))
	return user, nil
}

// Update edits an account. Changing the password signs the account out everywhere.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if err := requireAccountManager(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID == actor.UserID && req.Role != user.Role {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot change your own role")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != strings.ToLower(user.Email) {
		existing, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != user.ID:
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
	}

	before := accountSnapshot(user)
	user.Email = email
	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	after := accountSnapshot(user)
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
		s.revokeSessions(ctx, user.ID)
		after["passwordChanged"] = true
	}

	s.audit.record(ctx, actor, models.AuditActionUserUpdate, "users", user.ID, before, after)
	return user, nil
}

// SetActive activates or deactivates an account. Officers cannot deactivate themselves.
func (s *UserService) SetActive(ctx context.Context, id string, active bool, actor *models.JWTClaims) (*models.User, error) {
	if err := requireAccountManager(actor); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !active && user.ID == actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you cannot deactivate your own account")
	}
	if user.Active == active {
		return user, nil
	}

	user.Active = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	if !active {
		s.revokeSessions(ctx, user.ID)
	}

	s.audit.record(ctx, actor, models.AuditActionUserStatus, "users", user.ID,
		map[string]interface{}{"active": !active}, map[string]interface{}{"active": active})
	return user, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// revokeSessions is best effort; the access token still expires on its own.
func (s *UserService) revokeSessions(ctx context.Context, userID string) {
	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens", zap.String("user_id", userID), zap.Error(err))
	}
}

func accountSnapshot(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"email":    user.Email,
		"fullName": user.FullName,
		"role":     user.Role,
		"active":   user.Active,
	}
}
