package dto

import "github.com/noah-isme/watch-api/internal/models"

// CreateUserRequest registers a new office account.
type CreateUserRequest struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	FullName string          `json:"fullName" validate:"required,max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN COMMITTEE"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest edits an account. An empty password keeps the current one.
type UpdateUserRequest struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	FullName string          `json:"fullName" validate:"required,max=150"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN COMMITTEE"`
	Password string          `json:"password" validate:"omitempty,min=8,max=72"`
}

// SetUserStatusRequest activates or deactivates an account.
type SetUserStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ListUsersQuery carries query parameters for the account listing.
type ListUsersQuery struct {
	Role      string `form:"role"`
	Active    *bool  `form:"active"`
	Search    string `form:"search"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder"`
}
