package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	// RoleAdmin is the discipline officer with full access.
	RoleAdmin UserRole = "ADMIN"
	// RoleCommittee members may read and create cases only.
	RoleCommittee UserRole = "COMMITTEE"
	// RoleSystem is carried by the scheduled purge trigger.
	RoleSystem UserRole = "SYSTEM"
)

// SystemActorID identifies automated actions in audit logs and deleted_by columns.
const SystemActorID = "system"

// SystemActor returns the claims used by the scheduled purge.
func SystemActor() *JWTClaims {
	return &JWTClaims{UserID: SystemActorID, Role: RoleSystem, FullName: "Scheduled purge"}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing accounts.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
