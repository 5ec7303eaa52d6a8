package models

import (
	"time"

	"github.com/lib/pq"
)

// User represents an application user stored in a tenant's users table.
// TenantID is not a column: the row lives inside the tenant's own database
// and the field is populated from the resolved tenant so issued claims can
// carry it.
type User struct {
	ID           string         `db:"id" json:"id"`
	TenantID     string         `db:"-" json:"tenant_id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	FullName     string         `db:"full_name" json:"full_name"`
	Role         Role           `db:"role" json:"role"`
	Roles        pq.StringArray `db:"roles" json:"roles"`
	Verified     bool           `db:"verified" json:"verified"`
	Active       bool           `db:"active" json:"active"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// AllRoles returns every role assigned to the user, always including the
// primary role.
func (u *User) AllRoles() []Role {
	roles := make([]Role, 0, len(u.Roles)+1)
	roles = append(roles, u.Role)
	for _, raw := range u.Roles {
		if r, ok := ParseRole(raw); ok && r != u.Role {
			roles = append(roles, r)
		}
	}
	return roles
}

// HasMultipleRoles reports whether more than one role is assigned.
func (u *User) HasMultipleRoles() bool {
	return len(u.AllRoles()) > 1
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *Role
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
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalizes page values the same way the list queries do.
func NewPagination(page, pageSize, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return &Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

// UpdateProfileRequest mutates the caller's own profile.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" validate:"required,min=2"`
}

// UpdateRoleRequest changes a user's primary role (admin operation).
type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required"`
}
