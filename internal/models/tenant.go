package models

import "time"

// TenantStatus enumerates the lifecycle states of a tenant. Tenants are
// never deleted physically, only transitioned.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantInactive  TenantStatus = "inactive"
	TenantSuspended TenantStatus = "suspended"
	TenantDeleted   TenantStatus = "deleted"
)

// Valid reports whether the status is a known lifecycle state.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantActive, TenantInactive, TenantSuspended, TenantDeleted:
		return true
	}
	return false
}

// Tenant is a row of the control database's tenant directory.
// DatabaseName identifies the physical partition serving the tenant and is
// immutable after creation.
type Tenant struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Slug         string       `db:"slug" json:"slug"`
	DatabaseName string       `db:"database_name" json:"-"`
	Status       TenantStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// Usable reports whether requests may be served for this tenant.
func (t *Tenant) Usable() bool {
	return t != nil && t.Status == TenantActive
}

// CreateTenantRequest provisions a directory entry. The database itself is
// created by the external provisioning flow; only the identifier is recorded.
type CreateTenantRequest struct {
	Name         string `json:"name" validate:"required"`
	Slug         string `json:"slug" validate:"required,lowercase"`
	DatabaseName string `json:"database_name" validate:"required"`
}

// UpdateTenantStatusRequest transitions a tenant's lifecycle state.
type UpdateTenantStatusRequest struct {
	Status TenantStatus `json:"status" validate:"required"`
}
