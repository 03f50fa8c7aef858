// Package common defines the shared identifier and DTO types used across
// every layer of the territory allocation engine.
package common

import (
	"time"

	"github.com/google/uuid"
)

// ID is a string alias for UUID v4.
type ID string

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// TenantID is a string alias for a tenant identifier.  Tenant identity is
// supplied by the external identity store; the engine trusts a pre-validated
// value and never mints these itself.
type TenantID string

// Slot identifies one exclusive placement tier.  The non-overlap invariant is
// enforced independently per slot; the set of valid slots is exactly the set
// of configured pricing policies.
type Slot string

// Pagination defines parameters for paginated list requests.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total,omitempty"`
}

// Normalize clamps pagination values into sane bounds.
func (p *Pagination) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

// Offset returns the row offset for the current page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// BaseEntity carries audit metadata shared by persisted aggregates.
type BaseEntity struct {
	ID        ID        `json:"id"`
	TenantID  TenantID  `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
