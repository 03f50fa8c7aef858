// Package territory defines the Territory aggregate: a named, tenant-owned
// region whose geometry is the universe that placement slots are sold
// against.
package territory

import (
	"time"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Territory is a sellable region.  Geometry is stored normalized; AreaKm2 is
// denormalized from it at write time so list endpoints never recompute
// geodesic area.  Version increments on every redraw, letting sponsorships
// record which revision of the boundary they were sold against.
type Territory struct {
	common.BaseEntity
	Name     string         `json:"name"`
	Geometry geometry.Shape `json:"-"`
	AreaKm2  float64        `json:"area_km2"`
	Version  int            `json:"version"`
}

// New validates inputs and constructs a Territory at version 1.  The shape is
// validated first and normalized after, so callers get told about unclosed
// rings instead of having them silently repaired.
func New(tenantID common.TenantID, name string, shape geometry.Shape) (*Territory, error) {
	if tenantID == "" {
		return nil, errors.InvalidParam("tenant id is required")
	}
	if name == "" {
		return nil, errors.New(errors.CodeTerritoryNameEmpty, "territory name is required")
	}
	if err := geometry.Validate(shape); err != nil {
		return nil, err
	}
	shape = geometry.Normalize(shape)

	now := time.Now().UTC()
	return &Territory{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			TenantID:  tenantID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Name:     name,
		Geometry: shape,
		AreaKm2:  geometry.Area(shape),
		Version:  1,
	}, nil
}

// Rename updates the display name.
func (t *Territory) Rename(name string) error {
	if name == "" {
		return errors.New(errors.CodeTerritoryNameEmpty, "territory name is required")
	}
	t.Name = name
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Redraw replaces the boundary and bumps the version.  Existing sponsorships
// keep the geometry they purchased; only future previews and reservations see
// the new boundary.
func (t *Territory) Redraw(shape geometry.Shape) error {
	if err := geometry.Validate(shape); err != nil {
		return err
	}
	shape = geometry.Normalize(shape)
	t.Geometry = shape
	t.AreaKm2 = geometry.Area(shape)
	t.Version++
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// EnsureOwnedBy returns CodeTerritoryNotOwned when the territory belongs to a
// different tenant.  Handlers call this after every load so cross-tenant IDs
// read as forbidden, not as not-found probes against other tenants' data.
func (t *Territory) EnsureOwnedBy(tenantID common.TenantID) error {
	if t.TenantID != tenantID {
		return errors.New(errors.CodeTerritoryNotOwned, "territory belongs to another tenant").
			WithDetail("territory_id=" + string(t.ID))
	}
	return nil
}
