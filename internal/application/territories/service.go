// Package territories is the management service for territory boundaries:
// creation, renaming, redraws, and listing.  Selling against those
// boundaries lives in the allocation package.
package territories

import (
	"context"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Service manages territory aggregates on behalf of handlers and the CLI.
type Service struct {
	repo     territory.Repository
	previews *availability.Service
	logger   logging.Logger
}

// NewService wires a territory management service.
func NewService(repo territory.Repository, previews *availability.Service, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{repo: repo, previews: previews, logger: logger}
}

// Create validates the GeoJSON boundary and persists a new territory.
func (s *Service) Create(ctx context.Context, tenantID common.TenantID, name string, boundaryGeoJSON []byte) (*territory.Territory, error) {
	shape, err := geometry.UnmarshalGeoJSON(boundaryGeoJSON)
	if err != nil {
		return nil, err
	}
	ter, err := territory.New(tenantID, name, shape)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ter); err != nil {
		return nil, err
	}
	s.logger.Info("territory created",
		logging.String("territory_id", string(ter.ID)),
		logging.String("tenant_id", string(tenantID)),
		logging.Float64("area_km2", ter.AreaKm2),
	)
	return ter, nil
}

// Get loads a territory and enforces ownership.
func (s *Service) Get(ctx context.Context, tenantID common.TenantID, id common.ID) (*territory.Territory, error) {
	ter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ter.EnsureOwnedBy(tenantID); err != nil {
		return nil, err
	}
	return ter, nil
}

// Rename updates a territory's display name.
func (s *Service) Rename(ctx context.Context, tenantID common.TenantID, id common.ID, name string) (*territory.Territory, error) {
	ter, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ter.Rename(name); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ter); err != nil {
		return nil, err
	}
	return ter, nil
}

// Redraw replaces a territory's boundary.  Sold sponsorships keep their
// frozen geometry; the version bump plus explicit invalidation make sure no
// preview of the old boundary survives.
func (s *Service) Redraw(ctx context.Context, tenantID common.TenantID, id common.ID, boundaryGeoJSON []byte) (*territory.Territory, error) {
	shape, err := geometry.UnmarshalGeoJSON(boundaryGeoJSON)
	if err != nil {
		return nil, err
	}
	ter, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ter.Redraw(shape); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ter); err != nil {
		return nil, err
	}
	if s.previews != nil {
		s.previews.Invalidate(ctx, ter.ID)
	}
	s.logger.Info("territory redrawn",
		logging.String("territory_id", string(ter.ID)),
		logging.Int("version", ter.Version),
		logging.Float64("area_km2", ter.AreaKm2),
	)
	return ter, nil
}

// List returns a tenant's territories.
func (s *Service) List(ctx context.Context, tenantID common.TenantID, page common.Pagination) ([]*territory.Territory, int64, error) {
	return s.repo.ListByTenant(ctx, tenantID, page)
}

// Delete removes a territory.  Sponsorships sold against it keep their
// frozen geometry and lifecycle; only the boundary record goes away.
func (s *Service) Delete(ctx context.Context, tenantID common.TenantID, id common.ID) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.previews != nil {
		s.previews.Invalidate(ctx, id)
	}
	return nil
}
