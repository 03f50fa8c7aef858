package territory

import (
	"context"

	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Repository is the persistence port for territories.  Implementations live
// in internal/infrastructure/database; the domain layer depends only on this
// interface.
type Repository interface {
	// Create persists a new territory.
	Create(ctx context.Context, t *Territory) error

	// GetByID loads one territory.  Returns CodeTerritoryNotFound when no row
	// exists.
	GetByID(ctx context.Context, id common.ID) (*Territory, error)

	// Update persists name, geometry, area, and version changes.  Returns
	// CodeTerritoryNotFound when the row has disappeared.
	Update(ctx context.Context, t *Territory) error

	// ListByTenant returns the tenant's territories ordered by creation time,
	// newest first, along with the total count for pagination.
	ListByTenant(ctx context.Context, tenantID common.TenantID, page common.Pagination) ([]*Territory, int64, error)

	// Delete removes a territory.  Callers are responsible for refusing the
	// delete while live sponsorships reference it.
	Delete(ctx context.Context, id common.ID) error
}
