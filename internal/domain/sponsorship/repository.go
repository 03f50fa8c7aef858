package sponsorship

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Repository is the persistence port for sponsorships.
type Repository interface {
	// Create persists a new sponsorship.
	Create(ctx context.Context, s *Sponsorship) error

	// GetByID loads one sponsorship.  Returns CodeSponsorshipNotFound when no
	// row exists.
	GetByID(ctx context.Context, id common.ID) (*Sponsorship, error)

	// GetByIdempotencyKey returns the tenant's sponsorship previously created
	// under the given key, or CodeSponsorshipNotFound.
	GetByIdempotencyKey(ctx context.Context, tenantID common.TenantID, key string) (*Sponsorship, error)

	// Update persists status, payment, and period changes.
	Update(ctx context.Context, s *Sponsorship) error

	// ListHoldingInBounds returns every sponsorship, across all territories,
	// whose status still holds geometry in the slot and whose bounding box
	// intersects bound.  The non-overlap invariant is global per slot, so
	// availability must see competing claims wherever they were purchased;
	// the bound keeps the candidate set small.
	ListHoldingInBounds(ctx context.Context, slot common.Slot, bound orb.Bound) ([]*Sponsorship, error)

	// ListByTenant returns the tenant's sponsorships, newest first.
	ListByTenant(ctx context.Context, tenantID common.TenantID, page common.Pagination) ([]*Sponsorship, int64, error)

	// ListDueForRollover returns sponsorships whose paid period ends at or
	// before the cutoff and which are active or lapsing, up to limit rows.
	ListDueForRollover(ctx context.Context, cutoff time.Time, limit int) ([]*Sponsorship, error)
}

// TxRepository extends Repository with the serialized reservation scope.
// Everything inside the WithinSlotTx callback runs in one transaction that
// holds the slot's allocation lock, so the availability a reservation
// recomputes cannot change before its insert commits.
type TxRepository interface {
	Repository

	// WithinSlotTx runs fn in a transaction holding the exclusive allocation
	// lock for the slot.  The repository passed to fn operates inside that
	// transaction.  A serialization failure is retried once before surfacing
	// as a conflict.
	WithinSlotTx(ctx context.Context, slot common.Slot, fn func(ctx context.Context, repo Repository) error) error
}
