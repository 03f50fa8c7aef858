package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

type idemKey struct {
	tenant common.TenantID
	key    string
}

// SponsorshipRepository is an in-memory sponsorship.TxRepository.  The
// per-slot mutex in WithinSlotTx mirrors the advisory lock the postgres
// implementation takes, so concurrent reserve tests exercise the same
// serialization the production path has.
type SponsorshipRepository struct {
	mu    sync.RWMutex
	items map[common.ID]sponsorship.Sponsorship
	idem  map[idemKey]common.ID

	lockMu sync.Mutex
	locks  map[common.Slot]*sync.Mutex
}

// NewSponsorshipRepository returns an empty repository.
func NewSponsorshipRepository() *SponsorshipRepository {
	return &SponsorshipRepository{
		items: make(map[common.ID]sponsorship.Sponsorship),
		idem:  make(map[idemKey]common.ID),
		locks: make(map[common.Slot]*sync.Mutex),
	}
}

func (r *SponsorshipRepository) Create(_ context.Context, s *sponsorship.Sponsorship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[s.ID]; exists {
		return errors.New(errors.CodeConflict, "sponsorship already exists").
			WithDetail("sponsorship_id=" + string(s.ID))
	}
	ik := idemKey{tenant: s.TenantID, key: s.IdempotencyKey}
	if _, exists := r.idem[ik]; exists {
		return errors.New(errors.CodeConflict, "idempotency key already used").
			WithDetail("idempotency_key=" + s.IdempotencyKey)
	}
	r.items[s.ID] = *s
	r.idem[ik] = s.ID
	return nil
}

func (r *SponsorshipRepository) GetByID(_ context.Context, id common.ID) (*sponsorship.Sponsorship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found").
			WithDetail("sponsorship_id=" + string(id))
	}
	return &s, nil
}

func (r *SponsorshipRepository) GetByIdempotencyKey(_ context.Context, tenantID common.TenantID, key string) (*sponsorship.Sponsorship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idem[idemKey{tenant: tenantID, key: key}]
	if !ok {
		return nil, errors.New(errors.CodeSponsorshipNotFound, "no sponsorship for idempotency key").
			WithDetail("idempotency_key=" + key)
	}
	s := r.items[id]
	return &s, nil
}

func (r *SponsorshipRepository) Update(_ context.Context, s *sponsorship.Sponsorship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return errors.New(errors.CodeSponsorshipNotFound, "sponsorship not found").
			WithDetail("sponsorship_id=" + string(s.ID))
	}
	r.items[s.ID] = *s
	return nil
}

func (r *SponsorshipRepository) ListHoldingInBounds(_ context.Context, slot common.Slot, bound orb.Bound) ([]*sponsorship.Sponsorship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*sponsorship.Sponsorship
	for id := range r.items {
		s := r.items[id]
		if s.Slot != slot || !s.HoldsGeometry() {
			continue
		}
		sb, ok := s.Geometry.Bound()
		if !ok || !bound.Intersects(sb) {
			continue
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *SponsorshipRepository) ListByTenant(_ context.Context, tenantID common.TenantID, page common.Pagination) ([]*sponsorship.Sponsorship, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*sponsorship.Sponsorship
	for id := range r.items {
		s := r.items[id]
		if s.TenantID == tenantID {
			all = append(all, &s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	page.Normalize()
	start := page.Offset()
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + page.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *SponsorshipRepository) ListDueForRollover(_ context.Context, cutoff time.Time, limit int) ([]*sponsorship.Sponsorship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*sponsorship.Sponsorship
	for id := range r.items {
		s := r.items[id]
		switch s.Status {
		case sponsorship.StatusActive, sponsorship.StatusCancelAtPeriodEnd:
			if !s.PeriodEnd.After(cutoff) {
				out = append(out, &s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodEnd.Before(out[j].PeriodEnd) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// WithinSlotTx serializes callers per slot, the in-memory analogue of
// pg_advisory_xact_lock.
func (r *SponsorshipRepository) WithinSlotTx(ctx context.Context, slot common.Slot, fn func(ctx context.Context, repo sponsorship.Repository) error) error {
	lock := r.slotLock(slot)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx, r)
}

func (r *SponsorshipRepository) slotLock(slot common.Slot) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.locks[slot]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[slot] = lock
	}
	return lock
}
