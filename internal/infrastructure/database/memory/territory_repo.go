// Package memory provides map-backed repository implementations used by unit
// tests and local development.  They honor the same error codes and tx
// semantics as the postgres repositories, with a per-key mutex standing in
// for the database advisory lock.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// TerritoryRepository is an in-memory territory.Repository.
type TerritoryRepository struct {
	mu    sync.RWMutex
	items map[common.ID]territory.Territory
}

// NewTerritoryRepository returns an empty repository.
func NewTerritoryRepository() *TerritoryRepository {
	return &TerritoryRepository{items: make(map[common.ID]territory.Territory)}
}

func (r *TerritoryRepository) Create(_ context.Context, t *territory.Territory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[t.ID]; exists {
		return errors.New(errors.CodeConflict, "territory already exists").
			WithDetail("territory_id=" + string(t.ID))
	}
	r.items[t.ID] = *t
	return nil
}

func (r *TerritoryRepository) GetByID(_ context.Context, id common.ID) (*territory.Territory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return nil, errors.New(errors.CodeTerritoryNotFound, "territory not found").
			WithDetail("territory_id=" + string(id))
	}
	return &t, nil
}

func (r *TerritoryRepository) Update(_ context.Context, t *territory.Territory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[t.ID]; !ok {
		return errors.New(errors.CodeTerritoryNotFound, "territory not found").
			WithDetail("territory_id=" + string(t.ID))
	}
	r.items[t.ID] = *t
	return nil
}

func (r *TerritoryRepository) ListByTenant(_ context.Context, tenantID common.TenantID, page common.Pagination) ([]*territory.Territory, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*territory.Territory
	for id := range r.items {
		t := r.items[id]
		if t.TenantID == tenantID {
			all = append(all, &t)
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

func (r *TerritoryRepository) Delete(_ context.Context, id common.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return errors.New(errors.CodeTerritoryNotFound, "territory not found").
			WithDetail("territory_id=" + string(id))
	}
	delete(r.items, id)
	return nil
}
