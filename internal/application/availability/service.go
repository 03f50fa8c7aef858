package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/logging"
	"github.com/mapslot/territory-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Preview is the answer to "what is left to buy in this slot, and at what
// price".  It is advisory only: the reserve transaction recomputes
// availability before committing, so a stale preview can never oversell.
//
// Quote is nil when the slot is sold out or the remainder is below the
// slot's minimum purchasable area; Reason says which.
type Preview struct {
	TerritoryID      common.ID       `json:"territory_id"`
	TerritoryVersion int             `json:"territory_version"`
	Slot             common.Slot     `json:"slot"`
	Remainder        json.RawMessage `json:"remainder"`
	AreaKm2          float64         `json:"area_km2"`
	SoldOut          bool            `json:"sold_out"`
	Reason           string          `json:"reason,omitempty"`
	Quote            *pricing.Quote  `json:"quote,omitempty"`
	ComputedAt       time.Time       `json:"computed_at"`
}

// Preview reasons for a missing quote.
const (
	ReasonSoldOut          = "sold_out"
	ReasonBelowMinimumArea = "below_minimum_area"
)

// Cache is the preview cache port.  Implementations must be best-effort: a
// miss or a backend failure degrades to recomputation, never to a request
// failure.
type Cache interface {
	Get(ctx context.Context, key string) (*Preview, bool)
	Set(ctx context.Context, key string, p *Preview)
	InvalidateTerritory(ctx context.Context, territoryID common.ID)
}

// NopCache caches nothing.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Preview, bool)     { return nil, false }
func (NopCache) Set(context.Context, string, *Preview)            {}
func (NopCache) InvalidateTerritory(context.Context, common.ID)   {}

// CacheKey builds the preview cache key.  The territory version is part of
// the key, so a redraw orphans every cached preview of the old boundary.
// The tenant is part of the key because a tenant's own holdings are excluded
// from their remainder; two tenants can see different previews of the same
// slot.
func CacheKey(territoryID common.ID, version int, slot common.Slot, tenantID common.TenantID) string {
	return fmt.Sprintf("%s:v%d:%s:%s", territoryID, version, slot, tenantID)
}

// Service computes and caches availability previews.
type Service struct {
	territories  territory.Repository
	sponsorships sponsorship.Repository
	pricer       *pricing.Engine
	cache        Cache
	logger       logging.Logger
	metrics      *prometheus.AppMetrics
}

// NewService wires an availability service.  Pass NopCache when redis is
// disabled and nil metrics outside the server.
func NewService(
	territories territory.Repository,
	sponsorships sponsorship.Repository,
	pricer *pricing.Engine,
	cache Cache,
	logger logging.Logger,
	metrics *prometheus.AppMetrics,
) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		territories:  territories,
		sponsorships: sponsorships,
		pricer:       pricer,
		cache:        cache,
		logger:       logger,
		metrics:      metrics,
	}
}

// Preview returns the purchasable remainder of one territory slot for the
// requesting tenant.
func (s *Service) Preview(ctx context.Context, tenantID common.TenantID, territoryID common.ID, slot common.Slot) (*Preview, error) {
	start := time.Now()

	if !s.pricer.Policies().Has(slot) {
		return nil, errors.New(errors.CodeSlotUnknown, "unknown placement slot").
			WithDetail("slot=" + string(slot))
	}

	ter, err := s.territories.GetByID(ctx, territoryID)
	if err != nil {
		return nil, err
	}
	if err := ter.EnsureOwnedBy(tenantID); err != nil {
		return nil, err
	}

	key := CacheKey(ter.ID, ter.Version, slot, tenantID)
	if cached, ok := s.cache.Get(ctx, key); ok {
		prometheus.RecordCacheAccess(s.metrics, "preview", true)
		prometheus.RecordPreview(s.metrics, string(slot), cached.SoldOut, time.Since(start))
		return cached, nil
	}
	prometheus.RecordCacheAccess(s.metrics, "preview", false)

	preview, err := s.compute(ctx, ter, slot, tenantID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, preview)
	prometheus.RecordPreview(s.metrics, string(slot), preview.SoldOut, time.Since(start))
	s.logger.Debug("availability preview computed",
		logging.String("territory_id", string(ter.ID)),
		logging.String("slot", string(slot)),
		logging.Float64("area_km2", preview.AreaKm2),
		logging.Bool("sold_out", preview.SoldOut),
	)
	return preview, nil
}

func (s *Service) compute(ctx context.Context, ter *territory.Territory, slot common.Slot, tenantID common.TenantID) (*Preview, error) {
	bound, ok := ter.Geometry.Bound()
	if !ok {
		return nil, errors.New(errors.CodeGeometryInvalid, "territory has no geometry").
			WithDetail("territory_id=" + string(ter.ID))
	}
	holders, err := s.sponsorships.ListHoldingInBounds(ctx, slot, bound)
	if err != nil {
		return nil, err
	}

	remainder, err := Compute(ter.Geometry, CompetingShapes(holders, tenantID))
	if err != nil {
		return nil, err
	}

	remainderJSON, err := remainder.MarshalGeoJSON()
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		TerritoryID:      ter.ID,
		TerritoryVersion: ter.Version,
		Slot:             slot,
		Remainder:        remainderJSON,
		AreaKm2:          geometry.Area(remainder),
		SoldOut:          remainder.IsEmpty(),
		ComputedAt:       time.Now().UTC(),
	}
	if preview.SoldOut {
		preview.Reason = ReasonSoldOut
		return preview, nil
	}

	quote, err := s.pricer.Quote(slot, preview.AreaKm2)
	switch {
	case err == nil:
		preview.Quote = &quote
	case errors.IsCode(err, errors.CodeAreaBelowMinimum):
		// A remainder smaller than the minimum purchasable size is visible
		// but not sellable; the quote stays nil.
		preview.Reason = ReasonBelowMinimumArea
	default:
		return nil, err
	}
	return preview, nil
}

// Invalidate drops every cached preview for a territory.  Called after any
// mutation that changes availability: reservations, lifecycle transitions,
// and boundary redraws.
func (s *Service) Invalidate(ctx context.Context, territoryID common.ID) {
	s.cache.InvalidateTerritory(ctx, territoryID)
}
