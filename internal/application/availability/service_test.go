package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/domain/territory"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/memory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// side of a roughly 2 km square at the equator, in degrees.
const side = 0.018

func square(lon, lat, s float64) geometry.Shape {
	return geometry.FromPolygon(orb.Polygon{{
		{lon, lat}, {lon + s, lat}, {lon + s, lat + s}, {lon, lat + s}, {lon, lat},
	}})
}

func testEngine() *pricing.Engine {
	return pricing.NewEngine(pricing.NewPolicySet([]config.PricingPolicyConfig{
		{Slot: "featured", RatePerKm2: 15.0, FloorPrice: 1.0, Currency: "USD", BillingPeriod: 30 * 24 * time.Hour},
	}))
}

type fixture struct {
	territories  *memory.TerritoryRepository
	sponsorships *memory.SponsorshipRepository
	svc          *Service
	ter          *territory.Territory
}

func newFixture(t *testing.T, cache Cache) *fixture {
	t.Helper()
	territories := memory.NewTerritoryRepository()
	sponsorships := memory.NewSponsorshipRepository()

	ter, err := territory.New("tenant-a", "Downtown", square(0, 0, side))
	require.NoError(t, err)
	require.NoError(t, territories.Create(context.Background(), ter))

	return &fixture{
		territories:  territories,
		sponsorships: sponsorships,
		svc:          NewService(territories, sponsorships, testEngine(), cache, nil, nil),
		ter:          ter,
	}
}

func (f *fixture) addHolder(t *testing.T, shape geometry.Shape, key string, status sponsorship.Status) {
	t.Helper()
	s, err := sponsorship.New(sponsorship.NewParams{
		TenantID:         "tenant-b",
		TerritoryID:      f.ter.ID,
		TerritoryVersion: f.ter.Version,
		Slot:             "featured",
		Geometry:         shape,
		AreaKm2:          geometry.Area(shape),
		Price:            decimal.RequireFromString("30.00"),
		Currency:         "USD",
		IdempotencyKey:   key,
		BillingPeriod:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	switch status {
	case sponsorship.StatusActive:
		require.NoError(t, s.Activate("pay", time.Now()))
	case sponsorship.StatusCanceled:
		require.NoError(t, s.FailPayment("declined"))
	}
	require.NoError(t, f.sponsorships.Create(context.Background(), s))
}

func TestCompetingShapes_Filtering(t *testing.T) {
	held, err := sponsorship.New(sponsorship.NewParams{
		TenantID: "tenant-b", TerritoryID: "ter", Slot: "featured",
		Geometry: square(0, 0, side/2), AreaKm2: 1,
		IdempotencyKey: "k1", BillingPeriod: time.Hour,
	})
	require.NoError(t, err)
	released, err := sponsorship.New(sponsorship.NewParams{
		TenantID: "tenant-b", TerritoryID: "ter", Slot: "featured",
		Geometry: square(side/2, side/2, side/2), AreaKm2: 1,
		IdempotencyKey: "k2", BillingPeriod: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, released.FailPayment("declined"))
	own, err := sponsorship.New(sponsorship.NewParams{
		TenantID: "tenant-a", TerritoryID: "ter", Slot: "featured",
		Geometry: square(side/2, 0, side/2), AreaKm2: 1,
		IdempotencyKey: "k3", BillingPeriod: time.Hour,
	})
	require.NoError(t, err)

	all := []*sponsorship.Sponsorship{held, released, own}
	// Released holds nothing; the requester's own claim never blocks them.
	assert.Len(t, CompetingShapes(all, "tenant-a"), 1)
	assert.Len(t, CompetingShapes(all, "tenant-c"), 2)
}

func TestCompute_SubtractsCompeting(t *testing.T) {
	boundary := square(0, 0, side)
	remainder, err := Compute(boundary, []geometry.Shape{square(0, 0, side/2)})
	require.NoError(t, err)
	assert.InDelta(t, geometry.Area(boundary)*0.75, geometry.Area(remainder), 0.05)
}

func TestPreview_FreshTerritory(t *testing.T) {
	f := newFixture(t, nil)

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)

	assert.False(t, p.SoldOut)
	assert.InDelta(t, 4.0, p.AreaKm2, 0.1)
	require.NotNil(t, p.Quote)
	assert.Equal(t, "USD", p.Quote.Currency)
	assert.Equal(t, f.ter.Version, p.TerritoryVersion)
	assert.NotEmpty(t, p.Remainder)
}

func TestPreview_RemainderPricing(t *testing.T) {
	f := newFixture(t, nil)
	// The western half is already held, leaving about 2 km² at 15/km².
	westHalf := geometry.FromPolygon(orb.Polygon{{
		{0, 0}, {side / 2, 0}, {side / 2, side}, {0, side}, {0, 0},
	}})
	f.addHolder(t, westHalf, "key-1", sponsorship.StatusActive)

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)

	assert.False(t, p.SoldOut)
	assert.InDelta(t, 2.0, p.AreaKm2, 0.1)
	require.NotNil(t, p.Quote)
	// About 2 km² at 15/km²; exact cents depend on the geodesic area.
	price, _ := p.Quote.Amount.Float64()
	assert.InDelta(t, 30.0, price, 1.5)
}

func TestPreview_SoldOut(t *testing.T) {
	f := newFixture(t, nil)
	f.addHolder(t, square(0, 0, side), "key-1", sponsorship.StatusActive)

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)

	assert.True(t, p.SoldOut)
	assert.Equal(t, ReasonSoldOut, p.Reason)
	assert.Nil(t, p.Quote)
	assert.InDelta(t, 0, p.AreaKm2, geometry.EpsilonKm2)
}

func TestPreview_OwnHoldingNeverBlocks(t *testing.T) {
	f := newFixture(t, nil)
	// tenant-a already holds the whole square themselves.
	s, err := sponsorship.New(sponsorship.NewParams{
		TenantID:         "tenant-a",
		TerritoryID:      f.ter.ID,
		TerritoryVersion: f.ter.Version,
		Slot:             "featured",
		Geometry:         square(0, 0, side),
		AreaKm2:          4.0,
		Price:            decimal.RequireFromString("60.00"),
		Currency:         "USD",
		IdempotencyKey:   "own-key",
		BillingPeriod:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, s.Activate("pay", time.Now()))
	require.NoError(t, f.sponsorships.Create(context.Background(), s))

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.False(t, p.SoldOut)
	assert.InDelta(t, 4.0, p.AreaKm2, 0.1)
}

func TestPreview_ProvisionalHoldBlocks(t *testing.T) {
	f := newFixture(t, nil)
	f.addHolder(t, square(0, 0, side), "key-1", sponsorship.StatusProvisional)

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.True(t, p.SoldOut)
}

func TestPreview_CanceledHoldReleases(t *testing.T) {
	f := newFixture(t, nil)
	f.addHolder(t, square(0, 0, side), "key-1", sponsorship.StatusCanceled)

	p, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.False(t, p.SoldOut)
	assert.InDelta(t, 4.0, p.AreaKm2, 0.1)
}

func TestPreview_UnknownSlot(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Preview(context.Background(), "tenant-a", f.ter.ID, "banner")
	assert.True(t, errors.IsCode(err, errors.CodeSlotUnknown))
}

func TestPreview_TerritoryNotFound(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Preview(context.Background(), "tenant-a", "missing", "featured")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotFound))
}

func TestPreview_WrongTenant(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Preview(context.Background(), "tenant-b", f.ter.ID, "featured")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotOwned))
}

// mapCache is a Cache backed by a plain map, for asserting hit/miss and
// invalidation behavior.
type mapCache struct {
	mu    sync.Mutex
	items map[string]*Preview
	hits  int
	sets  int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string]*Preview)}
}

func (c *mapCache) Get(_ context.Context, key string) (*Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[key]
	if ok {
		c.hits++
	}
	return p, ok
}

func (c *mapCache) Set(_ context.Context, key string, p *Preview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = p
	c.sets++
}

func (c *mapCache) InvalidateTerritory(_ context.Context, territoryID common.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.items {
		if p.TerritoryID == territoryID {
			delete(c.items, key)
		}
	}
}

func TestPreview_CacheRoundTrip(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)
	ctx := context.Background()

	first, err := f.svc.Preview(ctx, "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 0, cache.hits)

	second, err := f.svc.Preview(ctx, "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.ComputedAt, second.ComputedAt)

	f.svc.Invalidate(ctx, f.ter.ID)
	_, err = f.svc.Preview(ctx, "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
}

func TestPreview_RedrawOrphansCacheKey(t *testing.T) {
	cache := newMapCache()
	f := newFixture(t, cache)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)

	// Redraw bumps the version, so the next preview misses the cache even
	// without explicit invalidation.
	require.NoError(t, f.ter.Redraw(square(0, 0, side*2)))
	require.NoError(t, f.territories.Update(ctx, f.ter))

	p, err := f.svc.Preview(ctx, "tenant-a", f.ter.ID, "featured")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
	assert.InDelta(t, 16.0, p.AreaKm2, 0.4)
}

func TestCacheKey_DistinguishesAllDimensions(t *testing.T) {
	a := CacheKey("ter-1", 1, "featured", "tenant-a")
	assert.NotEqual(t, a, CacheKey("ter-1", 2, "featured", "tenant-a"))
	assert.NotEqual(t, a, CacheKey("ter-1", 1, "spotlight", "tenant-a"))
	assert.NotEqual(t, a, CacheKey("ter-1", 1, "featured", "tenant-b"))
}
