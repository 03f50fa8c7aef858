package subscription

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/memory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

func testShape() geometry.Shape {
	return geometry.FromPolygon(orb.Polygon{{
		{0, 0}, {0.018, 0}, {0.018, 0.018}, {0, 0.018}, {0, 0},
	}})
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []sponsorship.Event
}

func (p *capturingPublisher) Publish(_ context.Context, ev sponsorship.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturingPublisher) types() []sponsorship.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]sponsorship.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fakeCharger struct {
	fail    bool
	charged []common.ID
}

func (c *fakeCharger) Charge(_ context.Context, s *sponsorship.Sponsorship) (string, error) {
	c.charged = append(c.charged, s.ID)
	if c.fail {
		return "", errors.New(errors.CodePaymentFailed, "card declined")
	}
	return "renew-" + string(s.ID), nil
}

type fixture struct {
	sponsorships *memory.SponsorshipRepository
	publisher    *capturingPublisher
	charger      *fakeCharger
	svc          *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	territories := memory.NewTerritoryRepository()
	sponsorships := memory.NewSponsorshipRepository()
	pricer := pricing.NewEngine(pricing.NewPolicySet([]config.PricingPolicyConfig{
		{Slot: "featured", RatePerKm2: 15.0, FloorPrice: 1.0, Currency: "USD", BillingPeriod: 30 * 24 * time.Hour},
	}))
	previews := availability.NewService(territories, sponsorships, pricer, nil, nil, nil)
	publisher := &capturingPublisher{}
	charger := &fakeCharger{}
	return &fixture{
		sponsorships: sponsorships,
		publisher:    publisher,
		charger:      charger,
		svc:          NewService(sponsorships, previews, charger, publisher, nil, nil),
	}
}

func (f *fixture) addProvisional(t *testing.T, key string) *sponsorship.Sponsorship {
	t.Helper()
	s, err := sponsorship.New(sponsorship.NewParams{
		TenantID:         "tenant-a",
		TerritoryID:      "ter-1",
		TerritoryVersion: 1,
		Slot:             "featured",
		Geometry:         testShape(),
		AreaKm2:          4.0,
		Price:            decimal.RequireFromString("60.00"),
		Currency:         "USD",
		IdempotencyKey:   key,
		BillingPeriod:    30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, f.sponsorships.Create(context.Background(), s))
	return s
}

func (f *fixture) addActive(t *testing.T, key string, activatedAt time.Time) *sponsorship.Sponsorship {
	t.Helper()
	s := f.addProvisional(t, key)
	require.NoError(t, s.Activate("pay-"+key, activatedAt))
	require.NoError(t, f.sponsorships.Update(context.Background(), s))
	return s
}

func TestConfirmPayment_Success(t *testing.T) {
	f := newFixture(t)
	s := f.addProvisional(t, "key-1")

	got, err := f.svc.ConfirmPayment(context.Background(), s.ID, true, "pay-123")
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusActive, got.Status)
	assert.Equal(t, "pay-123", got.PaymentRef)
	assert.False(t, got.PeriodEnd.IsZero())

	stored, err := f.sponsorships.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusActive, stored.Status)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventActivated}, f.publisher.types())
}

func TestConfirmPayment_Failure(t *testing.T) {
	f := newFixture(t)
	s := f.addProvisional(t, "key-1")

	got, err := f.svc.ConfirmPayment(context.Background(), s.ID, false, "card_declined")
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusCanceled, got.Status)
	assert.False(t, got.HoldsGeometry())
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventCanceled}, f.publisher.types())
}

func TestConfirmPayment_Duplicate(t *testing.T) {
	f := newFixture(t)
	s := f.addProvisional(t, "key-1")
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, s.ID, true, "pay-123")
	require.NoError(t, err)

	// Webhook retry: state is untouched, the error is distinguishable.
	got, err := f.svc.ConfirmPayment(ctx, s.ID, true, "pay-123")
	assert.True(t, errors.IsCode(err, errors.CodePaymentDuplicate))
	assert.Equal(t, sponsorship.StatusActive, got.Status)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventActivated}, f.publisher.types())
}

func TestConfirmPayment_UnknownSponsorship(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmPayment(context.Background(), "missing", true, "pay-123")
	assert.True(t, errors.IsCode(err, errors.CodeSponsorshipNotFound))
}

func TestCancel_Immediate(t *testing.T) {
	f := newFixture(t)
	s := f.addActive(t, "key-1", time.Now())

	got, err := f.svc.Cancel(context.Background(), "tenant-a", s.ID, true)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusCanceled, got.Status)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventCanceled}, f.publisher.types())
}

func TestCancel_AtPeriodEnd(t *testing.T) {
	f := newFixture(t)
	s := f.addActive(t, "key-1", time.Now())

	got, err := f.svc.Cancel(context.Background(), "tenant-a", s.ID, false)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusCancelAtPeriodEnd, got.Status)
	// Still blocks rivals until the period runs out.
	assert.True(t, got.HoldsGeometry())
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventLapsing}, f.publisher.types())
}

func TestCancel_WrongTenant(t *testing.T) {
	f := newFixture(t)
	s := f.addActive(t, "key-1", time.Now())

	_, err := f.svc.Cancel(context.Background(), "tenant-b", s.ID, true)
	assert.True(t, errors.IsCode(err, errors.CodeSponsorshipNotFound))

	stored, err := f.sponsorships.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusActive, stored.Status)
}

func TestCancel_ProvisionalRejected(t *testing.T) {
	f := newFixture(t)
	s := f.addProvisional(t, "key-1")

	_, err := f.svc.Cancel(context.Background(), "tenant-a", s.ID, true)
	assert.True(t, errors.IsCode(err, errors.CodeSponsorshipStateInvalid))
}

func TestRollover_RenewsActive(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := f.addActive(t, "key-1", now.Add(-31*24*time.Hour))
	oldEnd := s.PeriodEnd

	stats, err := f.svc.Rollover(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, RolloverStats{Renewed: 1}, stats)
	assert.Equal(t, []common.ID{s.ID}, f.charger.charged)

	stored, err := f.sponsorships.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusActive, stored.Status)
	assert.Equal(t, oldEnd.Add(30*24*time.Hour), stored.PeriodEnd)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventRenewed}, f.publisher.types())
}

func TestRollover_ExpiresLapsing(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := f.addActive(t, "key-1", now.Add(-31*24*time.Hour))
	require.NoError(t, s.CancelAtPeriodEnd())
	require.NoError(t, f.sponsorships.Update(context.Background(), s))

	stats, err := f.svc.Rollover(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, RolloverStats{Expired: 1}, stats)
	// Lapsing sponsorships are never charged again.
	assert.Empty(t, f.charger.charged)

	stored, err := f.sponsorships.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusExpired, stored.Status)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventExpired}, f.publisher.types())
}

func TestRollover_ExpiresOnFailedCharge(t *testing.T) {
	f := newFixture(t)
	f.charger.fail = true
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := f.addActive(t, "key-1", now.Add(-31*24*time.Hour))

	stats, err := f.svc.Rollover(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, RolloverStats{Expired: 1}, stats)

	stored, err := f.sponsorships.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorship.StatusExpired, stored.Status)
	assert.Equal(t, []sponsorship.EventType{sponsorship.EventExpired}, f.publisher.types())
}

func TestRollover_SkipsNotDue(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	f.addActive(t, "key-1", now) // period ends a month from now
	f.addProvisional(t, "key-2") // no period at all

	stats, err := f.svc.Rollover(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, RolloverStats{}, stats)
	assert.Empty(t, f.charger.charged)
	assert.Empty(t, f.publisher.types())
}
