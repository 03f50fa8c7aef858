package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

func testPolicySet() *PolicySet {
	return NewPolicySet([]config.PricingPolicyConfig{
		{
			Slot:          "featured",
			RatePerKm2:    15.0,
			FloorPrice:    1.0,
			Currency:      "USD",
			BillingPeriod: 30 * 24 * time.Hour,
		},
		{
			Slot:          "spotlight",
			RatePerKm2:    40.0,
			FloorPrice:    5.0,
			Currency:      "USD",
			MinAreaKm2:    0.5,
			BillingPeriod: 30 * 24 * time.Hour,
		},
	})
}

func TestPolicySet_Get(t *testing.T) {
	ps := testPolicySet()

	p, err := ps.Get("featured")
	require.NoError(t, err)
	assert.Equal(t, "15", p.RatePerKm2.String())
	assert.Equal(t, "USD", p.Currency)

	_, err = ps.Get("banner")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSlotUnknown))
	assert.True(t, errors.IsPolicy(err))
}

func TestPolicySet_Slots(t *testing.T) {
	ps := testPolicySet()
	assert.Equal(t, []common.Slot{"featured", "spotlight"}, ps.Slots())
	assert.True(t, ps.Has("featured"))
	assert.False(t, ps.Has("banner"))
}

func TestQuote_RateTimesArea(t *testing.T) {
	e := NewEngine(testPolicySet())

	// 2 km² at 15/km² bills 30.00.
	q, err := e.Quote("featured", 2.0)
	require.NoError(t, err)
	assert.Equal(t, "30", q.Amount.String())
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, 30*24*time.Hour, q.BillingPeriod)
}

func TestQuote_FloorApplies(t *testing.T) {
	e := NewEngine(testPolicySet())

	// 0.05 km² at 15/km² is 0.75, below the 1.00 floor.
	q, err := e.Quote("featured", 0.05)
	require.NoError(t, err)
	assert.Equal(t, "1", q.Amount.String())
}

func TestQuote_RoundsHalfUp(t *testing.T) {
	e := NewEngine(testPolicySet())

	// 0.067 km² at 15/km² is exactly 1.005, which rounds up to 1.01.
	q, err := e.Quote("featured", 0.067)
	require.NoError(t, err)
	assert.Equal(t, "1.01", q.Amount.String())
}

func TestQuote_UnknownSlot(t *testing.T) {
	e := NewEngine(testPolicySet())
	_, err := e.Quote("banner", 2.0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSlotUnknown))
}

func TestQuote_AreaBelowMinimum(t *testing.T) {
	e := NewEngine(testPolicySet())

	_, err := e.Quote("spotlight", 0.25)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeAreaBelowMinimum))

	q, err := e.Quote("spotlight", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "20", q.Amount.String())
}

func TestQuote_NonPositiveArea(t *testing.T) {
	e := NewEngine(testPolicySet())

	_, err := e.Quote("featured", 0)
	assert.True(t, errors.IsCode(err, errors.CodeAreaBelowMinimum))

	_, err = e.Quote("featured", -1)
	assert.Error(t, err)
}

func TestPrice_Deterministic(t *testing.T) {
	ps := testPolicySet()
	p, err := ps.Get("featured")
	require.NoError(t, err)

	a := Price(p, 1.2345)
	b := Price(p, 1.2345)
	assert.True(t, a.Equal(b))
	assert.Equal(t, "18.52", a.String())
}
