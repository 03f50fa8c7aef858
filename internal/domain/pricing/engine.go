package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Quote is a priced offer for an area under one slot's policy.  The price is
// already rounded to cents; Amount is what the payment gateway is charged.
type Quote struct {
	Slot          common.Slot     `json:"slot"`
	AreaKm2       float64         `json:"area_km2"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BillingPeriod time.Duration   `json:"billing_period"`
}

// Engine prices areas against a PolicySet.
type Engine struct {
	policies *PolicySet
}

// NewEngine returns an Engine over the given policy catalogue.
func NewEngine(policies *PolicySet) *Engine {
	return &Engine{policies: policies}
}

// Policies exposes the underlying catalogue.
func (e *Engine) Policies() *PolicySet {
	return e.policies
}

// Quote prices areaKm2 under the named slot's policy.
//
// The billed amount is max(floor_price, area * rate_per_km2), rounded
// half-up to two decimal places.  The floor applies after rounding, so a
// tiny-but-nonzero area never bills below the floor.  Areas below the
// policy's minimum purchasable area are rejected with CodeAreaBelowMinimum;
// non-positive areas are rejected unconditionally.
func (e *Engine) Quote(slot common.Slot, areaKm2 float64) (Quote, error) {
	policy, err := e.policies.Get(slot)
	if err != nil {
		return Quote{}, err
	}
	if areaKm2 <= 0 {
		return Quote{}, errors.New(errors.CodeAreaBelowMinimum, "area must be positive").
			WithDetail(fmt.Sprintf("slot=%s area_km2=%g", slot, areaKm2))
	}
	if areaKm2 < policy.MinAreaKm2 {
		return Quote{}, errors.New(errors.CodeAreaBelowMinimum, "area is below the minimum purchasable size").
			WithDetail(fmt.Sprintf("slot=%s area_km2=%g min_area_km2=%g", slot, areaKm2, policy.MinAreaKm2))
	}

	amount := Price(policy, areaKm2)
	return Quote{
		Slot:          slot,
		AreaKm2:       areaKm2,
		Amount:        amount,
		Currency:      policy.Currency,
		BillingPeriod: policy.BillingPeriod,
	}, nil
}

// Price computes max(floor, area*rate) rounded half-up to cents.  Split out
// from Quote so commit-time repricing can reuse it without re-running the
// policy checks.
func Price(policy Policy, areaKm2 float64) decimal.Decimal {
	raw := decimal.NewFromFloat(areaKm2).Mul(policy.RatePerKm2)
	amount := raw.Round(2)
	floor := policy.FloorPrice.Round(2)
	if amount.LessThan(floor) {
		return floor
	}
	return amount
}
