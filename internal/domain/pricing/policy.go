// Package pricing computes the billed price for a territory slot purchase
// from configured per-slot policies.  All money arithmetic is decimal;
// float64 enters exactly once, at the area boundary.
package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Policy is the pricing rule for one placement slot.
type Policy struct {
	Slot          common.Slot
	RatePerKm2    decimal.Decimal
	FloorPrice    decimal.Decimal
	Currency      string
	MinAreaKm2    float64
	BillingPeriod time.Duration
}

// PolicyFromConfig converts one configured slot entry into a Policy.
func PolicyFromConfig(c config.PricingPolicyConfig) Policy {
	return Policy{
		Slot:          common.Slot(c.Slot),
		RatePerKm2:    decimal.NewFromFloat(c.RatePerKm2),
		FloorPrice:    decimal.NewFromFloat(c.FloorPrice),
		Currency:      c.Currency,
		MinAreaKm2:    c.MinAreaKm2,
		BillingPeriod: c.BillingPeriod,
	}
}

// PolicySet is the full catalogue of purchasable slots, keyed by slot name.
// The configured entries define the catalogue; there is no implicit slot.
type PolicySet struct {
	policies map[common.Slot]Policy
}

// NewPolicySet builds a PolicySet from configuration.  Duplicate slots are
// rejected upstream by config validation; the last entry would win here.
func NewPolicySet(cfgs []config.PricingPolicyConfig) *PolicySet {
	m := make(map[common.Slot]Policy, len(cfgs))
	for _, c := range cfgs {
		m[common.Slot(c.Slot)] = PolicyFromConfig(c)
	}
	return &PolicySet{policies: m}
}

// Get returns the policy for a slot, or CodeSlotUnknown when the slot is not
// configured.
func (ps *PolicySet) Get(slot common.Slot) (Policy, error) {
	p, ok := ps.policies[slot]
	if !ok {
		return Policy{}, errors.New(errors.CodeSlotUnknown, "unknown placement slot").
			WithDetail("slot=" + string(slot))
	}
	return p, nil
}

// Has reports whether a slot is configured.
func (ps *PolicySet) Has(slot common.Slot) bool {
	_, ok := ps.policies[slot]
	return ok
}

// Slots returns the configured slot names in sorted order.
func (ps *PolicySet) Slots() []common.Slot {
	out := make([]common.Slot, 0, len(ps.policies))
	for slot := range ps.policies {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
