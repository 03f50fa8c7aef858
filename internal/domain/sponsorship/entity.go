// Package sponsorship defines the Sponsorship aggregate: one tenant's paid,
// exclusive claim on part of a territory in one placement slot, plus its
// payment-driven lifecycle.
package sponsorship

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Status is the lifecycle state of a sponsorship.
type Status string

const (
	// StatusProvisional is a committed reservation awaiting payment
	// confirmation.  Its geometry already blocks other buyers.
	StatusProvisional Status = "provisional"
	// StatusActive is a paid, live sponsorship.
	StatusActive Status = "active"
	// StatusCancelAtPeriodEnd stays live until the paid period runs out,
	// then expires instead of renewing.
	StatusCancelAtPeriodEnd Status = "cancel_at_period_end"
	// StatusCanceled is terminal: payment failed or the sponsor canceled
	// immediately.  The geometry is released.
	StatusCanceled Status = "canceled"
	// StatusExpired is terminal: the paid period ended without renewal.
	StatusExpired Status = "expired"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusProvisional, StatusActive, StatusCancelAtPeriodEnd, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// HoldsGeometry reports whether a sponsorship in this status still excludes
// its geometry from the purchasable remainder.  Provisional holds count: a
// reservation blocks rivals from the instant its transaction commits, not
// from when payment clears.
func (s Status) HoldsGeometry() bool {
	switch s {
	case StatusProvisional, StatusActive, StatusCancelAtPeriodEnd:
		return true
	}
	return false
}

// Sponsorship is one exclusive placement purchase.  Geometry is frozen at
// reservation time; territory redraws never reshape what was sold.
// TerritoryVersion records which boundary revision the purchase was priced
// against.
type Sponsorship struct {
	common.BaseEntity
	TerritoryID      common.ID       `json:"territory_id"`
	TerritoryVersion int             `json:"territory_version"`
	Slot             common.Slot     `json:"slot"`
	Geometry         geometry.Shape  `json:"-"`
	AreaKm2          float64         `json:"area_km2"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	Status           Status          `json:"status"`
	IdempotencyKey   string          `json:"idempotency_key"`
	PaymentRef       string          `json:"payment_ref,omitempty"`
	PeriodStart      time.Time       `json:"period_start,omitempty"`
	PeriodEnd        time.Time       `json:"period_end,omitempty"`
	BillingPeriod    time.Duration   `json:"billing_period"`
}

// NewParams collects the inputs for a new provisional sponsorship.  All
// validation of geometry, slot, and pricing happens before this point; the
// constructor only enforces structural completeness.
type NewParams struct {
	TenantID         common.TenantID
	TerritoryID      common.ID
	TerritoryVersion int
	Slot             common.Slot
	Geometry         geometry.Shape
	AreaKm2          float64
	Price            decimal.Decimal
	Currency         string
	IdempotencyKey   string
	BillingPeriod    time.Duration
}

// New constructs a provisional sponsorship.
func New(p NewParams) (*Sponsorship, error) {
	if p.TenantID == "" {
		return nil, errors.InvalidParam("tenant id is required")
	}
	if p.TerritoryID == "" {
		return nil, errors.InvalidParam("territory id is required")
	}
	if p.IdempotencyKey == "" {
		return nil, errors.New(errors.CodeIdempotencyKeyMissing, "idempotency key is required")
	}
	if p.Geometry.IsEmpty() {
		return nil, errors.New(errors.CodeGeometryInvalid, "sponsorship geometry is empty")
	}

	now := time.Now().UTC()
	return &Sponsorship{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			TenantID:  p.TenantID,
			CreatedAt: now,
			UpdatedAt: now,
		},
		TerritoryID:      p.TerritoryID,
		TerritoryVersion: p.TerritoryVersion,
		Slot:             p.Slot,
		Geometry:         p.Geometry,
		AreaKm2:          p.AreaKm2,
		Price:            p.Price,
		Currency:         p.Currency,
		Status:           StatusProvisional,
		IdempotencyKey:   p.IdempotencyKey,
		BillingPeriod:    p.BillingPeriod,
	}, nil
}

func (s *Sponsorship) transitionError(action string) error {
	return errors.New(errors.CodeSponsorshipStateInvalid, "cannot "+action+" sponsorship").
		WithDetail("id=" + string(s.ID) + " status=" + string(s.Status))
}

// Activate confirms payment for a provisional sponsorship and opens the
// first billing period at the given instant.
func (s *Sponsorship) Activate(paymentRef string, at time.Time) error {
	if s.Status != StatusProvisional {
		return s.transitionError("activate")
	}
	s.Status = StatusActive
	s.PaymentRef = paymentRef
	s.PeriodStart = at.UTC()
	s.PeriodEnd = at.UTC().Add(s.BillingPeriod)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// FailPayment cancels a provisional sponsorship whose charge was declined,
// releasing its geometry.
func (s *Sponsorship) FailPayment(reason string) error {
	if s.Status != StatusProvisional {
		return s.transitionError("fail payment for")
	}
	s.Status = StatusCanceled
	s.PaymentRef = reason
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelImmediately ends a live sponsorship now.  No proration; the
// geometry is released at once.
func (s *Sponsorship) CancelImmediately() error {
	if s.Status != StatusActive && s.Status != StatusCancelAtPeriodEnd {
		return s.transitionError("cancel")
	}
	s.Status = StatusCanceled
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelAtPeriodEnd marks an active sponsorship to lapse instead of renew.
// The geometry stays held until the paid period runs out.
func (s *Sponsorship) CancelAtPeriodEnd() error {
	if s.Status != StatusActive {
		return s.transitionError("schedule cancellation for")
	}
	s.Status = StatusCancelAtPeriodEnd
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Renew extends an active sponsorship by one billing period after a
// successful renewal charge.
func (s *Sponsorship) Renew(paymentRef string) error {
	if s.Status != StatusActive {
		return s.transitionError("renew")
	}
	s.PaymentRef = paymentRef
	s.PeriodEnd = s.PeriodEnd.Add(s.BillingPeriod)
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Expire ends a sponsorship whose paid period is over: a lapsing one by
// request, or an active one whose renewal charge failed.  Called by the
// rollover sweep, never by user request.
func (s *Sponsorship) Expire(at time.Time) error {
	if s.Status != StatusCancelAtPeriodEnd && s.Status != StatusActive {
		return s.transitionError("expire")
	}
	if at.Before(s.PeriodEnd) {
		return errors.New(errors.CodeSponsorshipStateInvalid, "paid period has not ended").
			WithDetail("id=" + string(s.ID) + " period_end=" + s.PeriodEnd.Format(time.RFC3339))
	}
	s.Status = StatusExpired
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// HoldsGeometry reports whether this sponsorship currently blocks its
// geometry from sale.
func (s *Sponsorship) HoldsGeometry() bool {
	return s.Status.HoldsGeometry()
}
