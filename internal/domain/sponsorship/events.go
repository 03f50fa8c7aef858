package sponsorship

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapslot/territory-engine/pkg/types/common"
)

// EventType names the lifecycle events published to the event stream.
type EventType string

const (
	EventReserved  EventType = "sponsorship.reserved"
	EventActivated EventType = "sponsorship.activated"
	EventCanceled  EventType = "sponsorship.canceled"
	EventLapsing   EventType = "sponsorship.lapsing"
	EventRenewed   EventType = "sponsorship.renewed"
	EventExpired   EventType = "sponsorship.expired"
)

// Event is the wire form of one lifecycle transition.  Events are keyed by
// sponsorship ID so per-sponsorship ordering survives partitioning.
type Event struct {
	Type        EventType       `json:"type"`
	SponsorID   common.ID       `json:"sponsorship_id"`
	TenantID    common.TenantID `json:"tenant_id"`
	TerritoryID common.ID       `json:"territory_id"`
	Slot        common.Slot     `json:"slot"`
	Status      Status          `json:"status"`
	AreaKm2     float64         `json:"area_km2"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventPublisher is the outbound event-stream port.  Publishing is
// best-effort relative to the database: a failed publish is logged, never
// rolled back into the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NewEvent snapshots a sponsorship into an event of the given type.
func NewEvent(typ EventType, s *Sponsorship) Event {
	return Event{
		Type:        typ,
		SponsorID:   s.ID,
		TenantID:    s.TenantID,
		TerritoryID: s.TerritoryID,
		Slot:        s.Slot,
		Status:      s.Status,
		AreaKm2:     s.AreaKm2,
		Price:       s.Price,
		Currency:    s.Currency,
		OccurredAt:  time.Now().UTC(),
	}
}
