package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// Quote is the price offer attached to a preview.
type Quote struct {
	Slot          string  `json:"slot"`
	AreaKm2       float64 `json:"area_km2"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	BillingPeriod int64   `json:"billing_period"`
}

// Preview is the purchasable remainder of one territory slot.
type Preview struct {
	TerritoryID      string          `json:"territory_id"`
	TerritoryVersion int             `json:"territory_version"`
	Slot             string          `json:"slot"`
	Remainder        json.RawMessage `json:"remainder"`
	AreaKm2          float64         `json:"area_km2"`
	SoldOut          bool            `json:"sold_out"`
	Reason           string          `json:"reason,omitempty"`
	Quote            *Quote          `json:"quote,omitempty"`
}

// Sponsorship is the wire form of a sponsorship.
type Sponsorship struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	TerritoryID      string          `json:"territory_id"`
	TerritoryVersion int             `json:"territory_version"`
	Slot             string          `json:"slot"`
	Geometry         json.RawMessage `json:"geometry"`
	AreaKm2          float64         `json:"area_km2"`
	Price            string          `json:"price"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	PeriodStart      string          `json:"period_start,omitempty"`
	PeriodEnd        string          `json:"period_end,omitempty"`
}

// SponsorshipList is one page of sponsorships.
type SponsorshipList struct {
	Items []Sponsorship `json:"items"`
	Page  int           `json:"page"`
	Size  int           `json:"page_size"`
	Total int64         `json:"total"`
}

// ReserveResult is the committed reservation.  Idempotent is true when the
// server replayed a prior reservation for the same key.
type ReserveResult struct {
	Sponsorship Sponsorship `json:"sponsorship"`
	Idempotent  bool        `json:"idempotent"`
}

// PreviewSlot fetches the current availability preview of one slot.
func (c *Client) PreviewSlot(ctx context.Context, territoryID, slot string) (*Preview, error) {
	var out Preview
	path := "/api/v1/territories/" + territoryID + "/slots/" + slot + "/preview"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reserve buys the entire current remainder of a slot.  The idempotency key
// makes retries safe; resending the same key replays the original result.
func (c *Client) Reserve(ctx context.Context, territoryID, slot, idempotencyKey string) (*ReserveResult, error) {
	var out ReserveResult
	path := "/api/v1/territories/" + territoryID + "/slots/" + slot + "/reserve"
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	if err := c.do(ctx, http.MethodPost, path, headers, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSponsorship loads one sponsorship.
func (c *Client) GetSponsorship(ctx context.Context, id string) (*Sponsorship, error) {
	var out Sponsorship
	if err := c.do(ctx, http.MethodGet, "/api/v1/sponsorships/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSponsorships returns one page of the tenant's sponsorships.
func (c *Client) ListSponsorships(ctx context.Context, page, pageSize int) (*SponsorshipList, error) {
	var out SponsorshipList
	if err := c.do(ctx, http.MethodGet, "/api/v1/sponsorships"+listQuery(page, pageSize), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelSponsorship cancels a sponsorship, immediately or at period end.
func (c *Client) CancelSponsorship(ctx context.Context, id string, immediate bool) (*Sponsorship, error) {
	var out Sponsorship
	body := map[string]bool{"immediate": immediate}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sponsorships/"+id+"/cancel", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
