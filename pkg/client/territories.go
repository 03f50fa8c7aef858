package client

import (
	"context"
	"encoding/json"
	"net/http"
)

// Territory is the wire form of a territory.
type Territory struct {
	ID       string          `json:"id"`
	TenantID string          `json:"tenant_id"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
	AreaKm2  float64         `json:"area_km2"`
	Version  int             `json:"version"`
}

// TerritoryList is one page of territories.
type TerritoryList struct {
	Items []Territory `json:"items"`
	Page  int         `json:"page"`
	Size  int         `json:"page_size"`
	Total int64       `json:"total"`
}

type territoryPayload struct {
	Name     string          `json:"name,omitempty"`
	Geometry json.RawMessage `json:"geometry,omitempty"`
}

// CreateTerritory registers a new territory with a GeoJSON boundary.
func (c *Client) CreateTerritory(ctx context.Context, name string, geometry json.RawMessage) (*Territory, error) {
	var out Territory
	err := c.do(ctx, http.MethodPost, "/api/v1/territories", nil,
		territoryPayload{Name: name, Geometry: geometry}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTerritory loads one territory.
func (c *Client) GetTerritory(ctx context.Context, id string) (*Territory, error) {
	var out Territory
	if err := c.do(ctx, http.MethodGet, "/api/v1/territories/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTerritories returns one page of the tenant's territories.
func (c *Client) ListTerritories(ctx context.Context, page, pageSize int) (*TerritoryList, error) {
	var out TerritoryList
	if err := c.do(ctx, http.MethodGet, "/api/v1/territories"+listQuery(page, pageSize), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RedrawTerritory replaces a territory's boundary.
func (c *Client) RedrawTerritory(ctx context.Context, id string, geometry json.RawMessage) (*Territory, error) {
	var out Territory
	err := c.do(ctx, http.MethodPut, "/api/v1/territories/"+id+"/geometry", nil,
		territoryPayload{Geometry: geometry}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTerritory removes a territory.
func (c *Client) DeleteTerritory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/territories/"+id, nil, nil, nil)
}
