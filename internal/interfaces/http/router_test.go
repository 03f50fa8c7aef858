package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/application/allocation"
	"github.com/mapslot/territory-engine/internal/application/availability"
	"github.com/mapslot/territory-engine/internal/application/subscription"
	"github.com/mapslot/territory-engine/internal/application/territories"
	"github.com/mapslot/territory-engine/internal/config"
	"github.com/mapslot/territory-engine/internal/domain/pricing"
	"github.com/mapslot/territory-engine/internal/infrastructure/database/memory"
	"github.com/mapslot/territory-engine/internal/interfaces/http/handlers"
)

const testTenantHeader = "X-Tenant-ID"

type testApp struct {
	router http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	territoryRepo := memory.NewTerritoryRepository()
	sponsorshipRepo := memory.NewSponsorshipRepository()
	pricer := pricing.NewEngine(pricing.NewPolicySet([]config.PricingPolicyConfig{
		{Slot: "featured", RatePerKm2: 15.0, FloorPrice: 1.0, Currency: "USD", BillingPeriod: 30 * 24 * time.Hour},
	}))
	previews := availability.NewService(territoryRepo, sponsorshipRepo, pricer, nil, nil, nil)
	territoryService := territories.NewService(territoryRepo, previews, nil)
	allocator := allocation.NewService(territoryRepo, sponsorshipRepo, pricer, previews, nil, nil, nil)
	subscriptions := subscription.NewService(sponsorshipRepo, previews, nil, nil, nil, nil)

	router := NewRouter(RouterConfig{
		Server: config.ServerConfig{Mode: "test", TenantHeader: testTenantHeader},

		TerritoryHandler:   handlers.NewTerritoryHandler(territoryService, previews),
		SponsorshipHandler: handlers.NewSponsorshipHandler(allocator, subscriptions, sponsorshipRepo),
		WebhookHandler:     handlers.NewWebhookHandler(subscriptions),
		HealthHandler:      handlers.NewHealthHandler(nil),
	})
	return &testApp{router: router}
}

func (a *testApp) do(t *testing.T, method, path, tenant string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenant != "" {
		req.Header.Set(testTenantHeader, tenant)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func squareGeometry(side float64) map[string]any {
	return map[string]any{
		"type": "Polygon",
		"coordinates": [][][]float64{{
			{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0},
		}},
	}
}

func createTerritory(t *testing.T, app *testApp, tenant string) string {
	t.Helper()
	w := app.do(t, http.MethodPost, "/api/v1/territories", tenant,
		map[string]any{"name": "Downtown", "geometry": squareGeometry(0.018)}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_RequiresTenantHeader(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodGet, "/api/v1/territories", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTerritory_CreateAndGet(t *testing.T) {
	app := newTestApp(t)
	id := createTerritory(t, app, "tenant-a")

	w := app.do(t, http.MethodGet, "/api/v1/territories/"+id, "tenant-a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Name    string  `json:"name"`
		AreaKm2 float64 `json:"area_km2"`
		Version int     `json:"version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Downtown", resp.Name)
	assert.InDelta(t, 4.0, resp.AreaKm2, 0.1)
	assert.Equal(t, 1, resp.Version)

	// Another tenant's lookup is forbidden.
	w = app.do(t, http.MethodGet, "/api/v1/territories/"+id, "tenant-b", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTerritory_CreateRejectsBadGeometry(t *testing.T) {
	app := newTestApp(t)
	w := app.do(t, http.MethodPost, "/api/v1/territories", "tenant-a",
		map[string]any{"name": "Bad", "geometry": map[string]any{"type": "Point", "coordinates": []float64{0, 0}}}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	app := newTestApp(t)
	id := createTerritory(t, app, "tenant-a")

	w := app.do(t, http.MethodGet, "/api/v1/territories/"+id+"/slots/featured/preview", "tenant-a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var preview struct {
		AreaKm2 float64 `json:"area_km2"`
		SoldOut bool    `json:"sold_out"`
		Quote   *struct {
			Amount string `json:"amount"`
		} `json:"quote"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.False(t, preview.SoldOut)
	assert.InDelta(t, 4.0, preview.AreaKm2, 0.1)
	require.NotNil(t, preview.Quote)

	// Unknown slot.
	w = app.do(t, http.MethodGet, "/api/v1/territories/"+id+"/slots/banner/preview", "tenant-a", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReserve_FullFlow(t *testing.T) {
	app := newTestApp(t)
	id := createTerritory(t, app, "tenant-a")
	headers := map[string]string{handlers.IdempotencyKeyHeader: "key-1"}

	w := app.do(t, http.MethodPost, "/api/v1/territories/"+id+"/slots/featured/reserve", "tenant-a", nil, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Sponsorship struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Price  string `json:"price"`
		} `json:"sponsorship"`
		Idempotent bool `json:"idempotent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "provisional", created.Sponsorship.Status)
	assert.False(t, created.Idempotent)

	// Retry with the same key replays, 200 not 201.
	w = app.do(t, http.MethodPost, "/api/v1/territories/"+id+"/slots/featured/reserve", "tenant-a", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)

	// Missing key is rejected.
	w = app.do(t, http.MethodPost, "/api/v1/territories/"+id+"/slots/featured/reserve", "tenant-a", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Payment webhook activates the sponsorship.
	w = app.do(t, http.MethodPost, "/webhooks/payment", "", map[string]any{
		"type":           "payment.confirmed",
		"sponsorship_id": created.Sponsorship.ID,
		"payment_ref":    "pay-1",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Webhook retry is acknowledged, not failed.
	w = app.do(t, http.MethodPost, "/webhooks/payment", "", map[string]any{
		"type":           "payment.confirmed",
		"sponsorship_id": created.Sponsorship.ID,
		"payment_ref":    "pay-1",
	}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The slot is now sold out for a rival tenant with an identical territory.
	rivalID := createTerritory(t, app, "tenant-b")
	w = app.do(t, http.MethodPost, "/api/v1/territories/"+rivalID+"/slots/featured/reserve", "tenant-b", nil,
		map[string]string{handlers.IdempotencyKeyHeader: "rival-key"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Cancel immediately and confirm the status flip.
	w = app.do(t, http.MethodPost, "/api/v1/sponsorships/"+created.Sponsorship.ID+"/cancel", "tenant-a",
		map[string]any{"immediate": true}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var canceled struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &canceled))
	assert.Equal(t, "canceled", canceled.Status)
}

func TestSponsorships_ListScopedToTenant(t *testing.T) {
	app := newTestApp(t)
	id := createTerritory(t, app, "tenant-a")

	w := app.do(t, http.MethodPost, "/api/v1/territories/"+id+"/slots/featured/reserve", "tenant-a", nil,
		map[string]string{handlers.IdempotencyKeyHeader: "key-1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(t, http.MethodGet, "/api/v1/sponsorships", "tenant-a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []json.RawMessage `json:"items"`
		Total int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	w = app.do(t, http.MethodGet, "/api/v1/sponsorships", "tenant-b", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Items)
}

func TestTerritory_RedrawBumpsVersion(t *testing.T) {
	app := newTestApp(t)
	id := createTerritory(t, app, "tenant-a")

	w := app.do(t, http.MethodPut, fmt.Sprintf("/api/v1/territories/%s/geometry", id), "tenant-a",
		map[string]any{"geometry": squareGeometry(0.036)}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Version int     `json:"version"`
		AreaKm2 float64 `json:"area_km2"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Version)
	assert.InDelta(t, 16.0, resp.AreaKm2, 0.5)
}
