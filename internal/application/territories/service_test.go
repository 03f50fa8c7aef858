package territories

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/infrastructure/database/memory"
	"github.com/mapslot/territory-engine/pkg/errors"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

func squareGeoJSON(t *testing.T, lon, lat, side float64) []byte {
	t.Helper()
	g := geojson.NewGeometry(orb.Polygon{{
		{lon, lat}, {lon + side, lat}, {lon + side, lat + side}, {lon, lat + side}, {lon, lat},
	}})
	raw, err := json.Marshal(g)
	require.NoError(t, err)
	return raw
}

func newService() (*Service, *memory.TerritoryRepository) {
	repo := memory.NewTerritoryRepository()
	return NewService(repo, nil, nil), repo
}

func TestCreate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	ter, err := svc.Create(ctx, "tenant-a", "Downtown", squareGeoJSON(t, 0, 0, 0.018))
	require.NoError(t, err)
	assert.Equal(t, 1, ter.Version)
	assert.InDelta(t, 4.0, ter.AreaKm2, 0.1)

	got, err := svc.Get(ctx, "tenant-a", ter.ID)
	require.NoError(t, err)
	assert.Equal(t, "Downtown", got.Name)
}

func TestCreate_RejectsBadGeometry(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "tenant-a", "Bad", []byte(`{"type":"Point","coordinates":[0,0]}`))
	assert.True(t, errors.IsCode(err, errors.CodeGeometryMalformed))

	_, err = svc.Create(ctx, "tenant-a", "Bad", []byte(`{not json`))
	assert.True(t, errors.IsCode(err, errors.CodeGeometryMalformed))

	_, err = svc.Create(ctx, "tenant-a", "", squareGeoJSON(t, 0, 0, 0.018))
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNameEmpty))
}

func TestGet_Ownership(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	ter, err := svc.Create(ctx, "tenant-a", "Downtown", squareGeoJSON(t, 0, 0, 0.018))
	require.NoError(t, err)

	_, err = svc.Get(ctx, "tenant-b", ter.ID)
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotOwned))

	_, err = svc.Get(ctx, "tenant-a", "missing")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotFound))
}

func TestRedraw_BumpsVersion(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	ter, err := svc.Create(ctx, "tenant-a", "Downtown", squareGeoJSON(t, 0, 0, 0.018))
	require.NoError(t, err)

	redrawn, err := svc.Redraw(ctx, "tenant-a", ter.ID, squareGeoJSON(t, 0, 0, 0.036))
	require.NoError(t, err)
	assert.Equal(t, 2, redrawn.Version)
	assert.InDelta(t, 16.0, redrawn.AreaKm2, 0.5)

	_, err = svc.Redraw(ctx, "tenant-b", ter.ID, squareGeoJSON(t, 0, 0, 0.036))
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotOwned))
}

func TestRename(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	ter, err := svc.Create(ctx, "tenant-a", "Downtown", squareGeoJSON(t, 0, 0, 0.018))
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, "tenant-a", ter.ID, "Old Town")
	require.NoError(t, err)
	assert.Equal(t, "Old Town", renamed.Name)

	_, err = svc.Rename(ctx, "tenant-a", ter.ID, "")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNameEmpty))
}

func TestListAndDelete(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	a, err := svc.Create(ctx, "tenant-a", "A", squareGeoJSON(t, 0, 0, 0.018))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "tenant-a", "B", squareGeoJSON(t, 1, 1, 0.018))
	require.NoError(t, err)

	list, total, err := svc.List(ctx, "tenant-a", common.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, list, 2)

	require.NoError(t, svc.Delete(ctx, "tenant-a", a.ID))
	_, total, err = svc.List(ctx, "tenant-a", common.Pagination{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	assert.True(t, errors.IsCode(svc.Delete(ctx, "tenant-a", a.ID), errors.CodeTerritoryNotFound))
}
