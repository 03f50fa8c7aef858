package territory

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/pkg/errors"
)

func testShape() geometry.Shape {
	return geometry.FromPolygon(orb.Polygon{{
		{0, 0}, {0.018, 0}, {0.018, 0.018}, {0, 0.018}, {0, 0},
	}})
}

func TestNew(t *testing.T) {
	ter, err := New("tenant-a", "Downtown", testShape())
	require.NoError(t, err)

	assert.NotEmpty(t, ter.ID)
	assert.Equal(t, "Downtown", ter.Name)
	assert.Equal(t, 1, ter.Version)
	assert.InDelta(t, 4.0, ter.AreaKm2, 0.1)
	assert.False(t, ter.CreatedAt.IsZero())
}

func TestNew_Rejections(t *testing.T) {
	_, err := New("", "Downtown", testShape())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = New("tenant-a", "", testShape())
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNameEmpty))

	_, err = New("tenant-a", "Downtown", geometry.Empty())
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))

	bowtie := geometry.FromPolygon(orb.Polygon{{
		{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
	}})
	_, err = New("tenant-a", "Downtown", bowtie)
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))
}

func TestNew_NormalizesGeometry(t *testing.T) {
	ring := orb.Ring{{0, 0}, {0.018, 0}, {0.018, 0.018}, {0, 0.018}, {0, 0}}
	ring.Reverse() // clockwise input
	ter, err := New("tenant-a", "Downtown", geometry.FromPolygon(orb.Polygon{ring}))
	require.NoError(t, err)

	got := ter.Geometry.MultiPolygon()[0][0]
	assert.Equal(t, orb.CCW, got.Orientation())
}

func TestRename(t *testing.T) {
	ter, err := New("tenant-a", "Downtown", testShape())
	require.NoError(t, err)

	require.NoError(t, ter.Rename("Old Town"))
	assert.Equal(t, "Old Town", ter.Name)

	err = ter.Rename("")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNameEmpty))
}

func TestRedraw_BumpsVersion(t *testing.T) {
	ter, err := New("tenant-a", "Downtown", testShape())
	require.NoError(t, err)

	bigger := geometry.FromPolygon(orb.Polygon{{
		{0, 0}, {0.036, 0}, {0.036, 0.036}, {0, 0.036}, {0, 0},
	}})
	require.NoError(t, ter.Redraw(bigger))

	assert.Equal(t, 2, ter.Version)
	assert.InDelta(t, 16.0, ter.AreaKm2, 0.4)
}

func TestRedraw_InvalidShapeLeavesEntityUnchanged(t *testing.T) {
	ter, err := New("tenant-a", "Downtown", testShape())
	require.NoError(t, err)
	before := ter.AreaKm2

	err = ter.Redraw(geometry.Empty())
	require.Error(t, err)
	assert.Equal(t, 1, ter.Version)
	assert.Equal(t, before, ter.AreaKm2)
}

func TestEnsureOwnedBy(t *testing.T) {
	ter, err := New("tenant-a", "Downtown", testShape())
	require.NoError(t, err)

	assert.NoError(t, ter.EnsureOwnedBy("tenant-a"))

	err = ter.EnsureOwnedBy("tenant-b")
	assert.True(t, errors.IsCode(err, errors.CodeTerritoryNotOwned))
}
