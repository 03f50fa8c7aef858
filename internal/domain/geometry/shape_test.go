package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/pkg/errors"
)

func squareRing(lon, lat, side float64) orb.Ring {
	return orb.Ring{
		{lon, lat},
		{lon + side, lat},
		{lon + side, lat + side},
		{lon, lat + side},
		{lon, lat},
	}
}

func squareShape(lon, lat, side float64) Shape {
	return FromPolygon(orb.Polygon{squareRing(lon, lat, side)})
}

func TestEmpty(t *testing.T) {
	s := Empty()
	assert.Equal(t, KindEmpty, s.Kind())
	assert.True(t, s.IsEmpty())
	assert.Nil(t, s.MultiPolygon())
	assert.Nil(t, s.Orb())

	_, ok := s.Bound()
	assert.False(t, ok)
}

func TestZeroValueIsEmpty(t *testing.T) {
	var s Shape
	assert.True(t, s.IsEmpty())
}

func TestFromPolygon_Collapse(t *testing.T) {
	assert.True(t, FromPolygon(nil).IsEmpty())
	assert.True(t, FromPolygon(orb.Polygon{}).IsEmpty())

	s := squareShape(0, 0, 1)
	assert.Equal(t, KindPolygon, s.Kind())
}

func TestFromMultiPolygon_Collapse(t *testing.T) {
	assert.True(t, FromMultiPolygon(nil).IsEmpty())

	one := FromMultiPolygon(orb.MultiPolygon{{squareRing(0, 0, 1)}})
	assert.Equal(t, KindPolygon, one.Kind())

	two := FromMultiPolygon(orb.MultiPolygon{
		{squareRing(0, 0, 1)},
		{squareRing(5, 5, 1)},
	})
	assert.Equal(t, KindMultiPolygon, two.Kind())
	assert.Len(t, two.MultiPolygon(), 2)
}

func TestFromOrb_RejectsNonAreal(t *testing.T) {
	_, err := FromOrb(orb.Point{1, 2})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGeometryMalformed))

	_, err = FromOrb(orb.LineString{{0, 0}, {1, 1}})
	assert.Error(t, err)
}

func TestClone_Isolation(t *testing.T) {
	s := squareShape(0, 0, 1)
	c := s.Clone()
	c.polygon[0][0] = orb.Point{99, 99}
	assert.Equal(t, orb.Point{0, 0}, s.polygon[0][0])
}

func TestGeoJSON_RoundTrip(t *testing.T) {
	s := FromMultiPolygon(orb.MultiPolygon{
		{squareRing(0, 0, 1)},
		{squareRing(5, 5, 2)},
	})

	data, err := s.MarshalGeoJSON()
	require.NoError(t, err)

	back, err := UnmarshalGeoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, KindMultiPolygon, back.Kind())
	assert.Equal(t, s.MultiPolygon(), back.MultiPolygon())
}

func TestGeoJSON_EmptyEncodesAsEmptyMultiPolygon(t *testing.T) {
	data, err := Empty().MarshalGeoJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"MultiPolygon","coordinates":[]}`, string(data))

	back, err := UnmarshalGeoJSON(data)
	require.NoError(t, err)
	assert.True(t, back.IsEmpty())
}

func TestUnmarshalGeoJSON_Malformed(t *testing.T) {
	cases := []string{
		"",
		"not json",
		`{"type":"Point","coordinates":[1,2]}`,
	}
	for _, in := range cases {
		_, err := UnmarshalGeoJSON([]byte(in))
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.IsCode(err, errors.CodeGeometryMalformed))
	}
}
