package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapslot/territory-engine/pkg/errors"
)

func TestValidate_AcceptsSquare(t *testing.T) {
	assert.NoError(t, Validate(squareShape(0, 0, 1)))
}

func TestValidate_RejectsEmpty(t *testing.T) {
	err := Validate(Empty())
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))
}

func TestValidate_RejectsOutOfRangeCoordinates(t *testing.T) {
	s := FromPolygon(orb.Polygon{{
		{200, 0}, {201, 0}, {201, 1}, {200, 1}, {200, 0},
	}})
	err := Validate(s)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))

	s = FromPolygon(orb.Polygon{{
		{0, 91}, {1, 91}, {1, 92}, {0, 92}, {0, 91},
	}})
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsUnclosedRing(t *testing.T) {
	s := FromPolygon(orb.Polygon{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1},
	}})
	err := Validate(s)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))
}

func TestValidate_RejectsDegenerateRing(t *testing.T) {
	// Two distinct vertices only.
	s := FromPolygon(orb.Polygon{{
		{0, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 0},
	}})
	assert.Error(t, Validate(s))

	// Too few points altogether.
	s = FromPolygon(orb.Polygon{{
		{0, 0}, {1, 0}, {0, 0},
	}})
	assert.Error(t, Validate(s))
}

func TestValidate_RejectsBowtie(t *testing.T) {
	// Figure-eight: segments (0,0)-(1,1) and (1,0)-(0,1) cross.
	s := FromPolygon(orb.Polygon{{
		{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0},
	}})
	err := Validate(s)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeGeometryInvalid))
}

func TestValidate_MultiPolygonChecksEveryPart(t *testing.T) {
	s := FromMultiPolygon(orb.MultiPolygon{
		{squareRing(0, 0, 1)},
		{{{5, 5}, {6, 6}, {6, 5}, {5, 6}, {5, 5}}}, // bowtie
	})
	assert.Error(t, Validate(s))
}

func TestNormalize_ClosesRing(t *testing.T) {
	s := FromPolygon(orb.Polygon{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1},
	}})
	n := Normalize(s)
	require.Equal(t, KindPolygon, n.Kind())

	ring := n.MultiPolygon()[0][0]
	assert.True(t, ring.Closed())
	assert.NoError(t, Validate(n))
}

func TestNormalize_DropsConsecutiveDuplicates(t *testing.T) {
	s := FromPolygon(orb.Polygon{{
		{0, 0}, {0, 0}, {1, 0}, {1, 1}, {1, 1}, {0, 1}, {0, 0},
	}})
	n := Normalize(s)
	require.Equal(t, KindPolygon, n.Kind())
	assert.Len(t, n.MultiPolygon()[0][0], 5)
}

func TestNormalize_FixesWinding(t *testing.T) {
	outer := squareRing(0, 0, 1)
	outer.Reverse() // clockwise outer
	hole := squareRing(0.2, 0.2, 0.5) // counter-clockwise hole
	n := Normalize(FromPolygon(orb.Polygon{outer, hole}))

	require.Equal(t, KindPolygon, n.Kind())
	poly := n.MultiPolygon()[0]
	require.Len(t, poly, 2)
	assert.Equal(t, orb.CCW, poly[0].Orientation())
	assert.Equal(t, orb.CW, poly[1].Orientation())
}

func TestNormalize_DropsDegenerateRings(t *testing.T) {
	// A hole that dedupes down to a single point disappears.
	p := orb.Polygon{
		squareRing(0, 0, 1),
		{{0.5, 0.5}, {0.5, 0.5}, {0.5, 0.5}},
	}
	n := Normalize(FromPolygon(p))
	require.Equal(t, KindPolygon, n.Kind())
	assert.Len(t, n.MultiPolygon()[0], 1)

	// A polygon whose outer ring degenerates goes entirely.
	degenerate := orb.Polygon{{{0, 0}, {0, 0}, {0, 0}}}
	assert.True(t, Normalize(FromPolygon(degenerate)).IsEmpty())
}

func TestNormalize_Empty(t *testing.T) {
	assert.True(t, Normalize(Empty()).IsEmpty())
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	outer := squareRing(0, 0, 1)
	outer.Reverse()
	p := orb.Polygon{outer}
	want := outer.Clone()

	Normalize(FromPolygon(p))
	assert.Equal(t, orb.Ring(want), p[0])
}
