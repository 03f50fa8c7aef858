// Package geometry implements the engine's polygon set algebra: a tagged
// shape variant over WGS84 longitude/latitude coordinates, geodesic area,
// boolean clipping, validation, and normalization.  Everything in this
// package is pure and performs no I/O.
package geometry

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mapslot/territory-engine/pkg/errors"
)

// Kind tags the geometry variant carried by a Shape.
type Kind int

const (
	// KindEmpty is the zero Shape: no area, nothing purchasable.
	KindEmpty Kind = iota
	// KindPolygon is a single polygon, possibly with holes.
	KindPolygon
	// KindMultiPolygon is a disjoint collection of polygons.
	KindMultiPolygon
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindPolygon:
		return "polygon"
	case KindMultiPolygon:
		return "multipolygon"
	default:
		return "unknown"
	}
}

// Shape is the tagged variant {Polygon, MultiPolygon, Empty} used for every
// territory and sponsorship geometry.  Operations pattern-match exhaustively
// over the tag rather than inferring the form from loosely-typed fields.
//
// The zero value is the Empty shape.
type Shape struct {
	kind    Kind
	polygon orb.Polygon
	multi   orb.MultiPolygon
}

// Empty returns the Empty shape.
func Empty() Shape {
	return Shape{kind: KindEmpty}
}

// FromPolygon wraps an orb.Polygon.  A polygon with no rings collapses to
// Empty.
func FromPolygon(p orb.Polygon) Shape {
	if len(p) == 0 {
		return Empty()
	}
	return Shape{kind: KindPolygon, polygon: p}
}

// FromMultiPolygon wraps an orb.MultiPolygon.  Zero parts collapse to Empty
// and a single part collapses to KindPolygon, so equal geometries always
// carry equal tags.
func FromMultiPolygon(mp orb.MultiPolygon) Shape {
	switch len(mp) {
	case 0:
		return Empty()
	case 1:
		return FromPolygon(mp[0])
	default:
		return Shape{kind: KindMultiPolygon, multi: mp}
	}
}

// FromOrb converts an arbitrary orb geometry into a Shape.  Only areal
// geometries are accepted; points, lines, and collections are rejected.
func FromOrb(g orb.Geometry) (Shape, error) {
	switch v := g.(type) {
	case nil:
		return Empty(), nil
	case orb.Polygon:
		return FromPolygon(v), nil
	case orb.MultiPolygon:
		return FromMultiPolygon(v), nil
	default:
		return Empty(), errors.New(errors.CodeGeometryMalformed,
			"geometry must be a Polygon or MultiPolygon").WithDetail("got " + g.GeoJSONType())
	}
}

// Kind returns the variant tag.
func (s Shape) Kind() Kind {
	return s.kind
}

// IsEmpty reports whether the shape is the Empty variant.
func (s Shape) IsEmpty() bool {
	return s.kind == KindEmpty
}

// MultiPolygon returns the canonical multipolygon view of the shape.
// Empty yields nil.
func (s Shape) MultiPolygon() orb.MultiPolygon {
	switch s.kind {
	case KindEmpty:
		return nil
	case KindPolygon:
		return orb.MultiPolygon{s.polygon}
	case KindMultiPolygon:
		return s.multi
	default:
		return nil
	}
}

// Orb returns the underlying orb geometry, or nil for Empty.
func (s Shape) Orb() orb.Geometry {
	switch s.kind {
	case KindEmpty:
		return nil
	case KindPolygon:
		return s.polygon
	case KindMultiPolygon:
		return s.multi
	default:
		return nil
	}
}

// Bound returns the bounding box of the shape.  The second return value is
// false for Empty, which has no meaningful bound.
func (s Shape) Bound() (orb.Bound, bool) {
	switch s.kind {
	case KindEmpty:
		return orb.Bound{}, false
	case KindPolygon:
		return s.polygon.Bound(), true
	case KindMultiPolygon:
		return s.multi.Bound(), true
	default:
		return orb.Bound{}, false
	}
}

// Clone returns a deep copy; mutating the copy never affects the original.
func (s Shape) Clone() Shape {
	switch s.kind {
	case KindEmpty:
		return Empty()
	case KindPolygon:
		return FromPolygon(s.polygon.Clone())
	case KindMultiPolygon:
		return FromMultiPolygon(s.multi.Clone())
	default:
		return Empty()
	}
}

// MarshalGeoJSON encodes the shape as a GeoJSON geometry.  Empty encodes as
// an empty MultiPolygon so the wire form round-trips without a null case.
func (s Shape) MarshalGeoJSON() ([]byte, error) {
	var g orb.Geometry
	switch s.kind {
	case KindEmpty:
		g = orb.MultiPolygon{}
	case KindPolygon:
		g = s.polygon
	case KindMultiPolygon:
		g = s.multi
	}
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to encode geometry")
	}
	return data, nil
}

// UnmarshalGeoJSON decodes a GeoJSON geometry into a Shape.  Malformed input
// yields CodeGeometryMalformed; non-areal geometries are rejected.
func UnmarshalGeoJSON(data []byte) (Shape, error) {
	if len(data) == 0 {
		return Empty(), errors.New(errors.CodeGeometryMalformed, "empty geometry payload")
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return Empty(), errors.Wrap(err, errors.CodeGeometryMalformed, "failed to parse GeoJSON geometry")
	}
	return FromOrb(g.Geometry())
}
