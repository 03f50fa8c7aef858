package geometry

import (
	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"

	"github.com/mapslot/territory-engine/pkg/errors"
)

// toGeom converts a Shape to polygol's raw multipolygon coordinate form:
// polygons → rings → points → [lon, lat].
func toGeom(s Shape) polygol.Geom {
	mp := s.MultiPolygon()
	out := make(polygol.Geom, 0, len(mp))
	for _, poly := range mp {
		rings := make([][][]float64, 0, len(poly))
		for _, ring := range poly {
			pts := make([][]float64, 0, len(ring))
			for _, pt := range ring {
				pts = append(pts, []float64{pt[0], pt[1]})
			}
			rings = append(rings, pts)
		}
		out = append(out, rings)
	}
	return out
}

// fromGeom converts polygol output back into a Shape, pruning sliver parts
// below EpsilonKm2 and normalizing ring closure and winding.
func fromGeom(g polygol.Geom) Shape {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, rawPoly := range g {
		poly := make(orb.Polygon, 0, len(rawPoly))
		for _, rawRing := range rawPoly {
			ring := make(orb.Ring, 0, len(rawRing))
			for _, pt := range rawRing {
				if len(pt) < 2 {
					continue
				}
				ring = append(ring, orb.Point{pt[0], pt[1]})
			}
			if len(ring) >= 3 {
				poly = append(poly, ring)
			}
		}
		if len(poly) == 0 {
			continue
		}
		part := Normalize(FromPolygon(poly))
		if part.Kind() == KindPolygon && Area(part) > EpsilonKm2 {
			mp = append(mp, part.polygon)
		}
	}
	shape := FromMultiPolygon(mp)
	if BelowEpsilon(Area(shape)) {
		return Empty()
	}
	return shape
}

// Difference subtracts every subtrahend from target and returns the
// remainder.  The result may be multi-part or Empty; any outcome whose total
// area is within EpsilonKm2 collapses to Empty ("sold out").  Empty
// subtrahends are skipped and an Empty target short-circuits to Empty.
func Difference(target Shape, subtrahends []Shape) (Shape, error) {
	if target.IsEmpty() {
		return Empty(), nil
	}

	clips := make([]polygol.Geom, 0, len(subtrahends))
	for _, sub := range subtrahends {
		if sub.IsEmpty() {
			continue
		}
		clips = append(clips, toGeom(sub))
	}
	if len(clips) == 0 {
		return target.Clone(), nil
	}

	out, err := polygol.Difference(toGeom(target), clips...)
	if err != nil {
		return Empty(), errors.Wrap(err, errors.CodeInternal, "polygon difference failed")
	}
	return fromGeom(out), nil
}

// Intersection returns the overlap of a and b, Empty when they are disjoint
// or either input is Empty.
func Intersection(a, b Shape) (Shape, error) {
	if a.IsEmpty() || b.IsEmpty() {
		return Empty(), nil
	}
	out, err := polygol.Intersection(toGeom(a), toGeom(b))
	if err != nil {
		return Empty(), errors.Wrap(err, errors.CodeInternal, "polygon intersection failed")
	}
	return fromGeom(out), nil
}

// IntersectionArea returns the overlap area of a and b in km².  It is the
// primitive behind the non-overlap invariant checks: two reservations
// conflict when their intersection area exceeds EpsilonKm2.
func IntersectionArea(a, b Shape) (float64, error) {
	overlap, err := Intersection(a, b)
	if err != nil {
		return 0, err
	}
	return Area(overlap), nil
}

// Covers reports whether outer covers inner within the epsilon tolerance,
// i.e. no more than EpsilonKm2 of inner lies outside outer.  Used to enforce
// that a sponsorship's geometry is a subset of its territory.
func Covers(outer, inner Shape) (bool, error) {
	if inner.IsEmpty() {
		return true, nil
	}
	if outer.IsEmpty() {
		return false, nil
	}
	escaped, err := Difference(inner, []Shape{outer})
	if err != nil {
		return false, err
	}
	return BelowEpsilon(Area(escaped)), nil
}
