package geometry

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/mapslot/territory-engine/pkg/errors"
)

// Validate checks that a shape is acceptable as user-supplied territory
// geometry.  It rejects:
//
//   - the Empty variant (nothing to sell),
//   - coordinates outside WGS84 longitude/latitude ranges,
//   - unclosed rings (closing is Normalize's job; Validate never repairs),
//   - rings with fewer than 3 distinct vertices,
//   - self-intersecting rings.
//
// All failures carry CodeGeometryInvalid and classify as ValidationError,
// rejected before any transaction starts.
func Validate(s Shape) error {
	switch s.Kind() {
	case KindEmpty:
		return errors.New(errors.CodeGeometryInvalid, "geometry is empty")
	case KindPolygon:
		return validatePolygon(s.polygon, 0)
	case KindMultiPolygon:
		for i, p := range s.multi {
			if err := validatePolygon(p, i); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.New(errors.CodeGeometryInvalid, "unknown geometry variant")
	}
}

func validatePolygon(p orb.Polygon, polyIdx int) error {
	if len(p) == 0 {
		return errors.New(errors.CodeGeometryInvalid, "polygon has no rings").
			WithDetail(fmt.Sprintf("polygon %d", polyIdx))
	}
	for ringIdx, ring := range p {
		if err := validateRing(ring); err != nil {
			return errors.Wrap(err, errors.CodeGeometryInvalid,
				fmt.Sprintf("polygon %d ring %d is invalid", polyIdx, ringIdx))
		}
	}
	return nil
}

func validateRing(ring orb.Ring) error {
	for _, pt := range ring {
		if pt[0] < -180 || pt[0] > 180 || pt[1] < -90 || pt[1] > 90 {
			return fmt.Errorf("coordinate (%g, %g) outside WGS84 range", pt[0], pt[1])
		}
	}
	if len(ring) < 4 {
		return fmt.Errorf("ring has %d points; a closed ring needs at least 4", len(ring))
	}
	if !ring.Closed() {
		return fmt.Errorf("ring is not closed; first and last vertices differ")
	}
	if distinctVertices(ring) < 3 {
		return fmt.Errorf("ring has fewer than 3 distinct vertices")
	}
	if selfIntersects(ring) {
		return fmt.Errorf("ring is self-intersecting")
	}
	return nil
}

// distinctVertices counts unique vertices, ignoring the closing duplicate.
func distinctVertices(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for i := 0; i < len(ring)-1; i++ {
		seen[ring[i]] = struct{}{}
	}
	return len(seen)
}

// selfIntersects runs a pairwise proper-crossing test over all non-adjacent
// ring segments.  O(n²) is fine here: hand-drawn territories are dozens of
// vertices, not thousands.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // segment count for a closed ring
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Adjacent segments share a vertex by construction; the pair
			// (first, last) is adjacent through the closing point.
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports a proper crossing between segments pq and rs.
func segmentsCross(p, q, r, s orb.Point) bool {
	d1 := cross(r, s, p)
	d2 := cross(r, s, q)
	d3 := cross(p, q, r)
	d4 := cross(p, q, s)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// cross returns the z-component of (b-a) × (c-a).
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// Normalize returns a cleaned copy of the shape: rings are explicitly
// closed, consecutive duplicate vertices are dropped, outer rings are wound
// counter-clockwise and holes clockwise.  Rings that degenerate below 3
// distinct vertices are removed; a polygon whose outer ring degenerates is
// removed entirely.  Normalize never mutates its input.
func Normalize(s Shape) Shape {
	switch s.Kind() {
	case KindEmpty:
		return Empty()
	case KindPolygon:
		return FromPolygon(normalizePolygon(s.polygon))
	case KindMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(s.multi))
		for _, p := range s.multi {
			np := normalizePolygon(p)
			if len(np) > 0 {
				mp = append(mp, np)
			}
		}
		return FromMultiPolygon(mp)
	default:
		return Empty()
	}
}

func normalizePolygon(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		nr := normalizeRing(ring)
		if nr == nil {
			if i == 0 {
				// Outer ring degenerated; the whole polygon goes.
				return nil
			}
			continue
		}
		wantCCW := i == 0
		isCCW := nr.Orientation() == orb.CCW
		if isCCW != wantCCW {
			nr.Reverse()
		}
		out = append(out, nr)
	}
	return out
}

func normalizeRing(ring orb.Ring) orb.Ring {
	if len(ring) == 0 {
		return nil
	}
	nr := make(orb.Ring, 0, len(ring)+1)
	for _, pt := range ring {
		if len(nr) > 0 && nr[len(nr)-1] == pt {
			continue
		}
		nr = append(nr, pt)
	}
	// Drop a closing duplicate before re-closing, so dedupe and closure
	// compose cleanly.
	if len(nr) > 1 && nr[0] == nr[len(nr)-1] {
		nr = nr[:len(nr)-1]
	}
	if len(nr) < 3 {
		return nil
	}
	nr = append(nr, nr[0])
	return nr
}
