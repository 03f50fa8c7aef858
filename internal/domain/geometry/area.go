package geometry

import (
	"math"

	"github.com/paulmach/orb/geo"
)

// EpsilonKm2 is the sold-out threshold: any remainder whose total area is at
// or below this value is treated as Empty rather than as a sliver to be
// sold.  This absorbs floating-point noise from repeated clipping so the
// engine never prices degenerate micro-polygons.
const EpsilonKm2 = 1e-9

const m2PerKm2 = 1e6

// Area returns the geodesic (WGS84) area of the shape in km².  Coordinates
// are longitude/latitude, so a planar shoelace would be wrong everywhere but
// the equator; orb's geo package evaluates the spherical excess instead.
func Area(s Shape) float64 {
	switch s.Kind() {
	case KindEmpty:
		return 0
	case KindPolygon:
		return math.Abs(geo.Area(s.polygon)) / m2PerKm2
	case KindMultiPolygon:
		var total float64
		for _, p := range s.multi {
			total += math.Abs(geo.Area(p))
		}
		return total / m2PerKm2
	default:
		return 0
	}
}

// BelowEpsilon reports whether an area in km² is within the sold-out
// threshold.
func BelowEpsilon(areaKm2 float64) bool {
	return areaKm2 <= EpsilonKm2
}
