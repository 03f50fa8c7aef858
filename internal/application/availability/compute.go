// Package availability computes the purchasable remainder of a territory
// slot: the territory's geometry minus every competing sponsorship that
// still holds geometry in that slot.
package availability

import (
	"github.com/mapslot/territory-engine/internal/domain/geometry"
	"github.com/mapslot/territory-engine/internal/domain/sponsorship"
	"github.com/mapslot/territory-engine/pkg/types/common"
)

// Compute returns the remainder left for sale given the territory's boundary
// and the competing geometries.  Pure function; the same inputs always yield
// the same remainder, which is what makes commit-time recomputation inside
// the reserve transaction meaningful.
//
// A remainder whose total area is within the sliver threshold collapses to
// Empty.
func Compute(boundary geometry.Shape, competing []geometry.Shape) (geometry.Shape, error) {
	return geometry.Difference(boundary, competing)
}

// CompetingShapes filters sponsorships down to the geometries that block a
// purchase by the given tenant: everything still holding geometry, minus the
// tenant's own holdings.  A tenant renewing or re-pricing their own claim is
// never blocked by themselves.
func CompetingShapes(holders []*sponsorship.Sponsorship, excludeTenant common.TenantID) []geometry.Shape {
	out := make([]geometry.Shape, 0, len(holders))
	for _, s := range holders {
		if !s.HoldsGeometry() {
			continue
		}
		if s.TenantID == excludeTenant {
			continue
		}
		out = append(out, s.Geometry)
	}
	return out
}
