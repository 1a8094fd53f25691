package vector

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultQuadrantSegments is the number of segments used to approximate a
// quarter circle.
const DefaultQuadrantSegments = 5

// Buffer returns the disc of the given radius around p as a closed, counter
// clockwise polygon with 4*quadSegs vertices. A radius <= 0 gives nil.
func Buffer(p orb.Point, radius float64, quadSegs int) orb.Polygon {
	if radius <= 0 || math.IsNaN(radius) {
		return nil
	}
	if quadSegs < 1 {
		quadSegs = DefaultQuadrantSegments
	}
	n := 4 * quadSegs
	ring := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, orb.Point{p[0] + radius*math.Cos(a), p[1] + radius*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
