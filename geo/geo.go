// Package geo wraps great-circle distance and bearing calculations used to
// place vessels relative to bridges.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Point is a (lat, lon) pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

func (p Point) orbPoint() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// Distance returns the great-circle distance between two points in meters,
// computed with the haversine formula on a spherical Earth. Non-finite
// inputs return (0, false).
func Distance(a, b Point) (float64, bool) {
	if !finite(a.Lat, a.Lon, b.Lat, b.Lon) {
		return 0, false
	}
	d := geo.DistanceHaversine(a.orbPoint(), b.orbPoint())
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

// Bearing returns the forward azimuth from a to b, normalized to [0, 360).
func Bearing(a, b Point) (float64, bool) {
	if !finite(a.Lat, a.Lon, b.Lat, b.Lon) {
		return 0, false
	}
	brg := geo.Bearing(a.orbPoint(), b.orbPoint())
	if math.IsNaN(brg) {
		return 0, false
	}
	return normalize360(brg), true
}

// BoundingBox is an inclusive lat/lon rectangle used to filter reports that
// fall outside the configured canal segment.
type BoundingBox struct {
	North, South, East, West float64
}

// Contains reports whether the point lies inside the box, inclusive of the
// edges. Non-finite coordinates never match.
func (b BoundingBox) Contains(p Point) bool {
	if !finite(p.Lat, p.Lon) {
		return false
	}
	if p.Lat > b.North || p.Lat < b.South {
		return false
	}
	if b.West <= b.East {
		return p.Lon >= b.West && p.Lon <= b.East
	}
	// box straddles the antimeridian
	return p.Lon >= b.West || p.Lon <= b.East
}

func normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
