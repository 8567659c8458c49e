package geo

import (
	"math"
	"testing"
)

func TestIsInsideCenter(t *testing.T) {
	// A point at the center is inside for any non-negative radius.
	radii := []float64{0, 0.5, 25, 10000}
	for _, r := range radii {
		if !IsInside(45.123456, 9.123456, 45.123456, 9.123456, r) {
			t.Errorf("center point not inside with radius %v", r)
		}
	}
}

func TestIsInsideBoundaryInclusive(t *testing.T) {
	centerLat, centerLon := 45.0, 9.0
	// Pick a point, measure its distance, then use exactly that distance as
	// the radius: the boundary must count as inside.
	lat, lon := 45.0003, 9.0004
	d := Distance(lat, lon, centerLat, centerLon)
	if !IsInside(lat, lon, centerLat, centerLon, d) {
		t.Errorf("point at distance exactly radius (%.3f m) not inside", d)
	}
	if IsInside(lat, lon, centerLat, centerLon, d-0.01) {
		t.Errorf("point just beyond radius reported inside")
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude is ~111.2 km on a 6371 km sphere.
	d := Distance(45.0, 9.0, 46.0, 9.0)
	want := 2 * math.Pi * earthRadiusMeters / 360
	if math.Abs(d-want) > 1.0 {
		t.Errorf("Distance over 1 deg latitude = %.1f m, want ~%.1f m", d, want)
	}
}

func TestIsInsideOutsidePoint(t *testing.T) {
	// ~55 m east of center with a 25 m radius is outside.
	if IsInside(45.0, 9.0007, 45.0, 9.0, 25) {
		t.Error("point ~55m away reported inside 25m radius")
	}
}

func TestIsInsideNaNIsFalse(t *testing.T) {
	if IsInside(math.NaN(), 9.0, 45.0, 9.0, 1000) {
		t.Error("NaN latitude must never be inside")
	}
}
