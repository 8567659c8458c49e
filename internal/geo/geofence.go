// Package geo evaluates the circular outdoor perimeter.
package geo

import "math"

// Mean Earth radius in meters.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle (haversine) distance in meters between
// two WGS84 coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// IsInside reports whether the point lies within radiusMeters of the center.
// The boundary counts as inside. Inputs are not validated: NaN coordinates
// propagate through the haversine and the comparison comes out false.
func IsInside(lat, lon, centerLat, centerLon, radiusMeters float64) bool {
	return Distance(lat, lon, centerLat, centerLon) <= radiusMeters
}
