package shared

import "math"

const earthRadiusKm = 6371.0

// GeoPoint is a WGS84 coordinate pair
type GeoPoint struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the haversine great-circle distance to other in km
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// IsZero reports whether the point is the unset origin
func (p GeoPoint) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}
