package geospatial

import "math"

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// RingPerimeter returns the length in meters of the closed ring through the
// given lat/lon pairs. The closing edge back to the first point is included.
func RingPerimeter(lats, lons []float64) float64 {
	n := len(lats)
	if n < 2 || len(lons) != n {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		total += Haversine(lats[i], lons[i], lats[j], lons[j])
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
