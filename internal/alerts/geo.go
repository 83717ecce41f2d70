package alerts

import "math"

const earthRadiusKM = 6371.0088

// DistanceKM is the great-circle distance between two points.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Locate reports where pos sits relative to g.
func (g Geofence) Locate(pos Position) Proximity {
	d := DistanceKM(pos.Lat, pos.Lon, g.Lat, g.Lon)
	return Proximity{DistanceKM: d, Inside: d <= g.RadiusKM}
}

func (g Geofence) valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180 && g.RadiusKM > 0
}
