package geo

import (
	"math"

	"github.com/tourguard/geofence-agent/internal/models"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
// The spherical approximation is fine for the sub-1000km ranges the agent
// works with.
const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between a and b in kilometers.
func Haversine(a, b models.Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PointInPolygon reports whether p lies inside the implicitly closed ring
// using the even-odd ray-casting rule. A point exactly on an edge may be
// reported either way. Rings with fewer than 3 vertices never contain
// anything.
func PointInPolygon(p models.Point, ring []models.Point) bool {
	if len(ring) < 3 {
		return false
	}

	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		vi, vj := ring[i], ring[j]
		if (vi.Longitude > p.Longitude) != (vj.Longitude > p.Longitude) {
			cross := (vj.Latitude-vi.Latitude)*(p.Longitude-vi.Longitude)/
				(vj.Longitude-vi.Longitude) + vi.Latitude
			if p.Latitude < cross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// ValidCoordinate reports whether lat/lon form a usable WGS84 coordinate.
func ValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
