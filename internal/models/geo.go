package models

// Point is a WGS84 coordinate pair in degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ZoneType classifies a restricted zone by severity.
type ZoneType string

const (
	ZoneDangerous  ZoneType = "dangerous"
	ZoneHighRisk   ZoneType = "high_risk"
	ZoneRestricted ZoneType = "restricted"
	ZoneCaution    ZoneType = "caution"
	ZoneSafe       ZoneType = "safe"
)

// SeverityRank orders zone types from safe (0) to dangerous (4).
// Unknown types rank below safe so they never win a severity reduction.
func (z ZoneType) SeverityRank() int {
	switch z {
	case ZoneDangerous:
		return 4
	case ZoneHighRisk:
		return 3
	case ZoneRestricted:
		return 2
	case ZoneCaution:
		return 1
	case ZoneSafe:
		return 0
	default:
		return -1
	}
}

// RestrictedZone is a polygonal area loaded from the backend zone dataset.
// The polygon is an implicitly closed ring: the last vertex connects back to
// the first. Self-intersecting rings yield undefined containment results.
type RestrictedZone struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Type           ZoneType `json:"type"`
	Polygon        []Point  `json:"polygon"`
	Center         *Point   `json:"center,omitempty"`
	WarningMessage string   `json:"warning_message,omitempty"`
}

// RepresentativeCenter returns the precomputed center when the dataset
// provides one, otherwise the arithmetic mean of the polygon vertices.
func (z *RestrictedZone) RepresentativeCenter() Point {
	if z.Center != nil {
		return *z.Center
	}
	var lat, lon float64
	for _, v := range z.Polygon {
		lat += v.Latitude
		lon += v.Longitude
	}
	n := float64(len(z.Polygon))
	if n == 0 {
		return Point{}
	}
	return Point{Latitude: lat / n, Longitude: lon / n}
}
