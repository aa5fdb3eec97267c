package models

import "time"

// POIType classifies a point of interest used for proximity alerting.
type POIType string

const (
	POIPanicAlert     POIType = "panic_alert"
	POIRestrictedZone POIType = "restricted_zone"
	POISafetyIncident POIType = "safety_incident"
	POIGeneral        POIType = "general"
)

// POI is a point of interest: a panic alert or incident location against
// which the subject's position is evaluated. Instances are never mutated in
// place; merging nearby points produces a new aggregate instance.
type POI struct {
	ID         string    `json:"id"`
	Type       POIType   `json:"type"`
	Position   Point     `json:"position"`
	Intensity  float64   `json:"intensity"`
	Timestamp  time.Time `json:"timestamp"`
	AlertCount int       `json:"alert_count"`
}

// Merge combines p with other into a new aggregate POI. The position and
// identity of p win; intensity is the maximum, counts add up and the newer
// timestamp is kept.
func (p POI) Merge(other POI) POI {
	merged := p
	if other.Intensity > merged.Intensity {
		merged.Intensity = other.Intensity
	}
	merged.AlertCount += other.AlertCount
	if other.Timestamp.After(merged.Timestamp) {
		merged.Timestamp = other.Timestamp
	}
	return merged
}
