package models

import "time"

// AlertSeverity grades an emitted proximity alert.
type AlertSeverity string

const (
	SeverityHigh     AlertSeverity = "high"
	SeverityModerate AlertSeverity = "moderate"
	SeverityLow      AlertSeverity = "low"
)

// ProximityAlertEvent is emitted when the subject comes within alert range
// of a POI or zone center. Immutable once emitted.
type ProximityAlertEvent struct {
	ID          string            `json:"id"`
	DeviceID    string            `json:"device_id,omitempty"`
	Type        POIType           `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	DistanceKm  float64           `json:"distance_km"`
	Severity    AlertSeverity     `json:"severity"`
	Timestamp   time.Time         `json:"timestamp"`
	SourceID    string            `json:"source_id"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// GeofenceEventType marks a zone boundary crossing direction.
type GeofenceEventType string

const (
	GeofenceEnter GeofenceEventType = "enter"
	GeofenceExit  GeofenceEventType = "exit"
)

// GeofenceEvent is emitted exactly once per zone boundary crossing.
type GeofenceEvent struct {
	ID        string            `json:"id"`
	DeviceID  string            `json:"device_id,omitempty"`
	Type      GeofenceEventType `json:"type"`
	ZoneID    string            `json:"zone_id"`
	ZoneName  string            `json:"zone_name"`
	ZoneType  ZoneType          `json:"zone_type"`
	Timestamp time.Time         `json:"timestamp"`
}

// EngineStatus is a point-in-time snapshot of the engine's working sets,
// used by the heartbeat service and exposed for diagnostics.
type EngineStatus struct {
	ZoneCount       int       `json:"zone_count"`
	SkippedZones    int       `json:"skipped_zones"`
	POICount        int       `json:"poi_count"`
	LastFixAt       time.Time `json:"last_fix_at"`
	ProximityAlerts int64     `json:"proximity_alerts"`
	GeofenceEvents  int64     `json:"geofence_events"`
}
