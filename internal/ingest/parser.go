// Package ingest normalizes the heterogeneous JSON payloads produced by the
// upstream backend and companion apps into the typed structures the engine
// consumes. Upstream feeds disagree on coordinate key names (lat/latitude,
// lon/lng/longitude); that tolerance lives here and nowhere else.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tourguard/geofence-agent/internal/geo"
	"github.com/tourguard/geofence-agent/internal/models"
)

// ZoneSet is a parsed, versioned zone document.
type ZoneSet struct {
	Version string
	Zones   []models.RestrictedZone
	Dropped int

	// ObjectBucket/ObjectKey are set when the document carries an object
	// storage pointer instead of an inline zone list.
	ObjectBucket string
	ObjectKey    string
}

var latKeys = []string{"latitude", "lat"}
var lonKeys = []string{"longitude", "lon", "lng"}

// ParseZonePayload decodes a zone document of the form
// {"version": "1.2.0", "zones": [...]} or
// {"version": "1.2.0", "object": {"bucket": ..., "key": ...}}.
// Zones without an ID or polygon are dropped and counted, never fatal.
func ParseZonePayload(payload []byte) (ZoneSet, error) {
	var doc struct {
		Version string                   `json:"version"`
		Zones   []map[string]interface{} `json:"zones"`
		Object  struct {
			Bucket string `json:"bucket"`
			Key    string `json:"key"`
		} `json:"object"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return ZoneSet{}, fmt.Errorf("zone payload is not valid JSON: %w", err)
	}

	set := ZoneSet{
		Version:      doc.Version,
		ObjectBucket: doc.Object.Bucket,
		ObjectKey:    doc.Object.Key,
	}

	for _, raw := range doc.Zones {
		zone, ok := parseZone(raw)
		if !ok {
			set.Dropped++
			continue
		}
		set.Zones = append(set.Zones, zone)
	}
	return set, nil
}

func parseZone(raw map[string]interface{}) (models.RestrictedZone, bool) {
	id, _ := raw["id"].(string)
	if id == "" {
		return models.RestrictedZone{}, false
	}

	zone := models.RestrictedZone{
		ID:   id,
		Type: models.ZoneSafe,
	}
	zone.Name, _ = raw["name"].(string)

	if t, ok := stringFrom(raw, "type", "zone_type"); ok {
		zone.Type = models.ZoneType(t)
	}
	if msg, ok := stringFrom(raw, "warning_message", "message"); ok {
		zone.WarningMessage = msg
	}

	vertices, ok := raw["polygon"].([]interface{})
	if !ok {
		return models.RestrictedZone{}, false
	}
	for _, v := range vertices {
		vm, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		p, ok := pointFrom(vm)
		if !ok {
			continue
		}
		zone.Polygon = append(zone.Polygon, p)
	}
	if len(zone.Polygon) == 0 {
		return models.RestrictedZone{}, false
	}

	if cm, ok := raw["center"].(map[string]interface{}); ok {
		if c, ok := pointFrom(cm); ok {
			zone.Center = &c
		}
	}
	return zone, true
}

// ParsePOIPayload decodes a POI feed message: either a bare array or a
// document with an "alerts" or "pois" field. Entries without usable
// coordinates are dropped; the dropped count is returned alongside.
func ParsePOIPayload(payload []byte) ([]models.POI, int, error) {
	var entries []map[string]interface{}
	if err := json.Unmarshal(payload, &entries); err != nil {
		var doc struct {
			Alerts []map[string]interface{} `json:"alerts"`
			POIs   []map[string]interface{} `json:"pois"`
		}
		if err := json.Unmarshal(payload, &doc); err != nil {
			return nil, 0, fmt.Errorf("poi payload is not valid JSON: %w", err)
		}
		entries = doc.Alerts
		if entries == nil {
			entries = doc.POIs
		}
	}

	pois := make([]models.POI, 0, len(entries))
	dropped := 0
	for _, raw := range entries {
		poi, ok := parsePOI(raw)
		if !ok {
			dropped++
			continue
		}
		pois = append(pois, poi)
	}
	return pois, dropped, nil
}

func parsePOI(raw map[string]interface{}) (models.POI, bool) {
	p, ok := pointFrom(raw)
	if !ok {
		return models.POI{}, false
	}

	poi := models.POI{
		Position:   p,
		Type:       models.POIGeneral,
		Intensity:  0.5,
		AlertCount: 1,
		Timestamp:  time.Now(),
	}

	if id, ok := stringFrom(raw, "id", "alert_id"); ok {
		poi.ID = id
	} else {
		poi.ID = uuid.New().String()
	}
	if t, ok := stringFrom(raw, "type", "alert_type"); ok {
		poi.Type = models.POIType(t)
	}
	if v, ok := floatFrom(raw, "intensity"); ok {
		poi.Intensity = math.Min(math.Max(v, 0), 1)
	}
	if v, ok := floatFrom(raw, "alert_count", "count"); ok && v >= 1 {
		poi.AlertCount = int(v)
	}
	if ts, ok := timeFrom(raw, "timestamp", "created_at"); ok {
		poi.Timestamp = ts
	}
	return poi, true
}

// ParseLocationFix decodes a single position report.
func ParseLocationFix(payload []byte) (models.LocationFix, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return models.LocationFix{}, fmt.Errorf("location payload is not valid JSON: %w", err)
	}

	p, ok := pointFrom(raw)
	if !ok {
		return models.LocationFix{}, fmt.Errorf("location payload has no usable coordinates")
	}

	fix := models.LocationFix{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: time.Now(),
	}
	if id, ok := stringFrom(raw, "device_id"); ok {
		fix.DeviceID = id
	}
	if v, ok := floatFrom(raw, "accuracy_m", "accuracy"); ok {
		fix.AccuracyM = v
	}
	if ts, ok := timeFrom(raw, "timestamp"); ok {
		fix.Timestamp = ts
	}
	return fix, nil
}

func pointFrom(raw map[string]interface{}) (models.Point, bool) {
	lat, okLat := floatFrom(raw, latKeys...)
	lon, okLon := floatFrom(raw, lonKeys...)
	if !okLat || !okLon || !geo.ValidCoordinate(lat, lon) {
		return models.Point{}, false
	}
	return models.Point{Latitude: lat, Longitude: lon}, true
}

func floatFrom(raw map[string]interface{}, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := raw[key].(float64); ok {
			return v, true
		}
	}
	return 0, false
}

func stringFrom(raw map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// timeFrom accepts RFC3339 strings or unix-second numbers.
func timeFrom(raw map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, true
			}
		case float64:
			return time.Unix(int64(v), 0).UTC(), true
		}
	}
	return time.Time{}, false
}
