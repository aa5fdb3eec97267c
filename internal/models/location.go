package models

import (
	"time"
)

// LocationFix is a single position report for the tracked subject.
type LocationFix struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
}

// Point returns the fix coordinates as a Point.
func (f LocationFix) Point() Point {
	return Point{Latitude: f.Latitude, Longitude: f.Longitude}
}
