package location

import "time"

// Fix is a single position report from a provider.
type Fix struct {
	Latitude  float64
	Longitude float64
	AccuracyM float64
	Timestamp time.Time
}

// Provider is a pluggable source of location fixes. GetFix blocks until a
// fix is available or fails; providers that receive fixes asynchronously
// return the most recent one.
type Provider interface {
	GetFix() (Fix, error)
	Close() error
}
