package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/tourguard/geofence-agent/internal/models"
)

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	alerts []models.ProximityAlertEvent
	fences []models.GeofenceEvent
}

func (s *recordingSink) ProximityAlert(e models.ProximityAlertEvent) {
	s.alerts = append(s.alerts, e)
}

func (s *recordingSink) GeofenceEvent(e models.GeofenceEvent) {
	s.fences = append(s.fences, e)
}

func newTestTracker(t *testing.T, cfg ProximityConfig) (*ProximityTracker, *recordingSink, *ZoneIndex) {
	t.Helper()
	sink := &recordingSink{}
	zones := NewZoneIndex(zerolog.Nop())
	tracker := NewProximityTracker(zones, sink, zerolog.Nop())
	if err := tracker.Configure(cfg); err != nil {
		t.Fatalf("configure: %v", err)
	}
	return tracker, sink, zones
}

func panicPOI(id string, lat, lon, intensity float64) models.POI {
	return models.POI{
		ID:         id,
		Type:       models.POIPanicAlert,
		Position:   models.Point{Latitude: lat, Longitude: lon},
		Intensity:  intensity,
		Timestamp:  time.Now(),
		AlertCount: 1,
	}
}

func TestProximityTracker_AlertWithinRadius(t *testing.T) {
	tracker, sink, _ := newTestTracker(t, ProximityConfig{RadiusKm: 5, Cooldown: 5 * time.Minute})

	now := time.Now()
	tracker.IngestPOISet([]models.POI{panicPOI("poi-1", 28.6139, 77.2090, 0.9)}, now)
	tracker.IngestLocation(models.Point{Latitude: 28.6150, Longitude: 77.2090}, now)

	if assert.Len(t, sink.alerts, 1) {
		alert := sink.alerts[0]
		assert.Equal(t, "poi-1", alert.SourceID)
		assert.Equal(t, models.POIPanicAlert, alert.Type)
		assert.InDelta(t, 0.12, alert.DistanceKm, 0.02)
		assert.Equal(t, models.SeverityHigh, alert.Severity)
	}
}

func TestProximityTracker_NoAlertOutsideRadius(t *testing.T) {
	tracker, sink, _ := newTestTracker(t, ProximityConfig{RadiusKm: 5, Cooldown: 5 * time.Minute})

	now := time.Now()
	tracker.IngestPOISet([]models.POI{panicPOI("poi-1", 28.6139, 77.2090, 0.9)}, now)
	// Roughly 120km north of the POI.
	tracker.IngestLocation(models.Point{Latitude: 29.70, Longitude: 77.2090}, now)

	assert.Empty(t, sink.alerts)
}

func TestProximityTracker_CooldownSuppressesRepeats(t *testing.T) {
	tracker, sink, _ := newTestTracker(t, ProximityConfig{RadiusKm: 5, Cooldown: 5 * time.Minute})

	t0 := time.Now()
	subject := models.Point{Latitude: 28.6150, Longitude: 77.2090}

	tracker.IngestPOISet([]models.POI{panicPOI("poi-1", 28.6139, 77.2090, 0.9)}, t0)
	tracker.IngestLocation(subject, t0)
	assert.Len(t, sink.alerts, 1)

	// Still inside the cooldown window: no second alert.
	tracker.IngestLocation(subject, t0.Add(time.Minute))
	tracker.Recheck(t0.Add(2 * time.Minute))
	assert.Len(t, sink.alerts, 1)

	// Cooldown expired: the same POI may alert again.
	tracker.IngestLocation(subject, t0.Add(6*time.Minute))
	assert.Len(t, sink.alerts, 2)
}

func TestProximityTracker_SeverityBands(t *testing.T) {
	tracker, sink, _ := newTestTracker(t, ProximityConfig{
		RadiusKm: 10,
		Cooldown: time.Minute,
		Bands: []SeverityBand{
			{MaxKm: 1, Severity: models.SeverityHigh},
			{MaxKm: 10, Severity: models.SeverityModerate},
		},
	})

	now := time.Now()
	tracker.IngestPOISet([]models.POI{
		panicPOI("close", 28.6139, 77.2090, 0.9),
		panicPOI("distant", 28.68, 77.2090, 0.9), // ~7km north
	}, now)
	tracker.IngestLocation(models.Point{Latitude: 28.6150, Longitude: 77.2090}, now)

	severities := map[string]models.AlertSeverity{}
	for _, a := range sink.alerts {
		severities[a.SourceID] = a.Severity
	}
	assert.Equal(t, models.SeverityHigh, severities["close"])
	assert.Equal(t, models.SeverityModerate, severities["distant"])
}

func TestProximityTracker_ConfigureRejectsBadValues(t *testing.T) {
	tracker, _, _ := newTestTracker(t, ProximityConfig{RadiusKm: 5, Cooldown: time.Minute})

	err := tracker.Configure(ProximityConfig{RadiusKm: 0, Cooldown: time.Minute})
	assert.ErrorIs(t, err, ErrConfiguration)

	err = tracker.Configure(ProximityConfig{RadiusKm: 5, Cooldown: -time.Second})
	assert.ErrorIs(t, err, ErrConfiguration)

	err = tracker.Configure(ProximityConfig{RadiusKm: 5, Cooldown: time.Minute, MergeThresholdKm: -1})
	assert.ErrorIs(t, err, ErrConfiguration)

	// Prior configuration survives a rejected call.
	assert.Equal(t, 5.0, tracker.cfg.RadiusKm)
}

func TestProximityTracker_DropsMalformedPOIs(t *testing.T) {
	tracker, _, _ := newTestTracker(t, ProximityConfig{RadiusKm: 5, Cooldown: time.Minute})

	now := time.Now()
	tracker.IngestPOISet([]models.POI{
		panicPOI("good", 28.6139, 77.2090, 0.5),
		{ID: "nan", Position: models.Point{Latitude: math.NaN(), Longitude: 77.2}},
		{ID: "out-of-range", Position: models.Point{Latitude: 123, Longitude: 77.2}},
	}, now)

	assert.Equal(t, 1, tracker.POICount())
}

func TestProximityTracker_ZoneProximityAlert(t *testing.T) {
	tracker, sink, zones := newTestTracker(t, ProximityConfig{
		RadiusKm:      5,
		Cooldown:      time.Minute,
		ZoneIntensity: map[models.ZoneType]float64{models.ZoneDangerous: 1.0},
	})

	zone := redFortZone()
	zone.Center = &models.Point{Latitude: 28.63, Longitude: 77.21}
	zone.WarningMessage = "Entry prohibited after dark"
	zones.Load([]models.RestrictedZone{zone})

	tracker.IngestLocation(models.Point{Latitude: 28.6150, Longitude: 77.2090}, time.Now())

	if assert.Len(t, sink.alerts, 1) {
		alert := sink.alerts[0]
		assert.Equal(t, models.POIRestrictedZone, alert.Type)
		assert.Equal(t, "red-fort", alert.SourceID)
		assert.Equal(t, "Entry prohibited after dark", alert.Title)
		assert.Equal(t, "1.00", alert.Metadata["intensity"])
	}
}

func TestMergeNearby(t *testing.T) {
	base := time.Now()
	a := panicPOI("a", 28.6139, 77.2090, 0.4)
	a.Timestamp = base
	b := panicPOI("b", 28.6148, 77.2090, 0.9) // ~0.1km from a
	b.Timestamp = base.Add(time.Minute)
	far := panicPOI("far", 28.70, 77.2090, 0.2) // ~9.5km away

	merged := MergeNearby([]models.POI{a, b, far}, 1.0)

	if assert.Len(t, merged, 2) {
		first := merged[0]
		assert.Equal(t, "a", first.ID)
		assert.Equal(t, a.Position, first.Position)
		assert.Equal(t, 0.9, first.Intensity)
		assert.Equal(t, 2, first.AlertCount)
		assert.Equal(t, b.Timestamp, first.Timestamp)

		assert.Equal(t, "far", merged[1].ID)
		assert.Equal(t, 1, merged[1].AlertCount)
	}
}

func TestMergeNearby_NoThreshold(t *testing.T) {
	points := []models.POI{
		panicPOI("a", 28.6139, 77.2090, 0.4),
		panicPOI("b", 28.6140, 77.2090, 0.9),
	}
	assert.Len(t, MergeNearby(points, 0), 2)
}

func TestDefaultBands(t *testing.T) {
	bands := DefaultBands(5)
	if assert.Len(t, bands, 2) {
		assert.Equal(t, models.SeverityHigh, bands[0].Severity)
		assert.Equal(t, 1.0, bands[0].MaxKm)
		assert.Equal(t, models.SeverityModerate, bands[1].Severity)
		assert.Equal(t, 5.0, bands[1].MaxKm)
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrConfiguration, ErrInvalidZone))
	assert.False(t, errors.Is(ErrMalformedPOI, ErrConfiguration))
}
