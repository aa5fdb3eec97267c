package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/tourguard/geofence-agent/internal/models"
)

var (
	insideRedFort  = models.Point{Latitude: 28.62, Longitude: 77.21}
	outsideRedFort = models.Point{Latitude: 28.70, Longitude: 77.30}
)

func newTestFence(t *testing.T, debounce int) (*GeofenceStateMachine, *ZoneIndex) {
	t.Helper()
	zones := NewZoneIndex(zerolog.Nop())
	zones.Load([]models.RestrictedZone{redFortZone()})
	return NewGeofenceStateMachine(zones, debounce, zerolog.Nop()), zones
}

func eventTypes(events []models.GeofenceEvent) []models.GeofenceEventType {
	types := make([]models.GeofenceEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestGeofence_FirstEvaluationInsideEmitsEnter(t *testing.T) {
	fence, _ := newTestFence(t, 1)

	events := fence.Evaluate(insideRedFort, time.Now())
	if assert.Len(t, events, 1) {
		assert.Equal(t, models.GeofenceEnter, events[0].Type)
		assert.Equal(t, "red-fort", events[0].ZoneID)
		assert.Equal(t, models.ZoneDangerous, events[0].ZoneType)
	}
	assert.True(t, fence.Inside("red-fort"))
}

func TestGeofence_EvaluateIsIdempotent(t *testing.T) {
	fence, _ := newTestFence(t, 1)

	assert.Len(t, fence.Evaluate(insideRedFort, time.Now()), 1)
	assert.Empty(t, fence.Evaluate(insideRedFort, time.Now()))
	assert.Empty(t, fence.Evaluate(insideRedFort, time.Now()))
}

func TestGeofence_ExactlyOneEnterPerCrossing(t *testing.T) {
	fence, _ := newTestFence(t, 1)

	// Monotonic approach: several fixes outside, then several inside.
	var all []models.GeofenceEvent
	path := []models.Point{
		{Latitude: 28.58, Longitude: 77.21},
		{Latitude: 28.59, Longitude: 77.21},
		{Latitude: 28.61, Longitude: 77.21},
		{Latitude: 28.62, Longitude: 77.21},
		{Latitude: 28.63, Longitude: 77.21},
	}
	at := time.Now()
	for i, p := range path {
		all = append(all, fence.Evaluate(p, at.Add(time.Duration(i)*time.Second))...)
	}

	assert.Equal(t, []models.GeofenceEventType{models.GeofenceEnter}, eventTypes(all))
}

func TestGeofence_EnterThenExitOrder(t *testing.T) {
	fence, _ := newTestFence(t, 1)

	t0 := time.Now()
	t1 := t0.Add(10 * time.Second)
	t2 := t0.Add(20 * time.Second)

	assert.Empty(t, fence.Evaluate(outsideRedFort, t0))

	enter := fence.Evaluate(insideRedFort, t1)
	exit := fence.Evaluate(outsideRedFort, t2)

	if assert.Len(t, enter, 1) && assert.Len(t, exit, 1) {
		assert.Equal(t, models.GeofenceEnter, enter[0].Type)
		assert.Equal(t, t1, enter[0].Timestamp)
		assert.Equal(t, models.GeofenceExit, exit[0].Type)
		assert.Equal(t, t2, exit[0].Timestamp)
	}
}

func TestGeofence_ExitDebounce(t *testing.T) {
	fence, _ := newTestFence(t, 2)

	at := time.Now()
	fence.Evaluate(insideRedFort, at)

	// One outside sample is GPS jitter, not an exit.
	assert.Empty(t, fence.Evaluate(outsideRedFort, at.Add(time.Second)))
	assert.True(t, fence.Inside("red-fort"))

	// Second consecutive outside sample commits the exit.
	events := fence.Evaluate(outsideRedFort, at.Add(2*time.Second))
	if assert.Len(t, events, 1) {
		assert.Equal(t, models.GeofenceExit, events[0].Type)
	}
	assert.False(t, fence.Inside("red-fort"))
}

func TestGeofence_InsideSampleResetsDebounce(t *testing.T) {
	fence, _ := newTestFence(t, 2)

	at := time.Now()
	fence.Evaluate(insideRedFort, at)

	// outside, inside, outside: never two consecutive outside samples.
	assert.Empty(t, fence.Evaluate(outsideRedFort, at.Add(1*time.Second)))
	assert.Empty(t, fence.Evaluate(insideRedFort, at.Add(2*time.Second)))
	assert.Empty(t, fence.Evaluate(outsideRedFort, at.Add(3*time.Second)))
	assert.True(t, fence.Inside("red-fort"))
}

func TestGeofence_Reset(t *testing.T) {
	fence, _ := newTestFence(t, 1)

	fence.Evaluate(insideRedFort, time.Now())
	assert.True(t, fence.Inside("red-fort"))

	fence.Reset([]string{"red-fort"})
	assert.False(t, fence.Inside("red-fort"))

	// After a reset the next inside evaluation is a fresh enter.
	events := fence.Evaluate(insideRedFort, time.Now())
	assert.Equal(t, []models.GeofenceEventType{models.GeofenceEnter}, eventTypes(events))
}

func TestGeofence_ResetAll(t *testing.T) {
	fence, zones := newTestFence(t, 1)

	other := redFortZone()
	other.ID = "other"
	zones.Load([]models.RestrictedZone{redFortZone(), other})

	fence.Evaluate(insideRedFort, time.Now())
	assert.True(t, fence.Inside("red-fort"))
	assert.True(t, fence.Inside("other"))

	fence.Reset(nil)
	assert.False(t, fence.Inside("red-fort"))
	assert.False(t, fence.Inside("other"))
}

func TestGeofence_DebounceClampedToOne(t *testing.T) {
	fence := NewGeofenceStateMachine(NewZoneIndex(zerolog.Nop()), 0, zerolog.Nop())
	assert.Equal(t, 1, fence.debounceSamples)
}
