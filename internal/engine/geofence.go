package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/geo"
	"github.com/tourguard/geofence-agent/internal/models"
)

// zoneState is the per-zone membership record. The subject is assumed
// outside until an evaluation proves otherwise.
type zoneState struct {
	inside           bool
	lastTransitionAt time.Time
	outsideStreak    int
}

// GeofenceStateMachine tracks per-zone membership and emits enter/exit
// events exactly once per crossing. Exits are debounced: the subject must be
// outside for debounceSamples consecutive evaluations before the exit
// commits, which keeps GPS jitter at a boundary from flapping. Not safe for
// concurrent use; the Engine facade serializes access.
type GeofenceStateMachine struct {
	logger          zerolog.Logger
	zones           *ZoneIndex
	debounceSamples int
	states          map[string]*zoneState
}

// NewGeofenceStateMachine creates a state machine over the given zone index.
// debounceSamples values below 1 are clamped to 1.
func NewGeofenceStateMachine(zones *ZoneIndex, debounceSamples int, logger zerolog.Logger) *GeofenceStateMachine {
	if debounceSamples < 1 {
		debounceSamples = 1
	}
	return &GeofenceStateMachine{
		logger:          logger,
		zones:           zones,
		debounceSamples: debounceSamples,
		states:          make(map[string]*zoneState),
	}
}

// Evaluate computes membership of p against every loaded zone and returns
// the boundary crossings this evaluation produced. Re-evaluating an
// unchanged position yields no events.
func (gf *GeofenceStateMachine) Evaluate(p models.Point, at time.Time) []models.GeofenceEvent {
	var events []models.GeofenceEvent

	for _, zone := range gf.zones.Zones() {
		contained := geo.PointInPolygon(p, zone.Polygon)

		st, ok := gf.states[zone.ID]
		if !ok {
			st = &zoneState{}
			gf.states[zone.ID] = st
		}

		switch {
		case !st.inside && contained:
			st.inside = true
			st.outsideStreak = 0
			st.lastTransitionAt = at
			events = append(events, gf.newEvent(models.GeofenceEnter, zone, at))

		case st.inside && !contained:
			st.outsideStreak++
			if st.outsideStreak >= gf.debounceSamples {
				st.inside = false
				st.outsideStreak = 0
				st.lastTransitionAt = at
				events = append(events, gf.newEvent(models.GeofenceExit, zone, at))
			}

		case st.inside && contained:
			// A confirming sample resets the exit debounce counter.
			st.outsideStreak = 0
		}
	}

	for _, e := range events {
		gf.logger.Info().
			Str("zone_id", e.ZoneID).
			Str("event", string(e.Type)).
			Msg("Geofence transition")
	}
	return events
}

// Reset clears stored membership for the given zone IDs, or for all zones
// when ids is empty. Called on zone reloads so a deleted zone cannot leave
// stale inside state behind.
func (gf *GeofenceStateMachine) Reset(ids []string) {
	if len(ids) == 0 {
		gf.states = make(map[string]*zoneState)
		return
	}
	for _, id := range ids {
		delete(gf.states, id)
	}
}

// Inside reports the stored membership for a zone ID.
func (gf *GeofenceStateMachine) Inside(zoneID string) bool {
	st, ok := gf.states[zoneID]
	return ok && st.inside
}

func (gf *GeofenceStateMachine) newEvent(t models.GeofenceEventType, zone models.RestrictedZone, at time.Time) models.GeofenceEvent {
	return models.GeofenceEvent{
		ID:        uuid.New().String(),
		Type:      t,
		ZoneID:    zone.ID,
		ZoneName:  zone.Name,
		ZoneType:  zone.Type,
		Timestamp: at,
	}
}
