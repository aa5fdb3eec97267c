package engine

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/models"
)

// EventSink receives the engine's output events. Implementations must not
// block: delivery happens on the ingestion path.
type EventSink interface {
	ProximityAlert(event models.ProximityAlertEvent)
	GeofenceEvent(event models.GeofenceEvent)
}

const (
	counterProximityAlerts = "proximity_alerts"
	counterGeofenceEvents  = "geofence_events"
)

// Engine is the composition of ZoneIndex, ProximityTracker and
// GeofenceStateMachine behind a single serializing facade. The core
// components are single-threaded by contract; ingestion arrives from MQTT
// callbacks and tickers on separate goroutines, so serialization lives here.
type Engine struct {
	mu     sync.Mutex
	logger zerolog.Logger

	zones   *ZoneIndex
	tracker *ProximityTracker
	fence   *GeofenceStateMachine
	sink    EventSink

	// Event counters live outside the engine lock so the heartbeat service
	// can snapshot them while an evaluation is in flight.
	counters  cmap.ConcurrentMap[string, int64]
	lastFixAt time.Time
}

// NewEngine builds and configures the full engine. The sink receives every
// emitted event; cfg is validated the same way Configure is.
func NewEngine(cfg ProximityConfig, debounceSamples int, sink EventSink, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		logger:   logger,
		sink:     sink,
		counters: cmap.New[int64](),
	}

	e.zones = NewZoneIndex(logger)
	e.tracker = NewProximityTracker(e.zones, countingSink{e}, logger)
	e.fence = NewGeofenceStateMachine(e.zones, debounceSamples, logger)

	if err := e.tracker.Configure(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Configure replaces the proximity thresholds at runtime. Rejected
// configurations leave the previous ones intact.
func (e *Engine) Configure(cfg ProximityConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Configure(cfg)
}

// IngestLocation runs one evaluation round against the new fix: proximity
// targets first, then geofence membership.
func (e *Engine) IngestLocation(fix models.LocationFix) {
	at := fix.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastFixAt = at
	e.tracker.IngestLocation(fix.Point(), at)
	for _, event := range e.fence.Evaluate(fix.Point(), at) {
		e.bump(counterGeofenceEvents)
		e.sink.GeofenceEvent(event)
	}
}

// IngestPOIs replaces the POI working set and re-evaluates.
func (e *Engine) IngestPOIs(pois []models.POI) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.IngestPOISet(pois, time.Now())
}

// LoadZones replaces the zone working set, returning the number of skipped
// degenerate zones. Geofence state is cleared only for zones that
// disappeared, so the subject does not re-trigger enter events for zones it
// is already known to be inside of.
func (e *Engine) LoadZones(zones []models.RestrictedZone) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := make(map[string]struct{}, len(e.zones.Zones()))
	for _, z := range e.zones.Zones() {
		previous[z.ID] = struct{}{}
	}

	skipped := e.zones.Load(zones)

	for _, z := range e.zones.Zones() {
		delete(previous, z.ID)
	}
	removed := make([]string, 0, len(previous))
	for id := range previous {
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		e.fence.Reset(removed)
	}
	return skipped
}

// Recheck re-evaluates the last known position, catching cooldown expiry
// that happened without a new fix or data refresh.
func (e *Engine) Recheck() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracker.Recheck(time.Now())
}

// ContainingZones answers which zones hold the given point right now.
func (e *Engine) ContainingZones(p models.Point) []models.RestrictedZone {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zones.ContainsPoint(p)
}

// Status snapshots the engine's working-set sizes and event counters.
func (e *Engine) Status() models.EngineStatus {
	e.mu.Lock()
	loaded, skipped := e.zones.Counts()
	pois := e.tracker.POICount()
	lastFix := e.lastFixAt
	e.mu.Unlock()

	return models.EngineStatus{
		ZoneCount:       loaded,
		SkippedZones:    skipped,
		POICount:        pois,
		LastFixAt:       lastFix,
		ProximityAlerts: e.counter(counterProximityAlerts),
		GeofenceEvents:  e.counter(counterGeofenceEvents),
	}
}

func (e *Engine) bump(name string) {
	e.counters.Upsert(name, 1, func(exists bool, current, incr int64) int64 {
		return current + incr
	})
}

func (e *Engine) counter(name string) int64 {
	v, _ := e.counters.Get(name)
	return v
}

// countingSink wraps the outer sink so every tracker emission bumps the
// engine's counters on its way out.
type countingSink struct {
	engine *Engine
}

func (s countingSink) ProximityAlert(event models.ProximityAlertEvent) {
	s.engine.bump(counterProximityAlerts)
	s.engine.sink.ProximityAlert(event)
}

func (s countingSink) GeofenceEvent(event models.GeofenceEvent) {
	s.engine.bump(counterGeofenceEvents)
	s.engine.sink.GeofenceEvent(event)
}
