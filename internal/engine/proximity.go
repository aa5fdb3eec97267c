package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/geo"
	"github.com/tourguard/geofence-agent/internal/models"
)

// SeverityBand maps a distance ceiling to an alert severity. Bands are
// evaluated in ascending MaxKm order; the first band whose ceiling covers
// the distance wins.
type SeverityBand struct {
	MaxKm    float64
	Severity models.AlertSeverity
}

// ProximityConfig holds the tunable thresholds of the tracker. All distance
// constants are configuration rather than code on purpose: the useful values
// depend on deployment terrain, not on the algorithm.
type ProximityConfig struct {
	RadiusKm         float64
	Cooldown         time.Duration
	MergeThresholdKm float64
	Bands            []SeverityBand
	ZoneIntensity    map[models.ZoneType]float64
}

// DefaultBands returns the stock severity table: anything under 1km is
// high severity, anything else inside the alert radius is moderate.
func DefaultBands(radiusKm float64) []SeverityBand {
	return []SeverityBand{
		{MaxKm: 1.0, Severity: models.SeverityHigh},
		{MaxKm: radiusKm, Severity: models.SeverityModerate},
	}
}

// ProximityTracker decides when the subject is newly within alert range of
// a POI or zone center, emitting at most one alert per target per cooldown
// window. Not safe for concurrent use; the Engine facade serializes access.
type ProximityTracker struct {
	logger zerolog.Logger
	zones  *ZoneIndex
	sink   EventSink

	cfg       ProximityConfig
	pois      []models.POI
	pos       *models.Point
	lastAlert map[string]time.Time
}

// NewProximityTracker creates a tracker bound to a zone index and an event
// sink. Configure must be called before ingestion.
func NewProximityTracker(zones *ZoneIndex, sink EventSink, logger zerolog.Logger) *ProximityTracker {
	return &ProximityTracker{
		logger:    logger,
		zones:     zones,
		sink:      sink,
		lastAlert: make(map[string]time.Time),
	}
}

// Configure validates and applies new thresholds. On error the entire call
// is rejected and the prior configuration stays in effect.
func (pt *ProximityTracker) Configure(cfg ProximityConfig) error {
	if cfg.RadiusKm <= 0 {
		return fmt.Errorf("%w: radius_km must be > 0, got %v", ErrConfiguration, cfg.RadiusKm)
	}
	if cfg.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative, got %v", ErrConfiguration, cfg.Cooldown)
	}
	if cfg.MergeThresholdKm < 0 {
		return fmt.Errorf("%w: merge_threshold_km must not be negative, got %v", ErrConfiguration, cfg.MergeThresholdKm)
	}
	if len(cfg.Bands) == 0 {
		cfg.Bands = DefaultBands(cfg.RadiusKm)
	}
	sort.Slice(cfg.Bands, func(i, j int) bool { return cfg.Bands[i].MaxKm < cfg.Bands[j].MaxKm })

	pt.cfg = cfg
	return nil
}

// IngestLocation updates the current position and re-evaluates the cached
// POI set and nearby zones against it.
func (pt *ProximityTracker) IngestLocation(p models.Point, at time.Time) {
	pt.pos = &p
	pt.evaluate(at)
}

// IngestPOISet replaces the POI cache wholesale and re-evaluates. Entries
// with unusable coordinates are dropped with a warning. Points closer than
// the merge threshold collapse into aggregate POIs first, so one real-world
// incident reported many times stays one alert target.
func (pt *ProximityTracker) IngestPOISet(pois []models.POI, at time.Time) {
	valid := make([]models.POI, 0, len(pois))
	for _, poi := range pois {
		if !geo.ValidCoordinate(poi.Position.Latitude, poi.Position.Longitude) {
			pt.logger.Warn().
				Err(ErrMalformedPOI).
				Str("poi_id", poi.ID).
				Msg("Dropping POI with invalid coordinates")
			continue
		}
		valid = append(valid, poi)
	}

	pt.pois = MergeNearby(valid, pt.cfg.MergeThresholdKm)
	pt.pruneCooldowns(at)
	pt.evaluate(at)
}

// Recheck re-evaluates the current position without a new fix, catching
// cooldown expiry between location updates.
func (pt *ProximityTracker) Recheck(at time.Time) {
	pt.evaluate(at)
}

// POICount reports the size of the merged POI cache.
func (pt *ProximityTracker) POICount() int {
	return len(pt.pois)
}

// MergeNearby collapses points within thresholdKm of an earlier point into
// that point, combining intensity (max), alert counts (sum) and timestamps
// (newest). Greedy and O(n²); acceptable for the tens-to-low-hundreds of
// POIs an active area produces, and documented as a scaling limit.
func MergeNearby(points []models.POI, thresholdKm float64) []models.POI {
	if thresholdKm <= 0 || len(points) < 2 {
		return points
	}

	merged := make([]models.POI, 0, len(points))
	absorbed := make([]bool, len(points))
	for i := range points {
		if absorbed[i] {
			continue
		}
		acc := points[i]
		for j := i + 1; j < len(points); j++ {
			if absorbed[j] {
				continue
			}
			if geo.Haversine(points[i].Position, points[j].Position) <= thresholdKm {
				acc = acc.Merge(points[j])
				absorbed[j] = true
			}
		}
		merged = append(merged, acc)
	}
	return merged
}

// evaluate runs one full pass over POIs and nearby zones, emitting alerts
// for every target inside the radius whose cooldown window has passed.
func (pt *ProximityTracker) evaluate(at time.Time) {
	if pt.pos == nil || pt.cfg.RadiusKm <= 0 {
		return
	}

	for _, poi := range pt.pois {
		d := geo.Haversine(*pt.pos, poi.Position)
		if d > pt.cfg.RadiusKm || !pt.cooldownPassed(poi.ID, at) {
			continue
		}
		pt.emitPOIAlert(poi, d, at)
	}

	for _, zd := range pt.zones.NearestZones(*pt.pos, 0, pt.cfg.RadiusKm) {
		key := "zone:" + zd.Zone.ID
		if !pt.cooldownPassed(key, at) {
			continue
		}
		pt.emitZoneAlert(zd, key, at)
	}
}

func (pt *ProximityTracker) cooldownPassed(key string, at time.Time) bool {
	last, seen := pt.lastAlert[key]
	return !seen || at.Sub(last) >= pt.cfg.Cooldown
}

func (pt *ProximityTracker) emitPOIAlert(poi models.POI, distanceKm float64, at time.Time) {
	event := models.ProximityAlertEvent{
		ID:          uuid.New().String(),
		Type:        poi.Type,
		Title:       alertTitle(poi.Type),
		Description: fmt.Sprintf("%s reported %.2f km from your position", alertTitle(poi.Type), distanceKm),
		DistanceKm:  distanceKm,
		Severity:    pt.severityFor(distanceKm),
		Timestamp:   at,
		SourceID:    poi.ID,
		Metadata: map[string]string{
			"intensity":   fmt.Sprintf("%.2f", poi.Intensity),
			"alert_count": fmt.Sprintf("%d", poi.AlertCount),
		},
	}

	pt.lastAlert[poi.ID] = at
	pt.logger.Info().
		Str("poi_id", poi.ID).
		Float64("distance_km", distanceKm).
		Str("severity", string(event.Severity)).
		Msg("Proximity alert triggered")
	pt.sink.ProximityAlert(event)
}

func (pt *ProximityTracker) emitZoneAlert(zd ZoneDistance, key string, at time.Time) {
	title := zd.Zone.WarningMessage
	if title == "" {
		title = fmt.Sprintf("Approaching %s", zd.Zone.Name)
	}

	event := models.ProximityAlertEvent{
		ID:          uuid.New().String(),
		Type:        models.POIRestrictedZone,
		Title:       title,
		Description: fmt.Sprintf("%s is %.2f km away", zd.Zone.Name, zd.DistanceKm),
		DistanceKm:  zd.DistanceKm,
		Severity:    pt.severityFor(zd.DistanceKm),
		Timestamp:   at,
		SourceID:    zd.Zone.ID,
		Metadata: map[string]string{
			"zone_type": string(zd.Zone.Type),
			"intensity": fmt.Sprintf("%.2f", pt.cfg.ZoneIntensity[zd.Zone.Type]),
		},
	}

	pt.lastAlert[key] = at
	pt.logger.Info().
		Str("zone_id", zd.Zone.ID).
		Float64("distance_km", zd.DistanceKm).
		Str("severity", string(event.Severity)).
		Msg("Zone proximity alert triggered")
	pt.sink.ProximityAlert(event)
}

func (pt *ProximityTracker) severityFor(distanceKm float64) models.AlertSeverity {
	for _, band := range pt.cfg.Bands {
		if distanceKm <= band.MaxKm {
			return band.Severity
		}
	}
	return models.SeverityLow
}

// pruneCooldowns drops ledger entries whose cooldown has long expired so the
// map does not grow with every POI that ever alerted.
func (pt *ProximityTracker) pruneCooldowns(at time.Time) {
	if pt.cfg.Cooldown <= 0 {
		return
	}
	for key, last := range pt.lastAlert {
		if at.Sub(last) > 2*pt.cfg.Cooldown {
			delete(pt.lastAlert, key)
		}
	}
}

func alertTitle(t models.POIType) string {
	switch t {
	case models.POIPanicAlert:
		return "Panic alert"
	case models.POISafetyIncident:
		return "Safety incident"
	case models.POIRestrictedZone:
		return "Restricted zone"
	default:
		return "Incident"
	}
}
