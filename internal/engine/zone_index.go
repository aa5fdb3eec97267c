package engine

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/geo"
	"github.com/tourguard/geofence-agent/internal/models"
)

// ZoneIndex holds the working set of restricted zones and answers
// containment and distance queries against it. The set is replaced
// wholesale on every load; there are no partial updates.
type ZoneIndex struct {
	logger  zerolog.Logger
	zones   []models.RestrictedZone
	skipped int
}

// ZoneDistance pairs a zone with its distance from a query point.
type ZoneDistance struct {
	Zone       models.RestrictedZone
	DistanceKm float64
}

// NewZoneIndex creates an empty index.
func NewZoneIndex(logger zerolog.Logger) *ZoneIndex {
	return &ZoneIndex{logger: logger}
}

// Load replaces the working set. Zones whose polygon has fewer than 3
// vertices are skipped with a warning; the number of skipped zones is
// returned so callers can surface it in status reports.
func (zi *ZoneIndex) Load(zones []models.RestrictedZone) int {
	valid := make([]models.RestrictedZone, 0, len(zones))
	skipped := 0
	for _, z := range zones {
		if len(z.Polygon) < 3 {
			skipped++
			zi.logger.Warn().
				Err(ErrInvalidZone).
				Str("zone_id", z.ID).
				Int("vertices", len(z.Polygon)).
				Msg("Skipping zone with degenerate polygon")
			continue
		}
		valid = append(valid, z)
	}

	zi.zones = valid
	zi.skipped = skipped
	zi.logger.Info().
		Int("zones", len(valid)).
		Int("skipped", skipped).
		Msg("Zone set loaded")
	return skipped
}

// Zones returns the current working set. Callers must not mutate it.
func (zi *ZoneIndex) Zones() []models.RestrictedZone {
	return zi.zones
}

// Counts reports the number of loaded and skipped zones from the last load.
func (zi *ZoneIndex) Counts() (loaded, skipped int) {
	return len(zi.zones), zi.skipped
}

// ContainsPoint returns every zone whose polygon contains p. Overlapping
// zones all match; the result is empty, never nil semantics, when p is
// inside none.
func (zi *ZoneIndex) ContainsPoint(p models.Point) []models.RestrictedZone {
	matches := []models.RestrictedZone{}
	for _, z := range zi.zones {
		if geo.PointInPolygon(p, z.Polygon) {
			matches = append(matches, z)
		}
	}
	return matches
}

// NearestZones returns up to maxResults zones ordered by ascending distance
// from p to each zone's representative center. A withinKm value > 0 filters
// out farther zones; maxResults <= 0 means no result cap. Ties are broken by
// severity (dangerous first), then by ID for determinism.
func (zi *ZoneIndex) NearestZones(p models.Point, maxResults int, withinKm float64) []ZoneDistance {
	results := make([]ZoneDistance, 0, len(zi.zones))
	for _, z := range zi.zones {
		d := geo.Haversine(p, z.RepresentativeCenter())
		if withinKm > 0 && d > withinKm {
			continue
		}
		results = append(results, ZoneDistance{Zone: z, DistanceKm: d})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceKm != results[j].DistanceKm {
			return results[i].DistanceKm < results[j].DistanceKm
		}
		ri, rj := results[i].Zone.Type.SeverityRank(), results[j].Zone.Type.SeverityRank()
		if ri != rj {
			return ri > rj
		}
		return results[i].Zone.ID < results[j].Zone.ID
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// HighestSeverity reduces a zone list to its single highest-severity type.
// An empty list reduces to safe.
func HighestSeverity(zones []models.RestrictedZone) models.ZoneType {
	highest := models.ZoneSafe
	for _, z := range zones {
		if z.Type.SeverityRank() > highest.SeverityRank() {
			highest = z.Type
		}
	}
	return highest
}
