package engine

import "errors"

var (
	// ErrInvalidZone marks a zone whose polygon has fewer than 3 vertices.
	// Such zones are skipped during load, never fatal to the batch.
	ErrInvalidZone = errors.New("zone polygon has fewer than 3 points")

	// ErrMalformedPOI marks a POI with missing or out-of-range coordinates.
	// Such entries are dropped during ingestion, never fatal to the batch.
	ErrMalformedPOI = errors.New("poi has invalid coordinates")

	// ErrConfiguration rejects an entire Configure call, leaving the prior
	// configuration intact.
	ErrConfiguration = errors.New("invalid engine configuration")
)
