package location

import (
	"context"
	"time"

	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider resolves the device position through the Google
// Maps Geolocation API from nearby WiFi access points and cell towers. It is
// the fallback for devices without a GPS sensor.
type GoogleGeolocationProvider struct {
	client  *maps.Client
	timeout time.Duration
}

// NewGoogleGeolocationProvider creates a provider using the given API key.
func NewGoogleGeolocationProvider(apiKey string) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:  c,
		timeout: 10 * time.Second,
	}, nil
}

// GetFix scans the radio environment and asks the Geolocation API for a
// position estimate. Missing WiFi or cell data is tolerated; the request
// falls back to IP-based estimation.
func (g *GoogleGeolocationProvider) GetFix() (Fix, error) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	req := &maps.GeolocationRequest{ConsiderIP: true}

	if wifiAPs, err := getWiFiAccessPoints(ctx); err == nil {
		req.WiFiAccessPoints = wifiAPs
	}
	if cellTowers, err := getCellTowers(ctx, 0); err == nil {
		req.CellTowers = cellTowers
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Fix{}, err
	}

	return Fix{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		AccuracyM: resp.Accuracy,
		Timestamp: time.Now(),
	}, nil
}

// Close is a no-op; the maps client holds no persistent connection.
func (g *GoogleGeolocationProvider) Close() error {
	return nil
}
