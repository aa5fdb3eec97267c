package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/models"
	"github.com/tourguard/geofence-agent/pkg/identity"
	"github.com/tourguard/geofence-agent/pkg/location"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
)

// LocationService polls the location provider on an interval, feeds each fix
// into the engine, and optionally republishes it as telemetry.
type LocationService struct {
	// Configuration fields
	telemetryTopic string
	interval       time.Duration
	qos            int

	// Dependencies
	deviceInfo identity.DeviceInfoInterface
	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger
	provider   location.Provider
	engine     *engine.Engine

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocationService creates a new LocationService instance.
func NewLocationService(telemetryTopic string, interval time.Duration, qos int,
	deviceInfo identity.DeviceInfoInterface, mqttClient mqtt.MQTTClient,
	provider location.Provider, eng *engine.Engine, logger zerolog.Logger) *LocationService {
	return &LocationService{
		telemetryTopic: telemetryTopic,
		interval:       interval,
		qos:            qos,
		deviceInfo:     deviceInfo,
		mqttClient:     mqttClient,
		logger:         logger,
		provider:       provider,
		engine:         eng,
	}
}

// Start launches the fix polling loop.
func (l *LocationService) Start() error {
	if l.ctx != nil {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.runFixLoop()
	}()

	l.logger.Info().
		Dur("interval", l.interval).
		Msg("LocationService started")
	return nil
}

// Stop gracefully stops the polling loop and closes the provider.
func (l *LocationService) Stop() error {
	if l.ctx == nil {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	l.cancel()
	l.wg.Wait()

	l.ctx = nil
	l.cancel = nil

	if err := l.provider.Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to close location provider")
		return err
	}

	l.logger.Info().Msg("LocationService stopped")
	return nil
}

func (l *LocationService) runFixLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.ingestCurrentFix(); err != nil {
				l.logger.Error().Err(err).Msg("Failed to acquire location fix")
			}
		case <-l.ctx.Done():
			l.logger.Info().Msg("LocationService stopping")
			return
		}
	}
}

// ingestCurrentFix fetches one fix from the provider, pushes it through the
// engine and publishes telemetry when configured.
func (l *LocationService) ingestCurrentFix() error {
	fix, err := l.provider.GetFix()
	if err != nil {
		return err
	}

	modelFix := models.LocationFix{
		DeviceID:  l.deviceInfo.GetDeviceID(),
		Timestamp: fix.Timestamp,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		AccuracyM: fix.AccuracyM,
	}

	l.engine.IngestLocation(modelFix)

	if l.telemetryTopic == "" {
		return nil
	}

	payload, err := json.Marshal(modelFix)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to serialize location fix")
		return err
	}

	token := l.mqttClient.Publish(l.telemetryTopic, byte(l.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		l.logger.Error().Err(err).Str("topic", l.telemetryTopic).Msg("Failed to publish location telemetry")
		return err
	}

	l.logger.Debug().
		Float64("latitude", fix.Latitude).
		Float64("longitude", fix.Longitude).
		Msg("Location fix ingested")
	return nil
}
