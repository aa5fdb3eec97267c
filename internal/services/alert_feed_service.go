package services

import (
	"context"
	"errors"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/ingest"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
)

// AlertFeedService subscribes to the backend's active-alert topic. Every
// message carries the full active POI set; ingestion is whole-set
// replacement, never incremental. A recheck ticker re-evaluates the last
// known position between messages so cooldown expiry is not missed.
type AlertFeedService struct {
	// Configuration fields
	subTopic        string
	qos             int
	recheckInterval time.Duration

	// Dependencies
	mqttClient mqtt.MQTTClient
	engine     *engine.Engine
	logger     zerolog.Logger

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAlertFeedService creates a new AlertFeedService instance.
func NewAlertFeedService(subTopic string, qos int, recheckInterval time.Duration,
	mqttClient mqtt.MQTTClient, eng *engine.Engine, logger zerolog.Logger) *AlertFeedService {
	return &AlertFeedService{
		subTopic:        subTopic,
		qos:             qos,
		recheckInterval: recheckInterval,
		mqttClient:      mqttClient,
		engine:          eng,
		logger:          logger,
	}
}

// Start subscribes to the alert topic and launches the recheck ticker.
func (a *AlertFeedService) Start() error {
	if a.ctx != nil {
		a.logger.Warn().Msg("AlertFeedService is already running")
		return errors.New("alert feed service is already running")
	}

	token := a.mqttClient.Subscribe(a.subTopic, byte(a.qos), a.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		a.logger.Error().Err(err).Str("topic", a.subTopic).Msg("Failed to subscribe to alert topic")
		return err
	}

	a.ctx, a.cancel = context.WithCancel(context.Background())

	if a.recheckInterval > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.runRecheckLoop()
		}()
	}

	a.logger.Info().Str("topic", a.subTopic).Msg("AlertFeedService started")
	return nil
}

// Stop unsubscribes and stops the recheck ticker.
func (a *AlertFeedService) Stop() error {
	if a.ctx == nil {
		a.logger.Warn().Msg("AlertFeedService is not running")
		return errors.New("alert feed service is not running")
	}

	a.cancel()
	a.wg.Wait()

	a.ctx = nil
	a.cancel = nil

	token := a.mqttClient.Unsubscribe(a.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		a.logger.Error().Err(err).Str("topic", a.subTopic).Msg("Failed to unsubscribe from alert topic")
		return err
	}

	a.logger.Info().Msg("AlertFeedService stopped")
	return nil
}

// handleMessage parses one POI feed message and replaces the engine's POI
// working set. Malformed entries are dropped upstream in the parser and only
// counted here.
func (a *AlertFeedService) handleMessage(_ MQTT.Client, msg MQTT.Message) {
	pois, dropped, err := ingest.ParsePOIPayload(msg.Payload())
	if err != nil {
		a.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to parse POI payload")
		return
	}
	if dropped > 0 {
		a.logger.Warn().Int("dropped", dropped).Msg("Dropped malformed POI entries")
	}

	a.engine.IngestPOIs(pois)
	a.logger.Info().Int("pois", len(pois)).Msg("POI set replaced")
}

func (a *AlertFeedService) runRecheckLoop() {
	ticker := time.NewTicker(a.recheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.engine.Recheck()
		case <-a.ctx.Done():
			a.logger.Info().Msg("AlertFeedService recheck loop stopping")
			return
		}
	}
}
