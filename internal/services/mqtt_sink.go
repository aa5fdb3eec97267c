package services

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/models"
	"github.com/tourguard/geofence-agent/internal/utils"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
)

// MQTTEventSink publishes engine output events to MQTT topics. Publishes run
// on a worker pool so broker latency never stalls an evaluation round.
type MQTTEventSink struct {
	alertTopic string
	fenceTopic string
	qos        int
	deviceID   string

	mqttClient mqtt.MQTTClient
	logger     zerolog.Logger
	workerPool *utils.WorkerPool
}

// NewMQTTEventSink creates a sink publishing proximity alerts and geofence
// events to the given topics.
func NewMQTTEventSink(alertTopic, fenceTopic string, qos int, deviceID string,
	mqttClient mqtt.MQTTClient, logger zerolog.Logger) *MQTTEventSink {
	return &MQTTEventSink{
		alertTopic: alertTopic,
		fenceTopic: fenceTopic,
		qos:        qos,
		deviceID:   deviceID,
		mqttClient: mqttClient,
		logger:     logger,
		workerPool: utils.NewWorkerPool(4, 64),
	}
}

// ProximityAlert publishes a proximity alert event.
func (s *MQTTEventSink) ProximityAlert(event models.ProximityAlertEvent) {
	event.DeviceID = s.deviceID
	s.publish(s.alertTopic, event)
}

// GeofenceEvent publishes a geofence enter/exit event.
func (s *MQTTEventSink) GeofenceEvent(event models.GeofenceEvent) {
	event.DeviceID = s.deviceID
	s.publish(s.fenceTopic, event)
}

// Close drains pending publishes.
func (s *MQTTEventSink) Close() {
	s.workerPool.Shutdown()
}

func (s *MQTTEventSink) publish(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to serialize event")
		return
	}

	// The engine delivers events while holding its lock, so a full queue
	// drops the event instead of blocking the evaluation.
	accepted := s.workerPool.TrySubmit(func() {
		token := s.mqttClient.Publish(topic, byte(s.qos), false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish event")
			return
		}
		s.logger.Debug().Str("topic", topic).Msg("Event published")
	})
	if !accepted {
		s.logger.Warn().Str("topic", topic).Msg("Publish queue full, dropping event")
	}
}
