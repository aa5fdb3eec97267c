package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/models"
	"github.com/tourguard/geofence-agent/pkg/identity"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
)

// statusAlive is the steady-state heartbeat status.
const statusAlive = "alive"

// HeartbeatService publishes the agent's liveness, engine working-set sizes
// and basic device health on a fixed interval.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	DeviceInfo identity.DeviceInfoInterface
	MqttClient mqtt.MQTTClient
	Engine     *engine.Engine
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int,
	deviceInfo identity.DeviceInfoInterface, mqttClient mqtt.MQTTClient,
	eng *engine.Engine, logger zerolog.Logger) *HeartbeatService {
	return &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		DeviceInfo: deviceInfo,
		MqttClient: mqttClient,
		Engine:     eng,
		Logger:     logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publishHeartbeat()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping")
			return
		}
	}
}

func (h *HeartbeatService) publishHeartbeat() {
	heartbeat := models.Heartbeat{
		DeviceID:  h.DeviceInfo.GetDeviceID(),
		Timestamp: time.Now(),
		Status:    statusAlive,
		Engine:    h.Engine.Status(),
	}

	if cpuPercentages, err := cpu.Percent(0, false); err == nil && len(cpuPercentages) > 0 {
		heartbeat.CPUPercent = cpuPercentages[0]
	} else if err != nil {
		h.Logger.Warn().Err(err).Msg("Failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		heartbeat.MemoryPercent = vm.UsedPercent
	} else {
		h.Logger.Warn().Err(err).Msg("Failed to read memory usage")
	}

	payload, err := json.Marshal(heartbeat)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat")
	} else {
		h.Logger.Debug().Msg("Heartbeat published")
	}
}
