package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/models"
	"github.com/tourguard/geofence-agent/internal/service_registry"
	"github.com/tourguard/geofence-agent/internal/services"
	"github.com/tourguard/geofence-agent/internal/utils"
	"github.com/tourguard/geofence-agent/pkg/file"
	"github.com/tourguard/geofence-agent/pkg/identity"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
)

const (
	proximityAlertTopic = "tourguard/events/proximity"
	geofenceEventTopic  = "tourguard/events/geofence"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Secrets (maps API key, object storage credentials) come from the
	// environment; a local .env is a convenience, not a requirement.
	_ = godotenv.Load()

	configPath := os.Getenv("AGENT_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	// Unique client ID per process so reconnecting agents never fight over
	// a broker session.
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load device information")
	}

	sink := services.NewMQTTEventSink(
		proximityAlertTopic,
		geofenceEventTopic,
		1,
		deviceInfo.GetDeviceID(),
		mqttClient,
		logger,
	)

	eng, err := engine.NewEngine(engineConfig(config), config.Engine.DebounceSamples, sink, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure engine")
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, fileClient, logger)
	if err := serviceRegistry.RegisterServices(config, deviceInfo, eng); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop all services")
	}
	sink.Close()
	mqttClient.Disconnect(250)
}

// engineConfig maps the YAML engine section onto the tracker configuration.
func engineConfig(config *utils.Config) engine.ProximityConfig {
	bands := make([]engine.SeverityBand, 0, len(config.Engine.SeverityBands))
	for _, b := range config.Engine.SeverityBands {
		bands = append(bands, engine.SeverityBand{
			MaxKm:    b.MaxKm,
			Severity: models.AlertSeverity(b.Severity),
		})
	}

	return engine.ProximityConfig{
		RadiusKm:         config.Engine.RadiusKm,
		Cooldown:         time.Duration(config.Engine.Cooldown) * time.Second,
		MergeThresholdKm: config.Engine.MergeThresholdKm,
		Bands:            bands,
		ZoneIntensity: map[models.ZoneType]float64{
			models.ZoneDangerous:  config.Engine.ZoneIntensity.Dangerous,
			models.ZoneHighRisk:   config.Engine.ZoneIntensity.HighRisk,
			models.ZoneRestricted: config.Engine.ZoneIntensity.Restricted,
			models.ZoneCaution:    config.Engine.ZoneIntensity.Caution,
			models.ZoneSafe:       config.Engine.ZoneIntensity.Safe,
		},
	}
}
