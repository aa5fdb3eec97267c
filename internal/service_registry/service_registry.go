package service_registry

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/services"
	"github.com/tourguard/geofence-agent/internal/utils"
	"github.com/tourguard/geofence-agent/pkg/file"
	"github.com/tourguard/geofence-agent/pkg/identity"
	"github.com/tourguard/geofence-agent/pkg/location"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
	"github.com/tourguard/geofence-agent/pkg/objstore"
)

// Service is the interface for all plug-in services.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of the agent's services.
type ServiceRegistry struct {
	services    map[string]Service
	serviceKeys []string // registration order
	mqttClient  mqtt.MQTTClient
	fileClient  file.FileOperations
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, fileClient file.FileOperations, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		fileClient: fileClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order. If a service
// fails to start, already started services are stopped in reverse order.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on
// configuration. Zone sync comes first so the engine has a zone set before
// the first fix arrives.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deviceInfo identity.DeviceInfoInterface, eng *engine.Engine) error {
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "zone_sync",
			enabled: config.Services.ZoneSync.Enabled,
			constructor: func() (Service, error) {
				var fetcher objstore.ObjectFetcher
				if config.Services.ZoneSync.ObjectStorage.Enabled {
					store, err := objstore.Connect(
						config.Services.ZoneSync.ObjectStorage.Endpoint,
						os.Getenv("OBJECT_STORAGE_ACCESS_KEY"),
						os.Getenv("OBJECT_STORAGE_SECRET_KEY"),
						config.Services.ZoneSync.ObjectStorage.UseSSL,
					)
					if err != nil {
						sr.Logger.Error().Err(err).Msg("Failed to connect to object storage")
						return nil, err
					}
					fetcher = store
				}
				return services.NewZoneSyncService(
					config.Services.ZoneSync.Topic,
					config.Services.ZoneSync.QOS,
					config.Services.ZoneSync.SnapshotFile,
					sr.mqttClient,
					sr.fileClient,
					fetcher,
					eng,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "alert_feed",
			enabled: config.Services.AlertFeed.Enabled,
			constructor: func() (Service, error) {
				return services.NewAlertFeedService(
					config.Services.AlertFeed.Topic,
					config.Services.AlertFeed.QOS,
					time.Duration(config.Services.AlertFeed.RecheckInterval)*time.Second,
					sr.mqttClient,
					eng,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "location",
			enabled: config.Services.Location.Enabled,
			constructor: func() (Service, error) {
				provider, err := sr.buildLocationProvider(config)
				if err != nil {
					sr.Logger.Error().Err(err).Msg("Failed to create location provider")
					return nil, err
				}
				return services.NewLocationService(
					config.Services.Location.TelemetryTopic,
					time.Duration(config.Services.Location.Interval)*time.Second,
					config.Services.Location.QOS,
					deviceInfo,
					sr.mqttClient,
					provider,
					eng,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					time.Duration(config.Services.Heartbeat.Interval)*time.Second,
					config.Services.Heartbeat.QOS,
					deviceInfo,
					sr.mqttClient,
					eng,
					sr.Logger,
				), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

// buildLocationProvider picks the configured fix source.
func (sr *ServiceRegistry) buildLocationProvider(config *utils.Config) (location.Provider, error) {
	switch config.Services.Location.Provider {
	case "serial":
		return location.NewDeviceSensorProvider(
			config.Services.Location.GPSDevicePort,
			config.Services.Location.GPSBaudRate,
		), nil
	case "google":
		return location.NewGoogleGeolocationProvider(os.Getenv("MAPS_API_KEY"))
	case "mqtt":
		return location.NewMQTTFixProvider(
			sr.mqttClient,
			config.Services.Location.FixTopic,
			byte(config.Services.Location.QOS),
		)
	default:
		return nil, fmt.Errorf("unknown location provider %q", config.Services.Location.Provider)
	}
}
