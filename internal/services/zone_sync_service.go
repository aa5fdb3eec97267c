package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/tourguard/geofence-agent/internal/engine"
	"github.com/tourguard/geofence-agent/internal/ingest"
	"github.com/tourguard/geofence-agent/pkg/file"
	"github.com/tourguard/geofence-agent/pkg/mqtt"
	"github.com/tourguard/geofence-agent/pkg/objstore"
)

// ZoneSyncService keeps the engine's zone working set in step with the
// backend. Zone datasets arrive on a retained MQTT topic as versioned
// documents; only strictly newer versions are applied, so replayed or
// re-delivered retained messages cannot roll the set back. Large datasets
// are carried by reference: the message holds an object-storage pointer and
// the actual zone list is fetched from there. The last applied document is
// written to a local snapshot file and restored on startup, so the agent has
// zones before the first broker message arrives.
type ZoneSyncService struct {
	// Configuration fields
	subTopic     string
	qos          int
	snapshotFile string
	fetchTimeout time.Duration

	// Dependencies
	mqttClient mqtt.MQTTClient
	fileClient file.FileOperations
	fetcher    objstore.ObjectFetcher
	engine     *engine.Engine
	logger     zerolog.Logger

	// Internal state management
	mu             sync.Mutex
	currentVersion *semver.Version
	running        bool
}

// NewZoneSyncService creates a new ZoneSyncService instance. fetcher may be
// nil when object-storage distribution is not configured.
func NewZoneSyncService(subTopic string, qos int, snapshotFile string,
	mqttClient mqtt.MQTTClient, fileClient file.FileOperations,
	fetcher objstore.ObjectFetcher, eng *engine.Engine, logger zerolog.Logger) *ZoneSyncService {
	return &ZoneSyncService{
		subTopic:     subTopic,
		qos:          qos,
		snapshotFile: snapshotFile,
		fetchTimeout: 30 * time.Second,
		mqttClient:   mqttClient,
		fileClient:   fileClient,
		fetcher:      fetcher,
		engine:       eng,
		logger:       logger,
	}
}

// Start restores the local snapshot, then subscribes to the zone topic.
func (z *ZoneSyncService) Start() error {
	if z.running {
		z.logger.Warn().Msg("ZoneSyncService is already running")
		return errors.New("zone sync service is already running")
	}

	z.restoreSnapshot()

	token := z.mqttClient.Subscribe(z.subTopic, byte(z.qos), z.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		z.logger.Error().Err(err).Str("topic", z.subTopic).Msg("Failed to subscribe to zone topic")
		return err
	}

	z.running = true
	z.logger.Info().Str("topic", z.subTopic).Msg("ZoneSyncService started")
	return nil
}

// Stop unsubscribes from the zone topic.
func (z *ZoneSyncService) Stop() error {
	if !z.running {
		z.logger.Warn().Msg("ZoneSyncService is not running")
		return errors.New("zone sync service is not running")
	}

	token := z.mqttClient.Unsubscribe(z.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		z.logger.Error().Err(err).Str("topic", z.subTopic).Msg("Failed to unsubscribe from zone topic")
		return err
	}

	z.running = false
	z.logger.Info().Msg("ZoneSyncService stopped")
	return nil
}

// restoreSnapshot loads the last applied zone document from disk, if any.
// Snapshot failures are logged and ignored: the retained broker message will
// repopulate the set shortly after connect.
func (z *ZoneSyncService) restoreSnapshot() {
	if z.snapshotFile == "" {
		return
	}

	exists, err := z.fileClient.IsFileExists(z.snapshotFile)
	if err != nil || !exists {
		return
	}

	payload, err := z.fileClient.ReadFileRaw(z.snapshotFile)
	if err != nil {
		z.logger.Warn().Err(err).Str("file", z.snapshotFile).Msg("Failed to read zone snapshot")
		return
	}

	if err := z.applyPayload(payload, false); err != nil {
		z.logger.Warn().Err(err).Str("file", z.snapshotFile).Msg("Failed to apply zone snapshot")
		return
	}
	z.logger.Info().Str("file", z.snapshotFile).Msg("Zone snapshot restored")
}

func (z *ZoneSyncService) handleMessage(_ MQTT.Client, msg MQTT.Message) {
	if err := z.applyPayload(msg.Payload(), true); err != nil {
		z.logger.Error().Err(err).Str("topic", msg.Topic()).Msg("Failed to apply zone dataset")
	}
}

// applyPayload parses, version-gates and loads a zone document. When
// snapshot is true the raw payload is persisted after a successful load.
func (z *ZoneSyncService) applyPayload(payload []byte, snapshot bool) error {
	set, err := ingest.ParseZonePayload(payload)
	if err != nil {
		return err
	}

	version, err := semver.NewVersion(set.Version)
	if err != nil {
		return errors.New("zone dataset has no parseable version")
	}

	z.mu.Lock()
	defer z.mu.Unlock()

	if z.currentVersion != nil && !version.GreaterThan(z.currentVersion) {
		z.logger.Debug().
			Str("version", version.String()).
			Str("current", z.currentVersion.String()).
			Msg("Skipping zone dataset that is not newer")
		return nil
	}

	if set.ObjectKey != "" {
		resolved, err := z.resolveObjectPointer(set)
		if err != nil {
			return err
		}
		set.Zones = resolved.Zones
		set.Dropped += resolved.Dropped
	}

	if set.Dropped > 0 {
		z.logger.Warn().Int("dropped", set.Dropped).Msg("Dropped malformed zone entries")
	}

	skipped := z.engine.LoadZones(set.Zones)
	z.currentVersion = version
	z.logger.Info().
		Str("version", version.String()).
		Int("zones", len(set.Zones)).
		Int("skipped", skipped).
		Msg("Zone dataset applied")

	if snapshot && z.snapshotFile != "" {
		if err := z.fileClient.WriteFileRaw(z.snapshotFile, payload); err != nil {
			z.logger.Warn().Err(err).Str("file", z.snapshotFile).Msg("Failed to write zone snapshot")
		}
	}
	return nil
}

// resolveObjectPointer fetches and parses the zone list the document refers
// to in object storage.
func (z *ZoneSyncService) resolveObjectPointer(set ingest.ZoneSet) (ingest.ZoneSet, error) {
	if z.fetcher == nil {
		return ingest.ZoneSet{}, errors.New("zone dataset is object-backed but object storage is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), z.fetchTimeout)
	defer cancel()

	data, err := z.fetcher.Fetch(ctx, set.ObjectBucket, set.ObjectKey)
	if err != nil {
		return ingest.ZoneSet{}, err
	}
	return ingest.ParseZonePayload(data)
}
