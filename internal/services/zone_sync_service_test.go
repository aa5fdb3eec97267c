package services

import (
	"fmt"
	"testing"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tourguard/geofence-agent/internal/engine"
)

func zonePayload(version string, zoneIDs ...string) []byte {
	zones := ""
	for i, id := range zoneIDs {
		if i > 0 {
			zones += ","
		}
		zones += fmt.Sprintf(`{
			"id": %q,
			"type": "dangerous",
			"polygon": [
				{"lat": 28.60, "lon": 77.20},
				{"lat": 28.60, "lon": 77.22},
				{"lat": 28.64, "lon": 77.22}
			]
		}`, id)
	}
	return []byte(fmt.Sprintf(`{"version": %q, "zones": [%s]}`, version, zones))
}

// startZoneSync starts the service against a mock broker and returns the
// captured message handler.
func startZoneSync(t *testing.T, eng *engine.Engine, mockMQTTClient *MockMQTTClient,
	fileClient *MockFileOperations, snapshotFile string) (*ZoneSyncService, MQTT.MessageHandler) {
	t.Helper()

	var handler MQTT.MessageHandler
	mockMQTTClient.On("Subscribe", "test-zones", byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			handler = args.Get(2).(MQTT.MessageHandler)
		}).
		Return(successToken())
	mockMQTTClient.On("Unsubscribe", []string{"test-zones"}).Return(successToken())

	z := NewZoneSyncService("test-zones", 1, snapshotFile,
		mockMQTTClient, fileClient, nil, eng, zerolog.Nop())

	assert.NoError(t, z.Start())
	assert.NotNil(t, handler)
	return z, handler
}

// TestZoneSyncService_AppliesNewerVersions tests the semver gate: only
// strictly newer datasets replace the working set.
func TestZoneSyncService_AppliesNewerVersions(t *testing.T) {
	eng := newTestEngine(t)
	z, handler := startZoneSync(t, eng, new(MockMQTTClient), new(MockFileOperations), "")

	handler(nil, NewMockMessage("test-zones", zonePayload("1.0.0", "zone-a")))
	assert.Equal(t, 1, eng.Status().ZoneCount)

	// Same version redelivered with more zones: must be ignored.
	handler(nil, NewMockMessage("test-zones", zonePayload("1.0.0", "zone-a", "zone-b")))
	assert.Equal(t, 1, eng.Status().ZoneCount)

	// Older version: must be ignored.
	handler(nil, NewMockMessage("test-zones", zonePayload("0.9.0", "zone-a", "zone-b")))
	assert.Equal(t, 1, eng.Status().ZoneCount)

	// Strictly newer version: applied.
	handler(nil, NewMockMessage("test-zones", zonePayload("1.1.0", "zone-a", "zone-b")))
	assert.Equal(t, 2, eng.Status().ZoneCount)

	assert.NoError(t, z.Stop())
}

// TestZoneSyncService_RejectsUnversionedDatasets tests that documents
// without a parseable version never reach the engine.
func TestZoneSyncService_RejectsUnversionedDatasets(t *testing.T) {
	eng := newTestEngine(t)
	z, handler := startZoneSync(t, eng, new(MockMQTTClient), new(MockFileOperations), "")

	handler(nil, NewMockMessage("test-zones", zonePayload("not-a-version", "zone-a")))
	assert.Equal(t, 0, eng.Status().ZoneCount)

	assert.NoError(t, z.Stop())
}

// TestZoneSyncService_ObjectPointerWithoutFetcher tests that an
// object-backed dataset fails cleanly when storage is not configured.
func TestZoneSyncService_ObjectPointerWithoutFetcher(t *testing.T) {
	eng := newTestEngine(t)
	z, handler := startZoneSync(t, eng, new(MockMQTTClient), new(MockFileOperations), "")

	handler(nil, NewMockMessage("test-zones",
		[]byte(`{"version": "1.0.0", "object": {"bucket": "zones", "key": "delhi.json"}}`)))
	assert.Equal(t, 0, eng.Status().ZoneCount)

	assert.NoError(t, z.Stop())
}

// TestZoneSyncService_PersistsSnapshot tests that applied broker datasets
// are written to the snapshot file.
func TestZoneSyncService_PersistsSnapshot(t *testing.T) {
	fileClient := new(MockFileOperations)
	fileClient.On("IsFileExists", "/var/lib/agent/zones.json").Return(false, nil)

	payload := zonePayload("1.0.0", "zone-a")
	fileClient.On("WriteFileRaw", "/var/lib/agent/zones.json", payload).Return(nil)

	eng := newTestEngine(t)
	z, handler := startZoneSync(t, eng, new(MockMQTTClient), fileClient, "/var/lib/agent/zones.json")

	handler(nil, NewMockMessage("test-zones", payload))
	assert.Equal(t, 1, eng.Status().ZoneCount)

	fileClient.AssertCalled(t, "WriteFileRaw", "/var/lib/agent/zones.json", payload)
	assert.NoError(t, z.Stop())
}

// TestZoneSyncService_RestoresSnapshotOnStart tests that the snapshot is
// loaded before the first broker message arrives.
func TestZoneSyncService_RestoresSnapshotOnStart(t *testing.T) {
	fileClient := new(MockFileOperations)
	fileClient.On("IsFileExists", "/var/lib/agent/zones.json").Return(true, nil)
	fileClient.On("ReadFileRaw", "/var/lib/agent/zones.json").Return(zonePayload("1.0.0", "zone-a"), nil)

	eng := newTestEngine(t)
	z, handler := startZoneSync(t, eng, new(MockMQTTClient), fileClient, "/var/lib/agent/zones.json")

	assert.Equal(t, 1, eng.Status().ZoneCount)

	// The restored version participates in the gate: replaying the same
	// version from the broker is a no-op.
	fileClient.On("WriteFileRaw", mock.Anything, mock.Anything).Return(nil)
	handler(nil, NewMockMessage("test-zones", zonePayload("1.0.0", "zone-a", "zone-b")))
	assert.Equal(t, 1, eng.Status().ZoneCount)

	assert.NoError(t, z.Stop())
}

// TestZoneSyncService_StartStopGuards tests double start/stop handling.
func TestZoneSyncService_StartStopGuards(t *testing.T) {
	z, _ := startZoneSync(t, newTestEngine(t), new(MockMQTTClient), new(MockFileOperations), "")

	err := z.Start()
	assert.Error(t, err)
	assert.Equal(t, "zone sync service is already running", err.Error())

	assert.NoError(t, z.Stop())

	err = z.Stop()
	assert.Error(t, err)
	assert.Equal(t, "zone sync service is not running", err.Error())
}
