package utils

import (
	"github.com/tourguard/geofence-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate; empty for plaintext
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Engine struct {
		RadiusKm         float64        `yaml:"radius_km"`          // Proximity alert distance threshold
		Cooldown         int            `yaml:"cooldown"`           // Minimum re-alert interval per target (in seconds)
		DebounceSamples  int            `yaml:"debounce_samples"`   // Consecutive outside samples before a geofence exit
		MergeThresholdKm float64        `yaml:"merge_threshold_km"` // POI clustering radius
		SeverityBands    []SeverityBand `yaml:"severity_bands"`     // Distance-to-severity table; defaults applied when empty
		ZoneIntensity    ZoneIntensity  `yaml:"zone_intensity"`     // Heat weight per zone type
	} `yaml:"engine"`

	Services struct {
		Location struct {
			Enabled        bool   `yaml:"enabled"`
			Interval       int    `yaml:"interval"`        // Poll interval for the location provider (in seconds)
			QOS            int    `yaml:"qos"`             // MQTT QoS for telemetry
			TelemetryTopic string `yaml:"telemetry_topic"` // Republish fixes here; empty disables
			Provider       string `yaml:"provider"`        // serial | google | mqtt
			FixTopic       string `yaml:"fix_topic"`       // Companion-app fix topic (provider: mqtt)
			GPSDevicePort  string `yaml:"gps_device_port"` // Serial port (provider: serial)
			GPSBaudRate    int    `yaml:"gps_baud_rate"`   // Baud rate (provider: serial)
		} `yaml:"location"`

		AlertFeed struct {
			Enabled         bool   `yaml:"enabled"`
			Topic           string `yaml:"topic"` // POI set topic, whole-set replacement per message
			QOS             int    `yaml:"qos"`
			RecheckInterval int    `yaml:"recheck_interval"` // Periodic re-evaluation (in seconds); 0 disables
		} `yaml:"alert_feed"`

		ZoneSync struct {
			Enabled      bool   `yaml:"enabled"`
			Topic        string `yaml:"topic"` // Retained zone dataset topic
			QOS          int    `yaml:"qos"`
			SnapshotFile string `yaml:"snapshot_file"` // Local copy for cold starts

			ObjectStorage struct {
				Enabled  bool   `yaml:"enabled"`
				Endpoint string `yaml:"endpoint"`
				UseSSL   bool   `yaml:"use_ssl"`
			} `yaml:"object_storage"`
		} `yaml:"zone_sync"`

		Heartbeat struct {
			Enabled  bool   `yaml:"enabled"`
			Topic    string `yaml:"topic"`
			Interval int    `yaml:"interval"` // Interval between heartbeats (in seconds)
			QOS      int    `yaml:"qos"`
		} `yaml:"heartbeat"`
	} `yaml:"services"`
}

// SeverityBand is one row of the distance-to-severity table.
type SeverityBand struct {
	MaxKm    float64 `yaml:"max_km"`
	Severity string  `yaml:"severity"`
}

// ZoneIntensity maps zone types to heat weights in [0,1].
type ZoneIntensity struct {
	Dangerous  float64 `yaml:"dangerous"`
	HighRisk   float64 `yaml:"high_risk"`
	Restricted float64 `yaml:"restricted"`
	Caution    float64 `yaml:"caution"`
	Safe       float64 `yaml:"safe"`
}

// LoadConfig loads the YAML configuration from the specified file and fills
// in defaults for unset engine knobs.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults fills in unset knobs. Interval knobs are second counts,
// converted to time.Duration at the construction sites; yaml.v3 cannot
// decode a bare integer into time.Duration.
func applyDefaults(config *Config) {
	if config.Engine.RadiusKm == 0 {
		config.Engine.RadiusKm = 5.0
	}
	if config.Engine.Cooldown == 0 {
		config.Engine.Cooldown = 300
	}
	if config.Engine.DebounceSamples == 0 {
		config.Engine.DebounceSamples = 1
	}
	if config.Engine.MergeThresholdKm == 0 {
		config.Engine.MergeThresholdKm = 0.5
	}
	if config.Engine.ZoneIntensity == (ZoneIntensity{}) {
		config.Engine.ZoneIntensity = ZoneIntensity{
			Dangerous:  1.0,
			HighRisk:   0.8,
			Restricted: 0.6,
			Caution:    0.4,
			Safe:       0.2,
		}
	}
	if config.Services.Location.Interval == 0 {
		config.Services.Location.Interval = 15
	}
	if config.Services.AlertFeed.RecheckInterval == 0 {
		config.Services.AlertFeed.RecheckInterval = 30
	}
	if config.Services.Heartbeat.Interval == 0 {
		config.Services.Heartbeat.Interval = 60
	}
}
