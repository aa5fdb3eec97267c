package identity

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/tourguard/geofence-agent/pkg/file"
)

// Identity holds the device's unique identifier and owner metadata. For a
// tourist-safety deployment the device maps one-to-one to the tracked
// subject.
type Identity struct {
	ID       string          `json:"device_id,omitempty"`
	Name     string          `json:"device_name,omitempty"`
	OrgID    string          `json:"org_id,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DeviceInfoInterface defines methods for managing device identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetDeviceID() string
	GetDeviceIdentity() *Identity
}

// DeviceInfo manages the device identity and its backing file.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) *DeviceInfo {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
	}
}

// LoadDeviceInfo reads the identity file. A missing file is not an error:
// a fresh identity with a generated ID is created and persisted, so a
// factory-blank device can come up registered under a stable ID.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil {
		if os.IsNotExist(err) {
			d.Identity = Identity{ID: uuid.New().String()}
			return d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity)
		}
		return err
	}

	if d.Identity.ID == "" {
		d.Identity.ID = uuid.New().String()
		return d.fileOps.WriteJsonFile(d.DeviceInfoFile, d.Identity)
	}
	return nil
}

// GetDeviceIdentity returns the current device Identity.
func (d *DeviceInfo) GetDeviceIdentity() *Identity {
	return &d.Identity
}

// GetDeviceID returns the current device ID.
func (d *DeviceInfo) GetDeviceID() string {
	return d.Identity.ID
}
