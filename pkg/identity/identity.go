package identity

import (
	"encoding/json"
	"os"

	"github.com/fieldvision/fieldvision/pkg/file"
)

// Identity holds the monitored target's unique identifier and other metadata.
type Identity struct {
	TargetID string          `json:"target_id,omitempty"`
	Name     string          `json:"target_name,omitempty"`
	SiteID   string          `json:"site_id,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// DeviceInfoInterface defines methods for managing the target identity.
type DeviceInfoInterface interface {
	LoadDeviceInfo() error
	GetTargetID() string
	GetIdentity() *Identity
}

// DeviceInfo manages the target identity and its associated file operations.
type DeviceInfo struct {
	DeviceInfoFile string
	Identity       Identity
	fileOps        file.FileOperations
}

// NewDeviceInfo initializes a new DeviceInfo instance.
func NewDeviceInfo(filePath string, fileOps file.FileOperations) DeviceInfoInterface {
	return &DeviceInfo{
		DeviceInfoFile: filePath,
		fileOps:        fileOps,
		Identity:       Identity{},
	}
}

// LoadDeviceInfo reads the identity file and populates the Identity field.
func (d *DeviceInfo) LoadDeviceInfo() error {
	err := d.fileOps.ReadJsonFile(d.DeviceInfoFile, &d.Identity)
	if err != nil {
		if os.IsNotExist(err) {
			// File does not exist, initialize with default empty values
			d.Identity = Identity{}
			return nil
		}
		return err
	}

	return nil
}

// GetIdentity returns the current target Identity.
func (d *DeviceInfo) GetIdentity() *Identity {
	return &d.Identity
}

// GetTargetID returns the current target ID.
func (d *DeviceInfo) GetTargetID() string {
	return d.Identity.TargetID
}
