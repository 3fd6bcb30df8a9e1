package identity_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/fieldvision/fieldvision/pkg/identity"
)

// TestDeviceInfo_LoadDeviceInfo tests loading a provisioned identity file.
func TestDeviceInfo_LoadDeviceInfo(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"target_id": "camera-7",
		"target_name": "Gate 7 camera",
		"site_id": "yard-3"
	}`), 0600))

	deviceInfo := identity.NewDeviceInfo(path, file.NewFileService())

	// Execute
	require.NoError(t, deviceInfo.LoadDeviceInfo())

	// Assert
	assert.Equal(t, "camera-7", deviceInfo.GetTargetID())
	assert.Equal(t, "Gate 7 camera", deviceInfo.GetIdentity().Name)
	assert.Equal(t, "yard-3", deviceInfo.GetIdentity().SiteID)
}

// TestDeviceInfo_MissingFile tests that an unprovisioned device starts with
// an empty identity instead of failing.
func TestDeviceInfo_MissingFile(t *testing.T) {
	// Setup
	deviceInfo := identity.NewDeviceInfo(filepath.Join(t.TempDir(), "absent.json"), file.NewFileService())

	// Execute
	err := deviceInfo.LoadDeviceInfo()

	// Assert
	require.NoError(t, err)
	assert.Empty(t, deviceInfo.GetTargetID())
}

// TestDeviceInfo_ReadFailure tests that unreadable identity files surface as
// errors rather than an empty identity.
func TestDeviceInfo_ReadFailure(t *testing.T) {
	// Setup
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadJsonFile", "/etc/fieldvision/device.json", mock.Anything).
		Return(errors.New("permission denied"))

	deviceInfo := identity.NewDeviceInfo("/etc/fieldvision/device.json", mockFile)

	// Execute
	err := deviceInfo.LoadDeviceInfo()

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	mockFile.AssertExpectations(t)
}
