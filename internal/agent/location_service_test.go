package agent_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/location"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestLocationService_PublishesFix tests that the ticker loop reads the
// provider and publishes a per-device fix.
func TestLocationService_PublishesFix(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockProvider := new(mocks.MockLocationProvider)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")
	mockProvider.On("GetLocation", mock.Anything).
		Return(location.Location{Latitude: 48.8584, Longitude: 2.2945, Accuracy: 12.5}, nil)

	published := make(chan []byte, 8)
	mockMQTT.On("Publish", "fieldvision/presence/location/camera-7", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(mocks.NewSucceededToken())

	service := agent.NewLocationService(
		"fieldvision/presence/location", 30*time.Millisecond, 1,
		mockDeviceInfo, mockMQTT, mockProvider, zerolog.Nop(),
	)

	// Execute
	require.NoError(t, service.Start())
	defer service.Stop()

	// Assert
	var payload []byte
	select {
	case payload = <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("no location fix published")
	}

	var fix models.LocationFix
	require.NoError(t, json.Unmarshal(payload, &fix))
	assert.Equal(t, "camera-7", fix.TargetID)
	assert.Equal(t, 48.8584, fix.Latitude)
	assert.Equal(t, 2.2945, fix.Longitude)
	assert.Equal(t, 12.5, fix.Accuracy)
	assert.False(t, fix.Timestamp.IsZero())
}

// TestLocationService_ProviderFailureSkipsPublish tests that a failed
// position read drops the round without touching the broker.
func TestLocationService_ProviderFailureSkipsPublish(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockProvider := new(mocks.MockLocationProvider)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")

	polled := make(chan struct{}, 8)
	mockProvider.On("GetLocation", mock.Anything).
		Run(func(args mock.Arguments) { polled <- struct{}{} }).
		Return(location.Location{}, errors.New("no satellite lock"))

	service := agent.NewLocationService(
		"fieldvision/presence/location", 30*time.Millisecond, 1,
		mockDeviceInfo, mockMQTT, mockProvider, zerolog.Nop(),
	)

	// Execute
	require.NoError(t, service.Start())
	defer service.Stop()

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("provider was never polled")
	}

	// Assert
	mockMQTT.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestLocationService_StartStop tests the lifecycle guards.
func TestLocationService_StartStop(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockProvider := new(mocks.MockLocationProvider)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")
	mockProvider.On("GetLocation", mock.Anything).Return(location.Location{}, nil)
	mockMQTT.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewSucceededToken())

	service := agent.NewLocationService(
		"", time.Hour, 1,
		mockDeviceInfo, mockMQTT, mockProvider, zerolog.Nop(),
	)

	// Execute and assert
	require.NoError(t, service.Start())

	err := service.Start()
	require.Error(t, err)
	assert.Equal(t, "location service is already running", err.Error())

	require.NoError(t, service.Stop())

	err = service.Stop()
	require.Error(t, err)
	assert.Equal(t, "location service is not running", err.Error())
}
