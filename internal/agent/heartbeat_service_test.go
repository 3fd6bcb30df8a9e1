package agent_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/health"
	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestHeartbeatService_PublishesImmediately tests that starting the service
// publishes one beacon right away with the identity, version, vitals and
// bearer token.
func TestHeartbeatService_PublishesImmediately(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockTokenManager := new(mocks.MockTokenManager)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")
	mockTokenManager.On("GetToken").Return("test-token")

	published := make(chan []byte, 4)
	mockMQTT.On("Publish", "fieldvision/presence/heartbeat/camera-7", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(mocks.NewSucceededToken())

	service := agent.NewHeartbeatService(
		"fieldvision/presence/heartbeat", time.Hour, 1,
		mockDeviceInfo, mockMQTT, mockTokenManager, health.NewCollector(zerolog.Nop()), zerolog.Nop(),
	)

	// Execute
	require.NoError(t, service.Start())
	defer service.Stop()

	// Assert
	var payload []byte
	select {
	case payload = <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat published")
	}

	var hb models.Heartbeat
	require.NoError(t, json.Unmarshal(payload, &hb))
	assert.Equal(t, "camera-7", hb.TargetID)
	assert.Equal(t, models.PresenceOnline, hb.Status)
	assert.Equal(t, constants.AgentVersion, hb.AgentVersion)
	assert.Equal(t, "test-token", hb.Token)
	assert.False(t, hb.Timestamp.IsZero())
}

// TestHeartbeatService_PublishesOnInterval tests the periodic beacon.
func TestHeartbeatService_PublishesOnInterval(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockTokenManager := new(mocks.MockTokenManager)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")
	mockTokenManager.On("GetToken").Return("test-token")

	published := make(chan []byte, 8)
	mockMQTT.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(3).([]byte) }).
		Return(mocks.NewSucceededToken())

	service := agent.NewHeartbeatService(
		"fieldvision/presence/heartbeat", 30*time.Millisecond, 1,
		mockDeviceInfo, mockMQTT, mockTokenManager, health.NewCollector(zerolog.Nop()), zerolog.Nop(),
	)

	// Execute
	require.NoError(t, service.Start())
	defer service.Stop()

	// Assert: the immediate beacon plus at least one tick.
	for i := 0; i < 2; i++ {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatalf("heartbeat %d never arrived", i+1)
		}
	}
}

// TestHeartbeatService_StartStop tests the lifecycle guards.
func TestHeartbeatService_StartStop(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockDeviceInfo := new(mocks.MockDeviceInfo)
	mockTokenManager := new(mocks.MockTokenManager)

	mockDeviceInfo.On("GetTargetID").Return("camera-7")
	mockTokenManager.On("GetToken").Return("")
	mockMQTT.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewSucceededToken())

	service := agent.NewHeartbeatService(
		"", time.Hour, 1,
		mockDeviceInfo, mockMQTT, mockTokenManager, health.NewCollector(zerolog.Nop()), zerolog.Nop(),
	)

	// Execute and assert
	require.NoError(t, service.Start())

	err := service.Start()
	require.Error(t, err)
	assert.Equal(t, "heartbeat service is already running", err.Error())

	require.NoError(t, service.Stop())

	err = service.Stop()
	require.Error(t, err)
	assert.Equal(t, "heartbeat service is not running", err.Error())
}
