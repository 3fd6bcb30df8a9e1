package services_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/mocks"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/presence"
	"github.com/fieldvision/fieldvision/internal/services"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testHeartbeatTopic = "fieldvision/presence/heartbeat"
	testOfflineTopic   = "fieldvision/presence/offline"
	testLocationTopic  = "fieldvision/location"
)

type presenceFixture struct {
	mqtt       *mocks.MockMQTTClient
	tracker    *presence.Tracker
	verifier   *mocks.MockTokenVerifier
	redispatch *mocks.MockRedispatcher
	workers    *utils.WorkerPool
	service    *services.PresenceService
	handlers   map[string]MQTT.MessageHandler
}

func newPresenceFixture(t *testing.T, requireToken bool) *presenceFixture {
	t.Helper()
	f := &presenceFixture{
		mqtt:       new(mocks.MockMQTTClient),
		tracker:    presence.NewTracker(zerolog.Nop()),
		verifier:   new(mocks.MockTokenVerifier),
		redispatch: new(mocks.MockRedispatcher),
		workers:    utils.NewWorkerPool(2),
		handlers:   map[string]MQTT.MessageHandler{},
	}
	t.Cleanup(f.workers.Shutdown)

	f.mqtt.On("Subscribe", mock.Anything, byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			f.handlers[args.String(0)] = args.Get(2).(MQTT.MessageHandler)
		}).
		Return(mocks.NewSucceededToken())
	f.mqtt.On("Unsubscribe", mock.Anything).Return(mocks.NewSucceededToken())

	f.service = services.NewPresenceService(
		testHeartbeatTopic, testOfflineTopic, testLocationTopic, 1,
		90*time.Second, 30*time.Second, requireToken,
		f.mqtt, f.tracker, f.verifier, f.redispatch, f.workers, zerolog.Nop(),
	)
	return f
}

func heartbeatPayload(t *testing.T, hb models.Heartbeat) []byte {
	t.Helper()
	payload, err := json.Marshal(hb)
	require.NoError(t, err)
	return payload
}

// TestPresenceService_StartStop tests subscription setup and the lifecycle
// guards.
func TestPresenceService_StartStop(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)

	// Execute
	require.NoError(t, f.service.Start())

	// Assert
	assert.Contains(t, f.handlers, testHeartbeatTopic+"/+")
	assert.Contains(t, f.handlers, testOfflineTopic+"/+")
	assert.Contains(t, f.handlers, testLocationTopic+"/+")

	err := f.service.Start()
	require.Error(t, err)
	assert.Equal(t, "presence service is already running", err.Error())

	require.NoError(t, f.service.Stop())

	err = f.service.Stop()
	require.Error(t, err)
	assert.Equal(t, "presence service is not running", err.Error())
}

// TestPresenceService_Start_SubscribeFailure tests that a broken
// subscription fails the start.
func TestPresenceService_Start_SubscribeFailure(t *testing.T) {
	// Setup
	mockMQTT := new(mocks.MockMQTTClient)
	mockMQTT.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.NewFailedToken(errors.New("subscribe failed")))

	workers := utils.NewWorkerPool(1)
	t.Cleanup(workers.Shutdown)

	service := services.NewPresenceService(
		testHeartbeatTopic, testOfflineTopic, "", 1,
		90*time.Second, 30*time.Second, false,
		mockMQTT, presence.NewTracker(zerolog.Nop()), nil, new(mocks.MockRedispatcher),
		workers, zerolog.Nop(),
	)

	// Execute
	err := service.Start()

	// Assert
	require.Error(t, err)
	assert.Equal(t, "subscribe failed", err.Error())
}

// TestPresenceService_Heartbeat_MarksOnline tests that a heartbeat flips the
// sender online and stores its annotations.
func TestPresenceService_Heartbeat_MarksOnline(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	f.redispatch.On("RedispatchTarget", mock.Anything, "camera-7").Return(0, nil)

	payload := heartbeatPayload(t, models.Heartbeat{
		TargetID:     "camera-7",
		Timestamp:    time.Now().UTC(),
		Status:       models.PresenceOnline,
		AgentVersion: "1.2.0",
		Health:       &models.HealthSnapshot{CPUPercent: 12.5},
	})

	// Execute
	f.handlers[testHeartbeatTopic+"/+"](nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7", payload))

	// Assert
	assert.True(t, f.tracker.IsOnline("camera-7"))
	rec, ok := f.tracker.Get("camera-7")
	require.True(t, ok)
	assert.Equal(t, "1.2.0", rec.AgentVersion)
	require.NotNil(t, rec.Health)
	assert.Equal(t, 12.5, rec.Health.CPUPercent)
}

// TestPresenceService_Heartbeat_TargetIDFromTopic tests the fallback to the
// topic segment when the payload omits the target id.
func TestPresenceService_Heartbeat_TargetIDFromTopic(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	f.redispatch.On("RedispatchTarget", mock.Anything, "camera-9").Return(0, nil)
	payload := heartbeatPayload(t, models.Heartbeat{Status: models.PresenceOnline})

	// Execute
	f.handlers[testHeartbeatTopic+"/+"](nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-9", payload))

	// Assert
	assert.True(t, f.tracker.IsOnline("camera-9"))
}

// TestPresenceService_Heartbeat_MalformedDropped tests that garbage payloads
// change nothing.
func TestPresenceService_Heartbeat_MalformedDropped(t *testing.T) {
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	f.handlers[testHeartbeatTopic+"/+"](nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7", []byte("{not json")))

	assert.False(t, f.tracker.IsOnline("camera-7"))
}

// TestPresenceService_Heartbeat_TokenRequired tests heartbeat authentication:
// missing or foreign tokens are dropped, matching ones accepted.
func TestPresenceService_Heartbeat_TokenRequired(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, true)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	f.redispatch.On("RedispatchTarget", mock.Anything, mock.Anything).Return(0, nil)
	f.verifier.On("Verify", "bad-token").Return(nil, auth.ErrInvalidToken)
	f.verifier.On("Verify", "foreign-token").Return(&auth.Claims{
		Role:             string(auth.RoleDevice),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "camera-9"},
	}, nil)
	f.verifier.On("Verify", "good-token").Return(&auth.Claims{
		Role:             string(auth.RoleDevice),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "camera-7"},
	}, nil)

	handler := f.handlers[testHeartbeatTopic+"/+"]

	// Execute: invalid token.
	handler(nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7",
		heartbeatPayload(t, models.Heartbeat{TargetID: "camera-7", Token: "bad-token"})))
	assert.False(t, f.tracker.IsOnline("camera-7"))

	// Execute: valid token minted for a different device.
	handler(nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7",
		heartbeatPayload(t, models.Heartbeat{TargetID: "camera-7", Token: "foreign-token"})))
	assert.False(t, f.tracker.IsOnline("camera-7"))

	// Execute: matching token.
	handler(nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7",
		heartbeatPayload(t, models.Heartbeat{TargetID: "camera-7", Token: "good-token"})))
	assert.True(t, f.tracker.IsOnline("camera-7"))
}

// TestPresenceService_Offline_LastWill tests that the broker's last-will
// flips the target offline.
func TestPresenceService_Offline_LastWill(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	f.redispatch.On("RedispatchTarget", mock.Anything, "camera-7").Return(0, nil)
	f.tracker.Set("camera-7", models.PresenceOnline, time.Now().UTC())

	notice, err := json.Marshal(models.OfflineNotice{TargetID: "camera-7"})
	require.NoError(t, err)

	// Execute
	f.handlers[testOfflineTopic+"/+"](nil, mocks.NewMockMessage(testOfflineTopic+"/camera-7", notice))

	// Assert
	assert.False(t, f.tracker.IsOnline("camera-7"))
}

// TestPresenceService_Location_RecordsFix tests location fix ingestion with
// the arrival-time fallback.
func TestPresenceService_Location_RecordsFix(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	fix, err := json.Marshal(models.LocationFix{Latitude: 48.8584, Longitude: 2.2945})
	require.NoError(t, err)

	// Execute
	f.handlers[testLocationTopic+"/+"](nil, mocks.NewMockMessage(testLocationTopic+"/camera-7", fix))

	// Assert
	rec, ok := f.tracker.Get("camera-7")
	require.True(t, ok)
	require.NotNil(t, rec.LastFix)
	assert.Equal(t, 48.8584, rec.LastFix.Latitude)
	assert.False(t, rec.LastFix.Timestamp.IsZero())
}

// TestPresenceService_OnlineEdge_Redispatches tests that an offline-to-online
// transition replays the target's undelivered commands off the MQTT callback
// goroutine.
func TestPresenceService_OnlineEdge_Redispatches(t *testing.T) {
	// Setup
	f := newPresenceFixture(t, false)
	require.NoError(t, f.service.Start())
	defer f.service.Stop()

	replayed := make(chan string, 1)
	f.redispatch.On("RedispatchTarget", mock.Anything, "camera-7").
		Run(func(args mock.Arguments) { replayed <- args.String(1) }).
		Return(2, nil)

	payload := heartbeatPayload(t, models.Heartbeat{TargetID: "camera-7", Status: models.PresenceOnline})

	// Execute
	f.handlers[testHeartbeatTopic+"/+"](nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7", payload))

	// Assert
	select {
	case targetID := <-replayed:
		assert.Equal(t, "camera-7", targetID)
	case <-time.After(2 * time.Second):
		t.Fatal("redispatch never ran after the online edge")
	}

	// A repeat heartbeat is not an edge and must not replay again.
	f.handlers[testHeartbeatTopic+"/+"](nil, mocks.NewMockMessage(testHeartbeatTopic+"/camera-7", payload))
	select {
	case <-replayed:
		t.Fatal("steady-state heartbeat triggered a replay")
	case <-time.After(100 * time.Millisecond):
	}
}
