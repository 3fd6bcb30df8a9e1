package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/health"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/identity"
	"github.com/fieldvision/fieldvision/pkg/jwt"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

// HeartbeatService publishes periodic presence heartbeats carrying the agent
// version, a host health snapshot and the bearer token the back office
// validates before trusting the heartbeat.
type HeartbeatService struct {
	// Configuration fields
	pubTopic string
	interval time.Duration
	qos      int

	// Dependencies
	deviceInfo   identity.DeviceInfoInterface
	mqttClient   mqtt.MQTTClient
	tokenManager jwt.TokenManagerInterface
	health       *health.Collector
	logger       zerolog.Logger

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, tokenManager jwt.TokenManagerInterface, healthCollector *health.Collector, logger zerolog.Logger) *HeartbeatService {

	if pubTopic == "" {
		pubTopic = constants.DefaultPresenceHeartbeatTopic
	}
	if interval <= 0 {
		interval = constants.DefaultHeartbeatInterval
	}

	return &HeartbeatService{
		pubTopic:     pubTopic,
		interval:     interval,
		qos:          qos,
		deviceInfo:   deviceInfo,
		mqttClient:   mqttClient,
		tokenManager: tokenManager,
		health:       healthCollector,
		logger:       logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.logger.Info().Str("topic", h.topic()).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// One immediate heartbeat so the back office flips the target online
	// without waiting a full interval after connect.
	h.publishHeartbeat()

	for {
		select {
		case <-ticker.C:
			h.publishHeartbeat()

		case <-h.ctx.Done():
			h.logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

// publishHeartbeat sends one heartbeat message.
func (h *HeartbeatService) publishHeartbeat() {
	heartbeatMessage := models.Heartbeat{
		TargetID:     h.deviceInfo.GetTargetID(),
		Timestamp:    time.Now().UTC(),
		Status:       models.PresenceOnline,
		AgentVersion: constants.AgentVersion,
		Health:       h.health.Snapshot(),
		Token:        h.tokenManager.GetToken(),
	}

	payload, err := json.Marshal(heartbeatMessage)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.mqttClient.Publish(h.topic(), byte(h.qos), false, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.logger.Debug().Msg("Heartbeat published successfully")
	}
}

// topic is the per-device heartbeat topic.
func (h *HeartbeatService) topic() string {
	return h.pubTopic + "/" + h.deviceInfo.GetTargetID()
}
