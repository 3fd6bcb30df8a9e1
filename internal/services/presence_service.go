package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/presence"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

// TokenVerifier checks heartbeat bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Redispatcher replays a target's undelivered commands.
type Redispatcher interface {
	RedispatchTarget(ctx context.Context, targetID string) (int, error)
}

// PresenceService owns every write to the presence tracker. It consumes
// heartbeats, broker last-wills and location fixes over MQTT, runs the
// staleness ticker for heartbeats that stop without a will, and replays
// undelivered commands through the worker pool when a target comes back.
type PresenceService struct {
	// Configuration fields
	heartbeatTopic string
	offlineTopic   string
	locationTopic  string
	qos            int
	offlineAfter   time.Duration
	checkInterval  time.Duration
	requireToken   bool

	// Dependencies
	mqttClient mqtt.MQTTClient
	tracker    *presence.Tracker
	verifier   TokenVerifier
	redispatch Redispatcher
	workers    *utils.WorkerPool
	logger     zerolog.Logger

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPresenceService initializes a new PresenceService and registers its
// offline-to-online replay hook on the tracker.
func NewPresenceService(heartbeatTopic, offlineTopic, locationTopic string, qos int,
	offlineAfter, checkInterval time.Duration, requireToken bool,
	mqttClient mqtt.MQTTClient, tracker *presence.Tracker, verifier TokenVerifier,
	redispatch Redispatcher, workers *utils.WorkerPool, logger zerolog.Logger) *PresenceService {

	if heartbeatTopic == "" {
		heartbeatTopic = constants.DefaultPresenceHeartbeatTopic
	}
	if offlineTopic == "" {
		offlineTopic = constants.DefaultPresenceOfflineTopic
	}
	if offlineAfter <= 0 {
		offlineAfter = constants.DefaultOfflineAfter
	}
	if checkInterval <= 0 {
		checkInterval = constants.DefaultStalenessCheckInterval
	}

	s := &PresenceService{
		heartbeatTopic: heartbeatTopic,
		offlineTopic:   offlineTopic,
		locationTopic:  locationTopic,
		qos:            qos,
		offlineAfter:   offlineAfter,
		checkInterval:  checkInterval,
		requireToken:   requireToken,
		mqttClient:     mqttClient,
		tracker:        tracker,
		verifier:       verifier,
		redispatch:     redispatch,
		workers:        workers,
		logger:         logger,
	}

	tracker.OnTransition(s.onTransition)
	return s
}

// Start subscribes to the presence topics and launches the staleness loop.
func (s *PresenceService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("PresenceService is already running")
		return errors.New("presence service is already running")
	}

	for topic, handler := range s.subscriptions() {
		token := s.mqttClient.Subscribe(topic, byte(s.qos), handler)
		token.Wait()
		if err := token.Error(); err != nil {
			s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to subscribe to presence topic")
			return err
		}
		s.logger.Info().Str("topic", topic).Msg("Subscribed to presence topic")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStalenessLoop()
	}()

	s.logger.Info().Msg("PresenceService started successfully")
	return nil
}

// Stop unsubscribes and stops the staleness loop.
func (s *PresenceService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("PresenceService is not running")
		return errors.New("presence service is not running")
	}

	s.cancel()
	s.wg.Wait()

	topics := make([]string, 0, 3)
	for topic := range s.subscriptions() {
		topics = append(topics, topic)
	}
	token := s.mqttClient.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error().Err(err).Strs("topics", topics).Msg("Failed to unsubscribe from presence topics")
		return err
	}

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("PresenceService stopped successfully")
	return nil
}

// subscriptions maps each wildcard presence topic to its handler. The
// location subscription only exists when a location topic is configured.
func (s *PresenceService) subscriptions() map[string]MQTT.MessageHandler {
	subs := map[string]MQTT.MessageHandler{
		s.heartbeatTopic + "/+": s.handleHeartbeat,
		s.offlineTopic + "/+":   s.handleOffline,
	}
	if s.locationTopic != "" {
		subs[s.locationTopic+"/+"] = s.handleLocation
	}
	return subs
}

// handleHeartbeat marks the sender online and stores its annotations.
func (s *PresenceService) handleHeartbeat(client MQTT.Client, msg MQTT.Message) {
	var hb models.Heartbeat
	if err := json.Unmarshal(msg.Payload(), &hb); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping malformed heartbeat")
		return
	}

	targetID := hb.TargetID
	if targetID == "" {
		targetID = topicTarget(msg.Topic())
	}
	if targetID == "" {
		s.logger.Warn().Str("topic", msg.Topic()).Msg("Dropping heartbeat without a target id")
		return
	}

	if s.requireToken {
		claims, err := s.verifier.Verify(hb.Token)
		if err != nil {
			s.logger.Warn().Err(err).Str("target_id", targetID).Msg("Dropping heartbeat with an invalid token")
			return
		}
		if claims.Subject != targetID {
			s.logger.Warn().
				Str("target_id", targetID).
				Str("token_subject", claims.Subject).
				Msg("Dropping heartbeat, token subject does not match sender")
			return
		}
	}

	now := time.Now().UTC()
	s.tracker.Set(targetID, models.PresenceOnline, now)
	s.tracker.Annotate(targetID, hb.AgentVersion, hb.Health)
}

// handleOffline processes the broker's last-will for a vanished session.
func (s *PresenceService) handleOffline(client MQTT.Client, msg MQTT.Message) {
	var notice models.OfflineNotice
	if err := json.Unmarshal(msg.Payload(), &notice); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping malformed offline notice")
		return
	}

	targetID := notice.TargetID
	if targetID == "" {
		targetID = topicTarget(msg.Topic())
	}
	if targetID == "" {
		s.logger.Warn().Str("topic", msg.Topic()).Msg("Dropping offline notice without a target id")
		return
	}

	s.logger.Info().Str("target_id", targetID).Msg("Broker delivered last-will, marking target offline")
	s.tracker.Set(targetID, models.PresenceOffline, time.Now().UTC())
}

// handleLocation stores the latest location fix on the target's record.
func (s *PresenceService) handleLocation(client MQTT.Client, msg MQTT.Message) {
	var fix models.LocationFix
	if err := json.Unmarshal(msg.Payload(), &fix); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping malformed location fix")
		return
	}

	if fix.TargetID == "" {
		fix.TargetID = topicTarget(msg.Topic())
	}
	if fix.TargetID == "" {
		s.logger.Warn().Str("topic", msg.Topic()).Msg("Dropping location fix without a target id")
		return
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now().UTC()
	}

	s.tracker.RecordFix(fix)
}

// runStalenessLoop flips targets offline when their heartbeats stop without
// the broker delivering a will.
func (s *PresenceService) runStalenessLoop() {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UTC()
			flipped := s.tracker.MarkStale(now.Add(-s.offlineAfter), now)
			if len(flipped) > 0 {
				s.logger.Info().Strs("target_ids", flipped).Msg("Marked silent targets offline")
			}

		case <-s.ctx.Done():
			s.logger.Info().Msg("PresenceService staleness loop stopping gracefully")
			return
		}
	}
}

// onTransition replays undelivered commands when a target comes back online.
// The replay runs on the worker pool because transition hooks fire inside
// MQTT callbacks and must not block there.
func (s *PresenceService) onTransition(targetID string, from, to models.PresenceStatus) {
	if to != models.PresenceOnline {
		return
	}

	submitted := s.workers.TrySubmit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultRedispatchTimeout)
		defer cancel()

		count, err := s.redispatch.RedispatchTarget(ctx, targetID)
		if err != nil {
			s.logger.Warn().Err(err).Str("target_id", targetID).Msg("Presence-edge replay failed")
			return
		}
		if count > 0 {
			s.logger.Info().Str("target_id", targetID).Int("count", count).Msg("Presence-edge replay finished")
		}
	})

	if !submitted {
		// The durable signal and the target's own resync still cover the
		// missed replay; the next presence edge retries it.
		s.logger.Warn().Str("target_id", targetID).Msg("Redispatch queue saturated, skipping presence-edge replay")
	}
}

// topicTarget extracts the target id segment from a presence topic.
func topicTarget(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return ""
	}
	return topic[idx+1:]
}
