package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

// RealtimeChannel pushes signals over the target's live broker session. The
// publish is not retained: with nobody listening the signal evaporates,
// which is the ephemeral contract this channel promises.
type RealtimeChannel struct {
	mqttClient mqtt.MQTTClient
	topicRoot  string
	qos        int
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewRealtimeChannel creates the real-time push channel.
func NewRealtimeChannel(mqttClient mqtt.MQTTClient, topicRoot string, qos int, timeout time.Duration, logger zerolog.Logger) *RealtimeChannel {
	if topicRoot == "" {
		topicRoot = constants.DefaultCommandNotifyTopic
	}
	if timeout <= 0 {
		timeout = constants.DefaultPushTimeout
	}
	return &RealtimeChannel{
		mqttClient: mqttClient,
		topicRoot:  topicRoot,
		qos:        qos,
		timeout:    timeout,
		logger:     logger,
	}
}

// Name identifies the channel in outcomes, logs and metrics.
func (c *RealtimeChannel) Name() string {
	return constants.ChannelRealtime
}

// Send publishes the signal to the target's notify topic and waits at most
// the configured push timeout for broker confirmation.
func (c *RealtimeChannel) Send(ctx context.Context, targetID string, signal models.CommandSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("serialize command signal: %w", err)
	}

	topic := c.topicRoot + "/" + targetID
	token := c.mqttClient.Publish(topic, byte(c.qos), false, payload)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("real-time push to %s: %w", topic, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("real-time push to %s timed out after %s", topic, c.timeout)
	}

	c.logger.Debug().
		Str("topic", topic).
		Str("command_id", signal.CommandID).
		Msg("Real-time signal pushed")
	return nil
}
