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

// DurableChannel parks a recovery signal on the target's queue topic as a
// retained QoS 1 message. The broker replays the latest retained signal when
// the target resubscribes, so the queue is a one-slot wakeup call: any
// pending work beyond it is discovered by the target's own fetch.
type DurableChannel struct {
	mqttClient mqtt.MQTTClient
	topicRoot  string
	qos        int
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewDurableChannel creates the durable fallback channel.
func NewDurableChannel(mqttClient mqtt.MQTTClient, topicRoot string, qos int, timeout time.Duration, logger zerolog.Logger) *DurableChannel {
	if topicRoot == "" {
		topicRoot = constants.DefaultCommandQueueTopic
	}
	if qos <= 0 {
		qos = 1
	}
	if timeout <= 0 {
		timeout = constants.DefaultEnqueueTimeout
	}
	return &DurableChannel{
		mqttClient: mqttClient,
		topicRoot:  topicRoot,
		qos:        qos,
		timeout:    timeout,
		logger:     logger,
	}
}

// Name identifies the channel in outcomes, logs and metrics.
func (c *DurableChannel) Name() string {
	return constants.ChannelDurable
}

// Send retains the signal on the target's queue topic.
func (c *DurableChannel) Send(ctx context.Context, targetID string, signal models.CommandSignal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("serialize command signal: %w", err)
	}

	topic := c.topicRoot + "/" + targetID
	token := c.mqttClient.Publish(topic, byte(c.qos), true, payload)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("durable enqueue to %s: %w", topic, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("durable enqueue to %s timed out after %s", topic, c.timeout)
	}

	c.logger.Debug().
		Str("topic", topic).
		Str("command_id", signal.CommandID).
		Msg("Recovery signal queued")
	return nil
}
