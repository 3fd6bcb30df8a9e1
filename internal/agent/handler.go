package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/identity"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

// CommandHandler runs missed-command recovery on the device. Every signal on
// either command topic is only a nudge: the handler fetches the authoritative
// pending list over HTTP, executes it in issue order and acknowledges every
// processed command, even the ones that failed to execute.
type CommandHandler struct {
	// Configuration fields
	notifyTopic string
	queueTopic  string
	qos         int
	debounce    time.Duration

	// Dependencies
	mqttClient mqtt.MQTTClient
	deviceInfo identity.DeviceInfoInterface
	backoffice BackofficeAPI
	media      MediaController
	dedup      *DedupCache
	ledger     *Ledger // optional, nil disables persistence
	logger     zerolog.Logger

	// Internal state management
	resyncCh      chan struct{}
	debounceMu    sync.Mutex
	debounceTimer *time.Timer
	subscribed    bool
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewCommandHandler initializes a new CommandHandler.
func NewCommandHandler(notifyTopic, queueTopic string, qos int, debounce time.Duration,
	mqttClient mqtt.MQTTClient, deviceInfo identity.DeviceInfoInterface, backoffice BackofficeAPI,
	media MediaController, dedup *DedupCache, ledger *Ledger, logger zerolog.Logger) *CommandHandler {

	if notifyTopic == "" {
		notifyTopic = constants.DefaultCommandNotifyTopic
	}
	if queueTopic == "" {
		queueTopic = constants.DefaultCommandQueueTopic
	}
	if debounce <= 0 {
		debounce = constants.DefaultResyncDebounce
	}

	return &CommandHandler{
		notifyTopic: notifyTopic,
		queueTopic:  queueTopic,
		qos:         qos,
		debounce:    debounce,
		mqttClient:  mqttClient,
		deviceInfo:  deviceInfo,
		backoffice:  backoffice,
		media:       media,
		dedup:       dedup,
		ledger:      ledger,
		logger:      logger,
		resyncCh:    make(chan struct{}, 1),
	}
}

// Start restores the ledger, subscribes to both command topics and launches
// the resync worker. One initial resync covers anything issued while the
// agent was down.
func (h *CommandHandler) Start() error {
	if h.ctx != nil {
		h.logger.Warn().Msg("CommandHandler is already running")
		return errors.New("command handler is already running")
	}

	if h.ledger != nil {
		ids, err := h.ledger.Load()
		if err != nil {
			h.logger.Warn().Err(err).Msg("Ledger unreadable, starting with an empty dedup cache")
		} else if len(ids) > 0 {
			h.dedup.Restore(ids)
			h.logger.Info().Int("count", len(ids)).Msg("Restored processed-command ledger")
		}
	}

	if err := h.subscribe(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to subscribe to command topics")
		return err
	}
	h.debounceMu.Lock()
	h.subscribed = true
	h.debounceMu.Unlock()

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runResyncLoop()
	}()

	h.TriggerResync()

	h.logger.Info().Msg("CommandHandler started successfully")
	return nil
}

// Stop gracefully stops the handler and unsubscribes from the command topics.
func (h *CommandHandler) Stop() error {
	if h.ctx == nil {
		h.logger.Warn().Msg("CommandHandler is not running")
		return errors.New("command handler is not running")
	}

	h.debounceMu.Lock()
	h.subscribed = false
	if h.debounceTimer != nil {
		h.debounceTimer.Stop()
		h.debounceTimer = nil
	}
	h.debounceMu.Unlock()

	h.cancel()
	h.wg.Wait()

	topics := h.topics()
	token := h.mqttClient.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		h.logger.Error().Err(err).Strs("topics", topics).Msg("Failed to unsubscribe from command topics")
		return err
	}

	h.ctx = nil
	h.cancel = nil

	h.logger.Info().Msg("CommandHandler stopped successfully")
	return nil
}

// TriggerResync schedules one recovery round. Calls within the debounce
// window coalesce; a trigger arriving while a round is in flight queues
// exactly one follow-up round.
func (h *CommandHandler) TriggerResync() {
	h.debounceMu.Lock()
	defer h.debounceMu.Unlock()

	if h.debounceTimer != nil {
		return
	}

	h.debounceTimer = time.AfterFunc(h.debounce, func() {
		h.debounceMu.Lock()
		h.debounceTimer = nil
		h.debounceMu.Unlock()

		select {
		case h.resyncCh <- struct{}{}:
		default: // a follow-up round is already queued
		}
	})
}

// OnConnect runs on every MQTT (re)connection. The broker forgets a clean
// session's subscriptions on a drop, so restore them when running, then
// resync to pick up anything issued during the gap.
func (h *CommandHandler) OnConnect() {
	h.debounceMu.Lock()
	subscribed := h.subscribed
	h.debounceMu.Unlock()

	if subscribed {
		if err := h.subscribe(); err != nil {
			h.logger.Warn().Err(err).Msg("Re-subscribe after reconnect failed")
		}
	}
	h.TriggerResync()
}

// subscribe issues the two per-device topic subscriptions.
func (h *CommandHandler) subscribe() error {
	for _, topic := range h.topics() {
		token := h.mqttClient.Subscribe(topic, byte(h.qos), h.onSignal)
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		h.logger.Info().Str("topic", topic).Msg("Subscribed to command topic")
	}
	return nil
}

// topics lists the two per-device command topics.
func (h *CommandHandler) topics() []string {
	targetID := h.deviceInfo.GetTargetID()
	return []string{
		h.notifyTopic + "/" + targetID,
		h.queueTopic + "/" + targetID,
	}
}

// onSignal reacts to a command signal. The payload is advisory and never
// acted on, the authoritative list always comes from fetchPending.
func (h *CommandHandler) onSignal(client MQTT.Client, msg MQTT.Message) {
	h.logger.Debug().
		Str("topic", msg.Topic()).
		Int("bytes", len(msg.Payload())).
		Msg("Command signal received, scheduling resync")
	h.TriggerResync()
}

// runResyncLoop executes recovery rounds one at a time.
func (h *CommandHandler) runResyncLoop() {
	for {
		select {
		case <-h.resyncCh:
			h.resync()

		case <-h.ctx.Done():
			h.logger.Info().Msg("CommandHandler resync loop stopping gracefully")
			return
		}
	}
}

// resync runs one missed-command recovery round.
func (h *CommandHandler) resync() {
	cmds, err := h.backoffice.FetchPending(h.ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Recovery fetch failed, waiting for the next signal")
		return
	}
	if len(cmds) == 0 {
		h.logger.Debug().Msg("No pending commands")
		return
	}

	// The server already orders by issue time; keep it stable regardless.
	sort.SliceStable(cmds, func(i, j int) bool {
		return cmds[i].IssuedAt.Before(cmds[j].IssuedAt)
	})

	var processed []string
	defer func() {
		if len(processed) == 0 {
			return
		}
		count, err := h.backoffice.Acknowledge(h.ctx, processed)
		if err != nil {
			h.logger.Warn().
				Err(err).
				Int("count", len(processed)).
				Msg("Acknowledgment failed, ids will be re-acknowledged on the next resync")
		} else {
			h.logger.Info().
				Int("requested", len(processed)).
				Int("updated", count).
				Msg("Acknowledged processed commands")
		}
		h.persistLedger()
	}()

	for _, cmd := range cmds {
		if h.ctx.Err() != nil {
			return
		}

		if h.dedup.Contains(cmd.ID) {
			// Already executed; the earlier ack may not have landed, so ack
			// again. The back office treats repeats as no-ops.
			h.logger.Debug().Str("command_id", cmd.ID).Msg("Skipping already processed command")
			processed = append(processed, cmd.ID)
			continue
		}

		h.logger.Info().
			Str("command_id", cmd.ID).
			Str("kind", string(cmd.Kind)).
			Time("issued_at", cmd.IssuedAt).
			Msg("Applying camera command")

		if err := h.execute(cmd); err != nil {
			// A poisoned command must not jam the queue. Acknowledge it and
			// leave the failure to the logs.
			h.logger.Error().
				Err(err).
				Str("command_id", cmd.ID).
				Str("kind", string(cmd.Kind)).
				Msg("Execution failed, acknowledging anyway")
		}

		h.dedup.Add(cmd.ID)
		processed = append(processed, cmd.ID)
	}
}

// execute drives the media controller for one command.
func (h *CommandHandler) execute(cmd models.PendingCommand) error {
	switch cmd.Kind {
	case models.CommandStart:
		return h.media.StartStream(h.ctx)
	case models.CommandStop:
		return h.media.StopStream(h.ctx)
	default:
		return fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
}

// persistLedger saves the dedup cache when a ledger is configured.
func (h *CommandHandler) persistLedger() {
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Save(h.dedup.Snapshot()); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to persist processed-command ledger")
	}
}
