package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/observability/metrics"
	"github.com/fieldvision/fieldvision/internal/store"
)

var (
	// ErrDispatchFailed means both channels refused the signal. The command
	// stays pending and the attempt still counts.
	ErrDispatchFailed = errors.New("all delivery channels failed")

	// ErrCommandExpired rejects dispatch of a command past its deadline.
	ErrCommandExpired = errors.New("command already expired")

	// ErrAttemptsExhausted rejects dispatch once the attempt budget is spent.
	ErrAttemptsExhausted = errors.New("delivery attempt budget exhausted")
)

// Presence is the slice of the tracker the dispatcher routes by.
type Presence interface {
	IsOnline(targetID string) bool
}

// Dispatcher routes one command signal through the channel pair: real-time
// push while the target holds a live session, durable queue otherwise or on
// push failure. Every Dispatch call costs the command exactly one attempt.
type Dispatcher struct {
	store       store.CommandStore
	presence    Presence
	realtime    DeliveryChannel
	durable     DeliveryChannel
	maxAttempts int
	logger      zerolog.Logger
}

// NewDispatcher wires the dispatcher. A non-positive maxAttempts falls back
// to the default budget.
func NewDispatcher(commandStore store.CommandStore, presence Presence, realtime, durable DeliveryChannel, maxAttempts int, logger zerolog.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxDeliveryAttempts
	}
	return &Dispatcher{
		store:       commandStore,
		presence:    presence,
		realtime:    realtime,
		durable:     durable,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// MaxAttempts returns the configured delivery budget.
func (d *Dispatcher) MaxAttempts() int {
	return d.maxAttempts
}

// Dispatch delivers the command's signal and records the bookkeeping:
// attempt counted first, published marked only after a channel accepted the
// signal. The returned outcomes list one entry per channel tried.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *models.PendingCommand) ([]models.DeliveryOutcome, error) {
	now := time.Now()
	if cmd.IsExpired(now) {
		return nil, ErrCommandExpired
	}
	if cmd.HasExceededMaxAttempts(d.maxAttempts) {
		return nil, ErrAttemptsExhausted
	}

	// Counted up front so a crash between channel and store still burns
	// budget instead of granting a free retry.
	if err := d.store.IncrementAttempt(ctx, cmd.ID); err != nil {
		return nil, fmt.Errorf("count delivery attempt for %s: %w", cmd.ID, err)
	}
	cmd.AttemptCount++

	signal := models.CommandSignal{
		CommandID: cmd.ID,
		TargetID:  cmd.TargetID,
		Kind:      cmd.Kind,
		IssuedAt:  cmd.IssuedAt,
	}

	var outcomes []models.DeliveryOutcome

	if d.presence.IsOnline(cmd.TargetID) {
		err := d.send(ctx, d.realtime, cmd.TargetID, signal)
		outcomes = append(outcomes, outcomeFor(d.realtime, err))
		if err == nil {
			return outcomes, d.markPublished(ctx, cmd)
		}
		d.logger.Warn().
			Err(err).
			Str("command_id", cmd.ID).
			Str("target_id", cmd.TargetID).
			Msg("Real-time push failed, falling back to durable queue")
	} else {
		d.logger.Debug().
			Str("command_id", cmd.ID).
			Str("target_id", cmd.TargetID).
			Msg("Target offline, routing to durable queue")
	}

	err := d.send(ctx, d.durable, cmd.TargetID, signal)
	outcomes = append(outcomes, outcomeFor(d.durable, err))
	if err == nil {
		return outcomes, d.markPublished(ctx, cmd)
	}

	d.logger.Error().
		Err(err).
		Str("command_id", cmd.ID).
		Str("target_id", cmd.TargetID).
		Int("attempt_count", cmd.AttemptCount).
		Msg("All delivery channels failed, command stays pending")
	return outcomes, ErrDispatchFailed
}

// RedispatchTarget replays the target's undelivered commands, typically on
// an offline-to-online presence edge. Delivered, expired and exhausted
// commands are skipped; the target's own resync covers the delivered ones.
func (d *Dispatcher) RedispatchTarget(ctx context.Context, targetID string) (int, error) {
	cmds, err := d.store.FindActiveForTarget(ctx, targetID)
	if err != nil {
		return 0, fmt.Errorf("load active commands for %s: %w", targetID, err)
	}

	now := time.Now()
	dispatched := 0
	for _, cmd := range cmds {
		if cmd.Published || cmd.IsExpired(now) {
			continue
		}
		if cmd.HasExceededMaxAttempts(d.maxAttempts) {
			d.logger.Warn().
				Str("command_id", cmd.ID).
				Str("target_id", targetID).
				Int("attempt_count", cmd.AttemptCount).
				Msg("Skipping redispatch, attempt budget exhausted")
			continue
		}
		if _, err := d.Dispatch(ctx, cmd); err != nil {
			d.logger.Warn().
				Err(err).
				Str("command_id", cmd.ID).
				Str("target_id", targetID).
				Msg("Redispatch failed")
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		metrics.AddRedispatched(dispatched)
		d.logger.Info().
			Str("target_id", targetID).
			Int("count", dispatched).
			Msg("Replayed undelivered commands")
	}
	return dispatched, nil
}

// send runs one channel attempt and feeds the delivery metrics.
func (d *Dispatcher) send(ctx context.Context, channel DeliveryChannel, targetID string, signal models.CommandSignal) error {
	started := time.Now()
	err := channel.Send(ctx, targetID, signal)
	metrics.ObserveDelivery(channel.Name(), err == nil, time.Since(started))
	return err
}

func (d *Dispatcher) markPublished(ctx context.Context, cmd *models.PendingCommand) error {
	now := time.Now()
	if err := d.store.MarkPublished(ctx, cmd.ID, now); err != nil {
		return fmt.Errorf("mark %s published: %w", cmd.ID, err)
	}
	if !cmd.Published {
		cmd.Published = true
		cmd.PublishedAt = &now
	}
	return nil
}

func outcomeFor(channel DeliveryChannel, err error) models.DeliveryOutcome {
	outcome := models.DeliveryOutcome{Channel: channel.Name(), Success: err == nil}
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}
