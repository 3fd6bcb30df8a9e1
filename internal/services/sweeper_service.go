package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/observability/metrics"
	"github.com/fieldvision/fieldvision/internal/store"
)

// SweeperService periodically triages stale commands: strays issued without
// an expiry are collected once they outlive the stale window, and commands
// that burned their delivery budget are surfaced to operators. Time-based
// expiry itself needs no writes, every read derives it from the deadline.
type SweeperService struct {
	// Configuration fields
	interval    time.Duration
	staleAfter  time.Duration
	maxAttempts int

	// Dependencies
	store  store.CommandStore
	logger zerolog.Logger

	// Internal state management
	surfaced map[string]struct{} // exhausted ids already reported
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSweeperService initializes a new SweeperService.
func NewSweeperService(interval, staleAfter time.Duration, maxAttempts int, commandStore store.CommandStore, logger zerolog.Logger) *SweeperService {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = constants.DefaultStaleAfter
	}
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxDeliveryAttempts
	}

	return &SweeperService{
		interval:    interval,
		staleAfter:  staleAfter,
		maxAttempts: maxAttempts,
		store:       commandStore,
		logger:      logger,
		surfaced:    make(map[string]struct{}),
	}
}

// Start launches the sweep loop in a separate goroutine.
func (s *SweeperService) Start() error {
	if s.ctx != nil {
		s.logger.Warn().Msg("SweeperService is already running")
		return errors.New("sweeper service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSweepLoop()
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("SweeperService started successfully")
	return nil
}

// Stop gracefully stops the sweeper.
func (s *SweeperService) Stop() error {
	if s.ctx == nil {
		s.logger.Warn().Msg("SweeperService is not running")
		return errors.New("sweeper service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.logger.Info().Msg("SweeperService stopped successfully")
	return nil
}

// runSweepLoop sweeps at the configured interval until stopped.
func (s *SweeperService) runSweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Sweep(s.ctx); err != nil {
				s.logger.Error().Err(err).Msg("Sweep pass failed")
			}

		case <-s.ctx.Done():
			s.logger.Info().Msg("SweeperService stopping gracefully")
			return
		}
	}
}

// Sweep runs one triage pass over the stale commands.
func (s *SweeperService) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.staleAfter)

	stale, err := s.store.FindStale(ctx, cutoff, s.maxAttempts)
	if err != nil {
		return err
	}

	stillSurfaced := make(map[string]struct{}, len(s.surfaced))
	collected := 0

	for _, cmd := range stale {
		// Strays without an expiry would linger forever; truncate them once
		// they outlive the stale window.
		if cmd.ExpiresAt == nil && cmd.IssuedAt.Before(cutoff) {
			if err := s.store.MarkExpired(ctx, cmd.ID, now); err != nil {
				s.logger.Error().Err(err).Str("command_id", cmd.ID).Msg("Failed to expire stray command")
				continue
			}
			metrics.IncExpired()
			collected++
			s.logger.Info().
				Str("command_id", cmd.ID).
				Str("target_id", cmd.TargetID).
				Time("issued_at", cmd.IssuedAt).
				Msg("Collected stray command without expiry")
			continue
		}

		if cmd.HasExceededMaxAttempts(s.maxAttempts) {
			if _, seen := s.surfaced[cmd.ID]; !seen {
				metrics.IncExhausted()
				s.logger.Warn().
					Str("command_id", cmd.ID).
					Str("target_id", cmd.TargetID).
					Int("attempt_count", cmd.AttemptCount).
					Msg("Command exhausted its delivery budget, operator attention needed")
			}
			stillSurfaced[cmd.ID] = struct{}{}
		}
	}

	// Ids that left the stale set were acknowledged or expired; forget them
	// so the map stays bounded by the live exhausted population.
	s.surfaced = stillSurfaced

	if collected > 0 || len(stale) > 0 {
		s.logger.Debug().
			Int("stale", len(stale)).
			Int("collected", collected).
			Int("exhausted", len(stillSurfaced)).
			Msg("Sweep pass finished")
	}
	return nil
}
