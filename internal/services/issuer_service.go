package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/observability/metrics"
	"github.com/fieldvision/fieldvision/internal/store"
)

var (
	// ErrInvalidKind rejects issuance of an unknown command kind.
	ErrInvalidKind = errors.New("unknown command kind")

	// ErrInvalidExpiry rejects a negative expiry window.
	ErrInvalidExpiry = errors.New("expiry window must not be negative")
)

// CommandDispatcher is the slice of the dispatcher the issuer drives.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd *models.PendingCommand) ([]models.DeliveryOutcome, error)
}

// PresenceReader exposes the tracker state consulted during issuance.
type PresenceReader interface {
	Get(targetID string) (models.PresenceRecord, bool)
}

// IssueRequest describes one command to issue.
type IssueRequest struct {
	TargetID  string
	Kind      models.CommandKind
	ExpiresIn time.Duration // zero means the configured default window
	NoExpiry  bool          // overrides ExpiresIn, the command never times out
}

// IssueResult reports the persisted command and how its first delivery went.
type IssueResult struct {
	Command    *models.PendingCommand
	Outcomes   []models.DeliveryOutcome
	Delivery   string
	Superseded []string
}

// IssuerService validates, persists and dispatches commands. Persistence
// failures fail the issuance; delivery failures never do, they only shape
// the reported delivery verdict.
type IssuerService struct {
	// Configuration fields
	expiryWindow    time.Duration
	minAgentVersion string

	// Dependencies
	store      store.CommandStore
	directory  directory.TargetDirectory
	dispatcher CommandDispatcher
	presence   PresenceReader
	logger     zerolog.Logger
}

// NewIssuerService initializes a new IssuerService.
func NewIssuerService(expiryWindow time.Duration, minAgentVersion string, commandStore store.CommandStore,
	targetDirectory directory.TargetDirectory, dispatcher CommandDispatcher, presence PresenceReader, logger zerolog.Logger) *IssuerService {

	if expiryWindow <= 0 {
		expiryWindow = constants.DefaultExpiryWindow
	}

	return &IssuerService{
		expiryWindow:    expiryWindow,
		minAgentVersion: minAgentVersion,
		store:           commandStore,
		directory:       targetDirectory,
		dispatcher:      dispatcher,
		presence:        presence,
		logger:          logger,
	}
}

// Issue validates the request, persists the command while force-expiring any
// active opposite-kind command on the same target, then dispatches the signal
// synchronously and derives the delivery verdict from the channel outcomes.
func (s *IssuerService) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}
	if req.ExpiresIn < 0 {
		return nil, ErrInvalidExpiry
	}

	info, err := s.directory.Lookup(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, fmt.Errorf("%w: %s", directory.ErrTargetInactive, req.TargetID)
	}

	s.checkAgentVersion(req.TargetID)
	s.warnOnDuplicate(ctx, req.TargetID, req.Kind)

	now := time.Now().UTC()
	cmd := &models.PendingCommand{
		ID:       uuid.NewString(),
		TargetID: req.TargetID,
		Kind:     req.Kind,
		IssuedAt: now,
	}

	if req.NoExpiry {
		s.logger.Warn().
			Str("command_id", cmd.ID).
			Str("target_id", cmd.TargetID).
			Msg("Command issued without expiry, it will linger until acknowledged or swept")
	} else {
		window := req.ExpiresIn
		if window == 0 {
			window = s.expiryWindow
		}
		expiresAt := now.Add(window)
		cmd.ExpiresAt = &expiresAt
	}

	superseded, err := s.store.CreateAndSupersede(ctx, cmd, req.Kind.Opposite())
	if err != nil {
		return nil, fmt.Errorf("persist command for %s: %w", req.TargetID, err)
	}

	metrics.IncCommandIssued(string(cmd.Kind))
	if len(superseded) > 0 {
		metrics.AddCommandsSuperseded(len(superseded))
		s.logger.Info().
			Str("command_id", cmd.ID).
			Str("target_id", cmd.TargetID).
			Strs("superseded_ids", superseded).
			Msg("Force-expired conflicting commands")
	}

	outcomes, dispatchErr := s.dispatcher.Dispatch(ctx, cmd)
	if dispatchErr != nil {
		s.logger.Warn().
			Err(dispatchErr).
			Str("command_id", cmd.ID).
			Str("target_id", cmd.TargetID).
			Msg("Initial delivery failed, command stays pending until replay or fetch")
	}

	result := &IssueResult{
		Command:    cmd,
		Outcomes:   outcomes,
		Delivery:   deliveryVerdict(outcomes),
		Superseded: superseded,
	}

	s.logger.Info().
		Str("command_id", cmd.ID).
		Str("target_id", cmd.TargetID).
		Str("kind", string(cmd.Kind)).
		Str("delivery", result.Delivery).
		Msg("Command issued")
	return result, nil
}

// checkAgentVersion warns when the target's reported agent predates the
// configured floor. The gate is advisory, issuance proceeds either way.
func (s *IssuerService) checkAgentVersion(targetID string) {
	if s.minAgentVersion == "" {
		return
	}

	record, ok := s.presence.Get(targetID)
	if !ok || record.AgentVersion == "" {
		return
	}

	current, err := semver.NewVersion(record.AgentVersion)
	if err != nil {
		s.logger.Debug().
			Str("target_id", targetID).
			Str("agent_version", record.AgentVersion).
			Msg("Unparseable agent version, skipping version gate")
		return
	}

	floor, err := semver.NewVersion(s.minAgentVersion)
	if err != nil {
		s.logger.Debug().
			Str("min_agent_version", s.minAgentVersion).
			Msg("Unparseable minimum agent version, skipping version gate")
		return
	}

	if current.LessThan(floor) {
		s.logger.Warn().
			Str("target_id", targetID).
			Str("agent_version", record.AgentVersion).
			Str("min_agent_version", s.minAgentVersion).
			Msg("Target agent predates supported version, delivery may misbehave")
	}
}

// warnOnDuplicate logs when an active same-kind command already exists for
// the target. Duplicates coexist, only opposite kinds supersede.
func (s *IssuerService) warnOnDuplicate(ctx context.Context, targetID string, kind models.CommandKind) {
	active, err := s.store.FindActiveForTarget(ctx, targetID)
	if err != nil {
		s.logger.Warn().Err(err).Str("target_id", targetID).Msg("Duplicate check skipped, could not load active commands")
		return
	}

	for _, cmd := range active {
		if cmd.Kind == kind {
			s.logger.Warn().
				Str("target_id", targetID).
				Str("kind", string(kind)).
				Str("existing_command_id", cmd.ID).
				Msg("Active command of the same kind already pending")
			return
		}
	}
}

// deliveryVerdict folds channel outcomes into the issuance verdict.
func deliveryVerdict(outcomes []models.DeliveryOutcome) string {
	for _, outcome := range outcomes {
		if !outcome.Success {
			continue
		}
		switch outcome.Channel {
		case constants.ChannelRealtime:
			return constants.DeliveryAccepted
		case constants.ChannelDurable:
			return constants.DeliveryQueued
		}
	}
	return constants.DeliveryFailed
}
