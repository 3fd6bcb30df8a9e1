package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/observability/metrics"
	"github.com/fieldvision/fieldvision/internal/store"
	"github.com/fieldvision/fieldvision/internal/utils"
)

// AckService applies acknowledgment batches to the command store. The
// operation is idempotent: unknown, foreign, already acknowledged and expired
// ids fall out of the count instead of erroring, so devices can re-send the
// same batch after a failed round trip.
type AckService struct {
	store  store.CommandStore
	logger zerolog.Logger
}

// NewAckService initializes a new AckService.
func NewAckService(commandStore store.CommandStore, logger zerolog.Logger) *AckService {
	return &AckService{
		store:  commandStore,
		logger: logger,
	}
}

// Acknowledge transitions the given commands to acknowledged and returns how
// many actually changed. A non-empty targetID restricts the batch to that
// target's own commands.
func (s *AckService) Acknowledge(ctx context.Context, targetID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// Devices retry ack batches, so the same id may appear twice in one
	// request. Collapse them before hitting the store.
	unique := utils.Dedupe(ids)

	count, err := s.store.MarkAcknowledged(ctx, targetID, unique, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	metrics.AddAcknowledged(count)
	s.logger.Info().
		Str("target_id", targetID).
		Int("requested", len(ids)).
		Int("updated", count).
		Msg("Acknowledgment batch applied")
	return count, nil
}
