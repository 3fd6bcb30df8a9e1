package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/store"
)

// FetchService serves a device's pending command list. Serving a command is
// a delivery in its own right, so unpublished commands are marked published
// on the way out. That keeps acknowledged commands always published, even
// when the device pulled a command no channel ever carried.
type FetchService struct {
	store  store.CommandStore
	logger zerolog.Logger
}

// NewFetchService initializes a new FetchService.
func NewFetchService(commandStore store.CommandStore, logger zerolog.Logger) *FetchService {
	return &FetchService{
		store:  commandStore,
		logger: logger,
	}
}

// FetchPending returns the target's active commands in ascending issue order.
func (s *FetchService) FetchPending(ctx context.Context, targetID string) ([]*models.PendingCommand, error) {
	cmds, err := s.store.FindActiveForTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, cmd := range cmds {
		if cmd.Published {
			continue
		}
		if err := s.store.MarkPublished(ctx, cmd.ID, now); err != nil {
			// The command is still served; acknowledgment publishes it again
			// if this write never lands.
			s.logger.Warn().Err(err).Str("command_id", cmd.ID).Msg("Failed to mark fetched command published")
			continue
		}
		cmd.Published = true
		stamp := now
		cmd.PublishedAt = &stamp
	}

	if len(cmds) > 0 {
		s.logger.Debug().
			Str("target_id", targetID).
			Int("count", len(cmds)).
			Msg("Served pending commands")
	}
	return cmds, nil
}
