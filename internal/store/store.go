package store

import (
	"context"
	"errors"
	"time"

	"github.com/fieldvision/fieldvision/internal/models"
)

// ErrNotFound is returned when a command id has no record.
var ErrNotFound = errors.New("pending command not found")

// CommandStore is the durable record of every command and its lifecycle.
// Implementations must serialize the supersede-check-and-insert per target
// so two racing issuances cannot both miss each other's conflict.
type CommandStore interface {
	// Create persists a new command record.
	Create(ctx context.Context, cmd *models.PendingCommand) error

	// CreateAndSupersede persists cmd and, in the same atomic step, force
	// expires every active command of supersedeKind on the same target.
	// It returns the ids of the superseded commands.
	CreateAndSupersede(ctx context.Context, cmd *models.PendingCommand, supersedeKind models.CommandKind) ([]string, error)

	// GetByID fetches one command or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.PendingCommand, error)

	// FindActiveForTarget returns the target's unacknowledged, unexpired
	// commands ordered by ascending issue time.
	FindActiveForTarget(ctx context.Context, targetID string) ([]*models.PendingCommand, error)

	// MarkPublished records a successful delivery. Repeat deliveries keep
	// the first published timestamp.
	MarkPublished(ctx context.Context, id string, at time.Time) error

	// MarkAcknowledged transitions the given commands to acknowledged and
	// returns how many actually changed. Unknown, already acknowledged and
	// expired ids are skipped without error. A non-empty targetID restricts
	// the update to that target's own commands.
	MarkAcknowledged(ctx context.Context, targetID string, ids []string, at time.Time) (int, error)

	// MarkExpired truncates the command's lifetime to at. Acknowledged or
	// already expired commands are left untouched.
	MarkExpired(ctx context.Context, id string, at time.Time) error

	// IncrementAttempt counts one delivery attempt against the command.
	IncrementAttempt(ctx context.Context, id string) error

	// FindStale returns live commands issued before the cutoff or whose
	// attempt count reached maxAttempts, for the sweeper to triage. Expired
	// and acknowledged commands are excluded.
	FindStale(ctx context.Context, issuedBefore time.Time, maxAttempts int) ([]*models.PendingCommand, error)
}
