package dispatch

import (
	"context"

	"github.com/fieldvision/fieldvision/internal/models"
)

// DeliveryChannel carries advisory command signals toward a target. A
// channel only promises a best-effort handoff; the authoritative state
// always lives in the command store, never in the signal itself.
type DeliveryChannel interface {
	// Name identifies the channel in outcomes, logs and metrics.
	Name() string

	// Send hands the signal to the channel's transport. A nil return means
	// the transport accepted it, not that the target saw it.
	Send(ctx context.Context, targetID string, signal models.CommandSignal) error
}
