package directory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTargetNotFound rejects commands aimed at an unregistered target.
	ErrTargetNotFound = errors.New("target not found")

	// ErrTargetInactive rejects commands aimed at a deactivated target.
	ErrTargetInactive = errors.New("target is deactivated")
)

// TargetInfo describes one registered field device.
type TargetInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// TargetDirectory answers whether a target id names a legitimate, active
// device. Identity provisioning itself lives outside this system; the
// directory only reflects it.
type TargetDirectory interface {
	// Lookup returns the target or ErrTargetNotFound.
	Lookup(ctx context.Context, targetID string) (*TargetInfo, error)

	// Register adds or replaces a target record.
	Register(ctx context.Context, info *TargetInfo) error

	// List returns every registered target.
	List(ctx context.Context) ([]*TargetInfo, error)
}
