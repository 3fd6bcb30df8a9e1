package models

import "time"

// CommandKind distinguishes the two camera instructions a target understands.
type CommandKind string

const (
	// CommandStart tells the target to start its camera pipeline.
	CommandStart CommandKind = "start"
	// CommandStop tells the target to stop its camera pipeline.
	CommandStop CommandKind = "stop"
)

// Valid reports whether k names a known command kind.
func (k CommandKind) Valid() bool {
	return k == CommandStart || k == CommandStop
}

// Opposite returns the kind that conflicts with k on the same target.
func (k CommandKind) Opposite() CommandKind {
	if k == CommandStart {
		return CommandStop
	}
	return CommandStart
}

// PendingCommand is the durable record of one camera instruction issued to a
// target. Records are never deleted; a command leaves circulation only by
// acknowledgment or expiry, so the row doubles as the audit trail.
type PendingCommand struct {
	ID             string      `json:"id"`
	TargetID       string      `json:"target_id"`
	Kind           CommandKind `json:"kind"`
	IssuedAt       time.Time   `json:"issued_at"`
	Published      bool        `json:"published"`
	PublishedAt    *time.Time  `json:"published_at,omitempty"`
	Acknowledged   bool        `json:"acknowledged"`
	AcknowledgedAt *time.Time  `json:"acknowledged_at,omitempty"`
	AttemptCount   int         `json:"attempt_count"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
}

// IsExpired reports whether the command's deadline has passed. A command
// with no deadline never expires by time.
func (c *PendingCommand) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// IsPending reports whether the command still awaits its first successful
// delivery.
func (c *PendingCommand) IsPending(now time.Time) bool {
	return !c.Published && !c.Acknowledged && !c.IsExpired(now)
}

// IsInFlight reports whether the command was delivered but the target has
// not yet confirmed execution.
func (c *PendingCommand) IsInFlight(now time.Time) bool {
	return c.Published && !c.Acknowledged && !c.IsExpired(now)
}

// IsActive reports whether the command still wants attention from the
// dispatcher or the target: pending or in-flight.
func (c *PendingCommand) IsActive(now time.Time) bool {
	return !c.Acknowledged && !c.IsExpired(now)
}

// IsCompleted reports whether the target confirmed execution. Completion is
// terminal and survives any later expiry timestamp.
func (c *PendingCommand) IsCompleted() bool {
	return c.Acknowledged
}

// HasExceededMaxAttempts reports whether the delivery budget is spent.
// Exhaustion halts automatic retries; it does not expire the command.
func (c *PendingCommand) HasExceededMaxAttempts(max int) bool {
	return c.AttemptCount >= max
}
