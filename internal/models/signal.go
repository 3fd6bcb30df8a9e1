package models

import "time"

// CommandSignal is the advisory nudge placed on a delivery channel. A target
// never acts on its contents; receiving one only tells it to pull the
// authoritative pending list from the back office.
type CommandSignal struct {
	CommandID string      `json:"command_id"`
	TargetID  string      `json:"target_id"`
	Kind      CommandKind `json:"kind"`
	IssuedAt  time.Time   `json:"issued_at"`
}

// DeliveryOutcome records one channel's verdict during a dispatch attempt.
type DeliveryOutcome struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
