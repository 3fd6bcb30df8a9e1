package models

// IssueCommandRequest is the POST /api/v1/commands body.
type IssueCommandRequest struct {
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"`

	// ExpiresInMinutes picks the command lifetime. Absent means the server
	// default window; an explicit zero means no expiry.
	ExpiresInMinutes *int `json:"expires_in_minutes,omitempty"`
}

// IssueCommandResponse reports the persisted command and its first delivery.
type IssueCommandResponse struct {
	CommandID  string            `json:"command_id"`
	Delivery   string            `json:"delivery"`
	Superseded []string          `json:"superseded,omitempty"`
	Outcomes   []DeliveryOutcome `json:"outcomes,omitempty"`
}

// PendingCommandsResponse lists the caller's active commands in issue order.
type PendingCommandsResponse struct {
	Commands []PendingCommand `json:"commands"`
}

// AckRequest is the POST /api/v1/commands/ack body.
type AckRequest struct {
	CommandIDs []string `json:"command_ids"`
}

// AckResponse reports how many commands actually transitioned.
type AckResponse struct {
	UpdatedCount int `json:"updated_count"`
}
