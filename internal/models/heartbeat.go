package models

import "time"

// Heartbeat is the agent's periodic presence beacon.
type Heartbeat struct {
	TargetID     string          `json:"target_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Status       PresenceStatus  `json:"status"`
	AgentVersion string          `json:"agent_version,omitempty"`
	Health       *HealthSnapshot `json:"health,omitempty"`
	Token        string          `json:"token,omitempty"`
}

// OfflineNotice is the broker last-will payload announcing an ungraceful
// drop. The payload is fixed at connect time, so it carries no timestamp;
// the receiver stamps it on arrival.
type OfflineNotice struct {
	TargetID string `json:"target_id"`
}
