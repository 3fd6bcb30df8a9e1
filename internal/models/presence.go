package models

import "time"

// PresenceStatus is a target's connectivity state as seen by the back office.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)

// HealthSnapshot carries the device vitals reported with each heartbeat.
type HealthSnapshot struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// PresenceRecord is the tracker's view of one target. A target nobody has
// heard from reads as offline.
type PresenceRecord struct {
	TargetID     string          `json:"target_id"`
	Status       PresenceStatus  `json:"status"`
	LastSeenAt   time.Time       `json:"last_seen_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	AgentVersion string          `json:"agent_version,omitempty"`
	Health       *HealthSnapshot `json:"health,omitempty"`
	LastFix      *LocationFix    `json:"last_fix,omitempty"`
}
