package models

import (
	"time"
)

// LocationFix is one GPS or geolocation report from a field unit.
type LocationFix struct {
	TargetID  string    `json:"target_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
}
