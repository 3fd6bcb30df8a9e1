package constants

import "time"

const (
	// DefaultOfflineAfter is how long a target may stay silent before the
	// staleness check flips it offline, covering lost broker wills.
	DefaultOfflineAfter = 90 * time.Second

	// DefaultStalenessCheckInterval is how often the presence service scans
	// for silent targets.
	DefaultStalenessCheckInterval = 30 * time.Second

	// DefaultHeartbeatInterval is the agent-side heartbeat cadence.
	DefaultHeartbeatInterval = 30 * time.Second
)

const (
	// DefaultSweepInterval is how often the sweeper scans storage.
	DefaultSweepInterval = time.Minute

	// DefaultStaleAfter is the age past which an unacknowledged command with
	// no expiry set is garbage-collected by the sweeper.
	DefaultStaleAfter = 30 * time.Minute
)
