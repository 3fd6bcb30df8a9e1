package constants

import "time"

const (
	// DefaultDedupCapacity bounds the agent's processed-command cache. The
	// oldest entry is evicted once the cache is full.
	DefaultDedupCapacity = 256

	// DefaultResyncDebounce is how long the agent waits after a trigger
	// before fetching, so signal storms collapse into one round trip.
	DefaultResyncDebounce = 2 * time.Second

	// DefaultMediaExecTimeout bounds one camera pipeline start or stop.
	DefaultMediaExecTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds one back-office HTTP call.
	DefaultRequestTimeout = 15 * time.Second
)

// AgentVersion is reported in heartbeats and checked against the back
// office's advisory minimum. Bump on release.
const AgentVersion = "1.2.0"
