package constants

import "time"

const (
	// DefaultMaxDeliveryAttempts caps how many times a command may be handed
	// to the delivery channels before it is surfaced to operators.
	DefaultMaxDeliveryAttempts = 3

	// DefaultExpiryWindow is the lifetime applied to a command when the
	// caller does not pick one.
	DefaultExpiryWindow = 5 * time.Minute

	// DefaultPushTimeout bounds a single real-time publish. Anything longer
	// than a couple of seconds means the session is effectively dead.
	DefaultPushTimeout = 3 * time.Second

	// DefaultEnqueueTimeout bounds the durable fallback publish.
	DefaultEnqueueTimeout = 10 * time.Second

	// DefaultRedispatchWorkers sizes the pool that replays outstanding
	// commands when a target comes back online.
	DefaultRedispatchWorkers = 4

	// DefaultRedispatchTimeout bounds one target's presence-edge replay.
	DefaultRedispatchTimeout = 30 * time.Second
)

// Delivery channel names reported in dispatch outcomes.
const (
	ChannelRealtime = "realtime"
	ChannelDurable  = "durable"
)

// Delivery verdicts returned to issuers.
const (
	// DeliveryAccepted indicates the target took the signal over the
	// real-time channel.
	DeliveryAccepted = "accepted"
	// DeliveryQueued indicates the signal was parked on the durable channel
	// for the target to pick up later.
	DeliveryQueued = "queued"
	// DeliveryFailed indicates both channels failed; the command stays
	// pending and counts one attempt.
	DeliveryFailed = "failed"
)
