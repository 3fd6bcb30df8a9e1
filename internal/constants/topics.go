package constants

// Default MQTT topic roots. The target id is appended as the final segment,
// so the server subscribes with a "/+" wildcard and agents with their own id.
const (
	DefaultCommandNotifyTopic     = "fieldvision/commands/notify"
	DefaultCommandQueueTopic      = "fieldvision/commands/queue"
	DefaultPresenceHeartbeatTopic = "fieldvision/presence/heartbeat"
	DefaultPresenceOfflineTopic   = "fieldvision/presence/offline"
	DefaultLocationTopic          = "fieldvision/location"
)
