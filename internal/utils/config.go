package utils

import (
	"github.com/fieldvision/fieldvision/pkg/file"
)

// ServerConfig is the back-office configuration file layout.
type ServerConfig struct {
	Server struct {
		Address                string `yaml:"address"`                  // HTTP listen address, e.g. ":8080"
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"` // Grace period for in-flight requests
	} `yaml:"server"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
		Username      string `yaml:"username"`       // Broker username, empty disables credentials
		Password      string `yaml:"password"`       // Broker password
	} `yaml:"mqtt"`

	Storage struct {
		Driver      string `yaml:"driver"`       // "postgres" or "memory"
		DatabaseURL string `yaml:"database_url"` // Postgres DSN when driver is "postgres"
	} `yaml:"storage"`

	Auth struct {
		SecretFile string `yaml:"secret_file"` // Path to the shared HMAC secret
	} `yaml:"auth"`

	Dispatch struct {
		NotifyTopic           string `yaml:"notify_topic"`            // Real-time push topic root
		QueueTopic            string `yaml:"queue_topic"`             // Durable queue topic root
		QOS                   int    `yaml:"qos"`                     // MQTT QoS for command signals
		PushTimeoutSeconds    int    `yaml:"push_timeout_seconds"`    // Real-time publish wait bound
		EnqueueTimeoutSeconds int    `yaml:"enqueue_timeout_seconds"` // Durable publish wait bound
		MaxAttempts           int    `yaml:"max_attempts"`            // Delivery attempt budget per command
		ExpiryWindowMinutes   int    `yaml:"expiry_window_minutes"`   // Default command lifetime
		MinAgentVersion       string `yaml:"min_agent_version"`       // Advisory agent version floor
	} `yaml:"dispatch"`

	Presence struct {
		HeartbeatTopic        string `yaml:"heartbeat_topic"`        // Heartbeat topic root
		OfflineTopic          string `yaml:"offline_topic"`          // Last-will topic root
		LocationTopic         string `yaml:"location_topic"`         // Location fix topic root
		QOS                   int    `yaml:"qos"`                    // MQTT QoS for presence subscriptions
		OfflineAfterSeconds   int    `yaml:"offline_after_seconds"`  // Silence window before a target reads offline
		CheckIntervalSeconds  int    `yaml:"check_interval_seconds"` // Staleness scan cadence
		RedispatchWorkers     int    `yaml:"redispatch_workers"`     // Worker pool size for presence-edge replays
		RequireHeartbeatToken bool   `yaml:"require_heartbeat_token"`
	} `yaml:"presence"`

	Sweeper struct {
		IntervalSeconds   int `yaml:"interval_seconds"`    // Sweep cadence
		StaleAfterMinutes int `yaml:"stale_after_minutes"` // Age before no-expiry commands are collected
	} `yaml:"sweeper"`
}

// AgentConfig is the field-device agent configuration file layout.
type AgentConfig struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
		Username      string `yaml:"username"`       // Broker username, empty disables credentials
		Password      string `yaml:"password"`       // Broker password
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Backoffice struct {
		BaseURL               string `yaml:"base_url"`                // Back-office API base URL
		RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"` // Per-call HTTP timeout
	} `yaml:"backoffice"`

	Security struct {
		TokenFile  string `yaml:"token_file"`   // Path to the encrypted bearer token file
		AESKeyFile string `yaml:"aes_key_file"` // Path to the AES key file
	} `yaml:"security"`

	Services struct {
		Commands struct {
			NotifyTopic     string `yaml:"notify_topic"`     // Real-time push topic root
			QueueTopic      string `yaml:"queue_topic"`      // Durable queue topic root
			QOS             int    `yaml:"qos"`              // MQTT QoS for command subscriptions
			DebounceSeconds int    `yaml:"debounce_seconds"` // Resync debounce window
			DedupCapacity   int    `yaml:"dedup_capacity"`   // Processed-command cache size
			LedgerFile      string `yaml:"ledger_file"`      // Processed-command ledger path, empty disables
			StartCommand    string `yaml:"start_command"`    // Shell command starting the camera pipeline
			StopCommand     string `yaml:"stop_command"`     // Shell command stopping the camera pipeline
			ExecTimeout     int    `yaml:"exec_timeout"`     // Pipeline command timeout (in seconds)
		} `yaml:"commands"`

		Heartbeat struct {
			Topic        string `yaml:"topic"`         // Heartbeat topic root
			OfflineTopic string `yaml:"offline_topic"` // Last-will topic root
			Enabled      bool   `yaml:"enabled"`       // Enable/disable heartbeat service
			Interval     int    `yaml:"interval"`      // Interval between heartbeats (in seconds)
			QOS          int    `yaml:"qos"`           // MQTT QoS level for heartbeat messages
		} `yaml:"heartbeat"`

		Location struct {
			Topic             string `yaml:"topic"`           // Location topic root
			Enabled           bool   `yaml:"enabled"`         // Enable/disable location service
			Interval          int    `yaml:"interval"`        // Interval between fixes (in seconds)
			QOS               int    `yaml:"qos"`             // MQTT QoS level for location messages
			SensorBased       bool   `yaml:"sensor_based"`    // Use the GPS sensor instead of the geolocation API
			MapsAPIKey        string `yaml:"maps_api_key"`    // Google maps API Key
			GPSDeviceBaudRate int    `yaml:"gps_baud_rate"`   // Baud rate for the GPS sensor
			GPSDevicePort     string `yaml:"gps_device_port"` // Serial port where the GPS sensor is mounted
		} `yaml:"location"`
	} `yaml:"services"`
}

// LoadServerConfig loads the back-office YAML configuration.
func LoadServerConfig(filename string, fileClient file.FileOperations) (*ServerConfig, error) {
	var config ServerConfig
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadAgentConfig loads the agent YAML configuration.
func LoadAgentConfig(filename string, fileClient file.FileOperations) (*AgentConfig, error) {
	var config AgentConfig
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
