package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldvision/fieldvision/internal/agent"
	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/health"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/registry"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/encryption"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/fieldvision/fieldvision/pkg/identity"
	"github.com/fieldvision/fieldvision/pkg/jwt"
	"github.com/fieldvision/fieldvision/pkg/location"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

var configPath string

var errMissingTargetID = errors.New("device identity file carries no target id")

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:          "fieldvision-agent",
		Short:        "FieldVision field-device agent",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(logger)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/agent.yaml", "Path to the configuration file")

	rootCmd.AddCommand(newTokenSetCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("Command execution failed")
	}
}

func runAgent(logger zerolog.Logger) error {
	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadAgentConfig(configPath, fileClient)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return err
	}

	// Load the device identity
	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		logger.Error().Err(err).Msg("Failed to load device information")
		return err
	}
	targetID := deviceInfo.GetTargetID()
	if targetID == "" {
		logger.Error().Str("path", config.Identity.DeviceFile).Msg("Device identity file carries no target id")
		return errMissingTargetID
	}
	logger.Info().Str("target_id", targetID).Msg("Loaded device identity")

	// Bearer token, encrypted at rest
	encryptionManager := encryption.NewEncryptionManager(fileClient)
	if err := encryptionManager.Initialize(config.Security.AESKeyFile); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize the encryption manager")
		return err
	}
	tokenManager := jwt.NewTokenManager(config.Security.TokenFile, fileClient, encryptionManager)
	if err := tokenManager.Initialize(); err != nil {
		logger.Error().Err(err).Msg("Failed to load the bearer token")
		return err
	}
	if tokenManager.GetToken() == "" {
		logger.Warn().Msg("No usable bearer token, back-office calls will fail until 'token set' provisions one")
	}

	commands := config.Services.Commands
	backoffice := agent.NewHTTPClient(config.Backoffice.BaseURL,
		time.Duration(config.Backoffice.RequestTimeoutSeconds)*time.Second, tokenManager, logger)
	media := agent.NewExecMediaController(commands.StartCommand, commands.StopCommand,
		time.Duration(commands.ExecTimeout)*time.Second, logger)
	dedup := agent.NewDedupCache(commands.DedupCapacity)

	var ledger *agent.Ledger
	if commands.LedgerFile != "" {
		ledger = agent.NewLedger(commands.LedgerFile, fileClient, logger)
	}

	// The MQTT connection carries a last-will so the back office learns about
	// ungraceful drops straight from the broker.
	offlineTopic := config.Services.Heartbeat.OfflineTopic
	if offlineTopic == "" {
		offlineTopic = constants.DefaultPresenceOfflineTopic
	}
	willPayload, err := json.Marshal(models.OfflineNotice{TargetID: targetID})
	if err != nil {
		return err
	}

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient)
	handler := agent.NewCommandHandler(commands.NotifyTopic, commands.QueueTopic, commands.QOS,
		time.Duration(commands.DebounceSeconds)*time.Second,
		mqttClient, deviceInfo, backoffice, media, dedup, ledger, logger)

	if err := mqttClient.Initialize(mqtt.Options{
		Broker:       config.MQTT.Broker,
		ClientID:     clientID,
		CACertPath:   config.MQTT.CACertificate,
		Username:     config.MQTT.Username,
		Password:     config.MQTT.Password,
		OnConnect:    handler.OnConnect,
		WillTopic:    offlineTopic + "/" + targetID,
		WillPayload:  willPayload,
		WillQOS:      byte(config.Services.Heartbeat.QOS),
		WillRetained: false,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize MQTT connection")
		return err
	}
	defer mqttClient.Disconnect(250)

	// Register all services based on the configuration
	serviceRegistry := registry.NewServiceRegistry(logger)
	serviceRegistry.Register("commands", handler)

	if config.Services.Heartbeat.Enabled {
		heartbeat := agent.NewHeartbeatService(config.Services.Heartbeat.Topic,
			time.Duration(config.Services.Heartbeat.Interval)*time.Second,
			config.Services.Heartbeat.QOS,
			deviceInfo, mqttClient, tokenManager, health.NewCollector(logger), logger)
		serviceRegistry.Register("heartbeat", heartbeat)
	}

	if config.Services.Location.Enabled {
		provider, err := buildLocationProvider(config, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to build the location provider")
			return err
		}
		locationService := agent.NewLocationService(config.Services.Location.Topic,
			time.Duration(config.Services.Location.Interval)*time.Second,
			config.Services.Location.QOS,
			deviceInfo, mqttClient, provider, logger)
		serviceRegistry.Register("location", locationService)
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to start services")
		return err
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	return serviceRegistry.StopServices()
}

// buildLocationProvider picks the GPS sensor or the geolocation API per the
// configuration.
func buildLocationProvider(config *utils.AgentConfig, logger zerolog.Logger) (location.Provider, error) {
	loc := config.Services.Location
	if loc.SensorBased {
		logger.Info().Str("port", loc.GPSDevicePort).Msg("Using the GPS sensor location provider")
		return location.NewDeviceSensorProvider(loc.GPSDevicePort, loc.GPSDeviceBaudRate), nil
	}
	logger.Info().Msg("Using the Google geolocation provider")
	return location.NewGoogleGeolocationProvider(loc.MapsAPIKey)
}
