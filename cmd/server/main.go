package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fieldvision/fieldvision/internal/api"
	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/dispatch"
	"github.com/fieldvision/fieldvision/internal/observability/metrics"
	"github.com/fieldvision/fieldvision/internal/presence"
	"github.com/fieldvision/fieldvision/internal/registry"
	"github.com/fieldvision/fieldvision/internal/services"
	"github.com/fieldvision/fieldvision/internal/store"
	"github.com/fieldvision/fieldvision/internal/utils"
	"github.com/fieldvision/fieldvision/pkg/file"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

var configPath string

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:          "fieldvision-server",
		Short:        "FieldVision back-office command dispatch server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(logger)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "Path to the configuration file")

	rootCmd.AddCommand(newTokenCmd(), newTargetCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("Command execution failed")
	}
}

func runServer(logger zerolog.Logger) error {
	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadServerConfig(configPath, fileClient)
	if err != nil {
		logger.Error().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		return err
	}

	secret, err := fileClient.ReadFileRaw(config.Auth.SecretFile)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read the auth secret")
		return err
	}
	verifier := auth.NewVerifier(bytes.TrimSpace(secret))

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(mqtt.Options{
		Broker:     config.MQTT.Broker,
		ClientID:   clientID,
		CACertPath: config.MQTT.CACertificate,
		Username:   config.MQTT.Username,
		Password:   config.MQTT.Password,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to initialize MQTT connection")
		return err
	}
	defer mqttClient.Disconnect(250)

	// Open storage per the configured driver
	var (
		db              *sql.DB
		commandStore    store.CommandStore
		targetDirectory directory.TargetDirectory
	)
	switch config.Storage.Driver {
	case "postgres":
		db, err = sql.Open("pgx", config.Storage.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open the database")
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to reach the database")
			return err
		}

		pgStore := store.NewPostgresStore(db)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to ensure the command schema")
			return err
		}
		pgDirectory := directory.NewPostgresDirectory(db)
		if err := pgDirectory.EnsureSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to ensure the directory schema")
			return err
		}
		commandStore, targetDirectory = pgStore, pgDirectory
	default:
		logger.Warn().Str("driver", config.Storage.Driver).Msg("Using the in-memory store, commands will not survive a restart")
		commandStore = store.NewMemoryStore()
		targetDirectory = directory.NewMemoryDirectory()
	}

	metrics.Init(db, logger)

	// Build the dispatch pipeline
	tracker := presence.NewTracker(logger)
	realtime := dispatch.NewRealtimeChannel(mqttClient, config.Dispatch.NotifyTopic, config.Dispatch.QOS,
		time.Duration(config.Dispatch.PushTimeoutSeconds)*time.Second, logger)
	durable := dispatch.NewDurableChannel(mqttClient, config.Dispatch.QueueTopic, config.Dispatch.QOS,
		time.Duration(config.Dispatch.EnqueueTimeoutSeconds)*time.Second, logger)
	dispatcher := dispatch.NewDispatcher(commandStore, tracker, realtime, durable, config.Dispatch.MaxAttempts, logger)

	issuer := services.NewIssuerService(
		time.Duration(config.Dispatch.ExpiryWindowMinutes)*time.Minute,
		config.Dispatch.MinAgentVersion,
		commandStore, targetDirectory, dispatcher, tracker, logger)
	fetcher := services.NewFetchService(commandStore, logger)
	acks := services.NewAckService(commandStore, logger)

	redispatchWorkers := config.Presence.RedispatchWorkers
	if redispatchWorkers <= 0 {
		redispatchWorkers = constants.DefaultRedispatchWorkers
	}
	workers := utils.NewWorkerPool(redispatchWorkers)
	defer workers.Shutdown()

	presenceService := services.NewPresenceService(
		config.Presence.HeartbeatTopic, config.Presence.OfflineTopic, config.Presence.LocationTopic,
		config.Presence.QOS,
		time.Duration(config.Presence.OfflineAfterSeconds)*time.Second,
		time.Duration(config.Presence.CheckIntervalSeconds)*time.Second,
		config.Presence.RequireHeartbeatToken,
		mqttClient, tracker, verifier, dispatcher, workers, logger)

	sweeper := services.NewSweeperService(
		time.Duration(config.Sweeper.IntervalSeconds)*time.Second,
		time.Duration(config.Sweeper.StaleAfterMinutes)*time.Minute,
		dispatcher.MaxAttempts(),
		commandStore, logger)

	apiServer := api.NewServer(config.Server.Address,
		time.Duration(config.Server.ShutdownTimeoutSeconds)*time.Second,
		issuer, fetcher, acks, tracker, targetDirectory, verifier, logger)

	// Register all services and start them in order
	serviceRegistry := registry.NewServiceRegistry(logger)
	serviceRegistry.Register("presence", presenceService)
	serviceRegistry.Register("sweeper", sweeper)
	serviceRegistry.Register("api", apiServer)

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
