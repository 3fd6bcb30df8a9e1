package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/constants"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/pkg/identity"
	"github.com/fieldvision/fieldvision/pkg/location"
	"github.com/fieldvision/fieldvision/pkg/mqtt"
)

// LocationService periodically publishes the field unit's position for the
// supervisor map. The provider is either the serial GPS sensor or the
// geolocation API fallback.
type LocationService struct {
	// Configuration fields
	pubTopic string
	interval time.Duration
	qos      int

	// Dependencies
	deviceInfo       identity.DeviceInfoInterface
	mqttClient       mqtt.MQTTClient
	locationProvider location.Provider
	logger           zerolog.Logger

	// Internal state management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLocationService creates a new LocationService instance with the provided configuration.
func NewLocationService(pubTopic string, interval time.Duration, qos int, deviceInfo identity.DeviceInfoInterface,
	mqttClient mqtt.MQTTClient, locationProvider location.Provider, logger zerolog.Logger) *LocationService {

	if pubTopic == "" {
		pubTopic = constants.DefaultLocationTopic
	}

	return &LocationService{
		pubTopic:         pubTopic,
		interval:         interval,
		qos:              qos,
		deviceInfo:       deviceInfo,
		mqttClient:       mqttClient,
		locationProvider: locationProvider,
		logger:           logger,
	}
}

// Start initiates the LocationService, periodically publishing location data.
func (l *LocationService) Start() error {
	if l.ctx != nil {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := l.publishCurrentLocation(); err != nil {
					l.logger.Error().Err(err).Msg("Failed to publish current location")
				}

			case <-l.ctx.Done():
				l.logger.Info().Msg("LocationService stopping gracefully")
				return
			}
		}
	}()

	l.logger.Info().
		Str("topic", l.topic()).
		Dur("interval", l.interval).
		Int("qos", l.qos).
		Msg("LocationService started successfully")
	return nil
}

// Stop gracefully stops the LocationService.
func (l *LocationService) Stop() error {
	if l.ctx == nil {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	l.cancel()
	l.wg.Wait()

	l.ctx = nil
	l.cancel = nil

	l.logger.Info().Msg("LocationService stopped successfully")
	return nil
}

// publishCurrentLocation fetches the current location and publishes it.
func (l *LocationService) publishCurrentLocation() error {
	ctx, cancel := context.WithTimeout(l.ctx, l.interval)
	defer cancel()

	fix, err := l.locationProvider.GetLocation(ctx)
	if err != nil {
		return err
	}

	locationMessage := models.LocationFix{
		TargetID:  l.deviceInfo.GetTargetID(),
		Timestamp: time.Now().UTC(),
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
	}

	payload, err := json.Marshal(locationMessage)
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to serialize location message")
		return err
	}

	token := l.mqttClient.Publish(l.topic(), byte(l.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		l.logger.Error().Err(err).Str("topic", l.topic()).Msg("Failed to publish location message")
		return err
	}

	l.logger.Debug().
		Float64("latitude", locationMessage.Latitude).
		Float64("longitude", locationMessage.Longitude).
		Msg("Location published successfully")
	return nil
}

// topic is the per-device location topic.
func (l *LocationService) topic() string {
	return l.pubTopic + "/" + l.deviceInfo.GetTargetID()
}
