package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/presence"
	"github.com/fieldvision/fieldvision/internal/services"
)

// Server is the back-office HTTP surface: command issuance for operators,
// pending fetch and acknowledgment for devices, presence lookups, health and
// metrics.
type Server struct {
	// Configuration fields
	address         string
	shutdownTimeout time.Duration

	// Dependencies
	issuer    *services.IssuerService
	fetcher   *services.FetchService
	acks      *services.AckService
	tracker   *presence.Tracker
	directory directory.TargetDirectory
	verifier  TokenVerifier
	logger    zerolog.Logger

	// Internal state management
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the router. Nothing listens until Start.
func NewServer(address string, shutdownTimeout time.Duration,
	issuer *services.IssuerService, fetcher *services.FetchService, acks *services.AckService,
	tracker *presence.Tracker, targetDirectory directory.TargetDirectory,
	verifier TokenVerifier, logger zerolog.Logger) *Server {

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	s := &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		issuer:          issuer,
		fetcher:         fetcher,
		acks:            acks,
		tracker:         tracker,
		directory:       targetDirectory,
		verifier:        verifier,
		logger:          logger,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", AuthRequired(verifier))
	{
		v1.POST("/commands", RequireRoles(auth.RoleSupervisor, auth.RoleAdmin), s.issueCommand)
		v1.GET("/commands/pending", RequireRoles(auth.RoleDevice), s.pendingCommands)
		v1.POST("/commands/ack", RequireRoles(auth.RoleDevice), s.acknowledgeCommands)
		v1.GET("/targets/:id/presence", RequireRoles(auth.RoleSupervisor, auth.RoleAdmin), s.targetPresence)
	}

	s.router = router
	return s
}

// Router exposes the handler tree, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background. Bind failures are
// reported synchronously.
func (s *Server) Start() error {
	if s.httpServer != nil {
		s.logger.Warn().Msg("API server is already running")
		return errors.New("api server is already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error().Err(err).Str("address", s.address).Msg("Failed to bind API listener")
		return err
	}

	s.httpServer = &http.Server{Handler: s.router}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server terminated unexpectedly")
		}
	}()

	s.logger.Info().Str("address", s.address).Msg("API server started successfully")
	return nil
}

// Stop drains in-flight requests within the shutdown timeout.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		s.logger.Warn().Msg("API server is not running")
		return errors.New("api server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	if err != nil {
		s.logger.Error().Err(err).Msg("API server shutdown failed")
		return err
	}

	s.logger.Info().Msg("API server stopped successfully")
	return nil
}
