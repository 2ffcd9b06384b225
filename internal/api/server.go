// Package api provides the HTTP and WebSocket surface of the relay.
//
// It exposes identity administration (provision, delete, clear), command
// delivery to connected devices, telemetry report ingestion, and the
// device-facing WebSocket endpoint that runs the envelope protocol.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/simrelay/simrelay/internal/identity"
	"github.com/simrelay/simrelay/internal/infrastructure/config"
	"github.com/simrelay/simrelay/internal/infrastructure/logging"
	"github.com/simrelay/simrelay/internal/infrastructure/mqtt"
	"github.com/simrelay/simrelay/internal/relay"
	"github.com/simrelay/simrelay/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.ServerConfig
	WebSocket    config.WebSocketConfig
	Security     config.SecurityConfig
	Provisioning config.ProvisioningConfig
	Logger       *logging.Logger
	Pool         *identity.Pool
	Registry     *relay.Registry
	Recorder     *telemetry.Recorder
	MQTT         *mqtt.Client // optional command bridge; nil disables it
	Version      string
}

// Server is the relay's HTTP server. Created with New(), started with
// Start(), stopped with Close().
type Server struct {
	cfg      config.ServerConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	provCfg  config.ProvisioningConfig
	logger   *logging.Logger
	pool     *identity.Pool
	registry *relay.Registry
	recorder *telemetry.Recorder
	mqtt     *mqtt.Client
	version  string
	server   *http.Server
}

// New creates the API server. It is not listening until Start().
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("identity pool is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("connection registry is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("telemetry recorder is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WebSocket,
		secCfg:   deps.Security,
		provCfg:  deps.Provisioning,
		logger:   deps.Logger,
		pool:     deps.Pool,
		registry: deps.Registry,
		recorder: deps.Recorder,
		mqtt:     deps.MQTT,
		version:  deps.Version,
	}, nil
}

// Start wires the MQTT command bridge when configured and launches the
// HTTP listener in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	if s.mqtt != nil {
		if err := s.startCommandBridge(); err != nil {
			s.logger.Warn("mqtt command bridge not started", "error", err)
		}
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	s.logger.Info("api server started", "address", s.server.Addr, "version", s.version)
	return nil
}

// Close drains in-flight requests, then closes every registered device
// connection so their session loops exit.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("api server shutting down")
	err := s.server.Shutdown(ctx)
	s.registry.CloseAll()
	if err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
