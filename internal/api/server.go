// Package api provides the HTTP surface of IoThink Core.
//
// It exposes the device lifecycle endpoints, the admin auth flow, the MQTT
// broker hook endpoints (legacy and token variants), and a narrow sensor
// liveness read from the external telemetry store.
//
// The server follows the same lifecycle pattern as the infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/euklyde/iothink-core/internal/auth"
	"github.com/euklyde/iothink-core/internal/bridge"
	"github.com/euklyde/iothink-core/internal/device"
	"github.com/euklyde/iothink-core/internal/infrastructure/config"
	"github.com/euklyde/iothink-core/internal/infrastructure/influxdb"
	"github.com/euklyde/iothink-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SensorReader reads field liveness from the external telemetry store.
// Satisfied by *influxdb.Client; nil means the store is not configured.
type SensorReader interface {
	SensorStatus(ctx context.Context, deviceID string) (*influxdb.SensorStatus, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Devices  *device.Service
	Bridge   *bridge.Bridge
	Admins   auth.AdminRepository
	Sensors  SensorReader // optional; nil disables /sensors
	Version  string
}

// Server is the HTTP API server for IoThink Core.
type Server struct {
	cfg     config.APIConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	devices *device.Service
	bridge  *bridge.Bridge
	admins  auth.AdminRepository
	sensors SensorReader
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device service is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("auth bridge is required")
	}
	if deps.Admins == nil {
		return nil, fmt.Errorf("admin repository is required")
	}

	return &Server{
		cfg:     deps.Config,
		secCfg:  deps.Security,
		logger:  deps.Logger,
		devices: deps.Devices,
		bridge:  deps.Bridge,
		admins:  deps.Admins,
		sensors: deps.Sensors,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
