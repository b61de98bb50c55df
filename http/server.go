// Package http serves the drought dashboard: the page, its JSON and image
// API, the command websocket and the metrics endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"droughtdash/dashboard"
	"droughtdash/locale"
	"droughtdash/monitoring"
	"droughtdash/store"
)

// Server is the dashboard HTTP server.
type Server struct {
	server *http.Server
	config ServerConfig
	hub    *Hub
	logger *zap.Logger
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// DefaultServerConfig returns the settings used when the config file is
// silent.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8050,
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{},
	}
}

// Deps are the collaborators the server routes to. Metrics is optional.
type Deps struct {
	Store      *store.Store
	Dispatcher *dashboard.Dispatcher
	Bundle     *locale.Bundle
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// NewServer builds the server and its middleware chain.
func NewServer(config ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	mux := http.NewServeMux()
	NewHandlers(deps.Store, deps.Dispatcher, deps.Bundle, logger).Register(mux)

	hub := NewHub(deps.Dispatcher, logger, config.AllowedOrigins)
	mux.Handle("GET /api/ws", hub)

	var observe func(string, int)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
		observe = deps.Metrics.ObserveRequest
		hub.ObserveSessions(deps.Metrics.SessionOpened, deps.Metrics.SessionClosed)
	}

	chain := Chain(
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggerMiddleware(logger, observe),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		TimeoutMiddleware(config.Timeout),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
			Handler:           chain(mux),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		config: config,
		hub:    hub,
		logger: logger,
	}
}

// Hub returns the websocket hub, for wiring reload notices.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until Stop. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and closes websocket sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	err := s.server.Shutdown(ctx)
	s.hub.Close()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
