// Package http provides the HTTP server and API handlers for clipseek.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/clipseek/clipseek/internal/config"
	"github.com/clipseek/clipseek/internal/http/middleware"
)

// Server wraps the chi router and the huma API surface.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the HTTP server. The version string ends up in the
// OpenAPI document.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSOrigins
	}
	router.Use(middleware.CORSWithConfig(cors))
	router.Use(chimiddleware.Compress(5))

	humaConfig := huma.DefaultConfig("clipseek API", version)
	humaConfig.Info.Description = "Video transcript search API"

	api := humachi.New(router, humaConfig)

	return &Server{
		config: cfg,
		router: router,
		api:    api,
		logger: logger,
	}
}

// API returns the huma API for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the chi router for registering plain HTTP routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("starting HTTP server", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
