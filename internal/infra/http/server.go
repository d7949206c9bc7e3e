package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openctemio/console/internal/config"
	"github.com/openctemio/console/internal/infra/http/middleware"
	"github.com/openctemio/console/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	httpServer   *http.Server
	router       Router
	config       *config.Config
	logger       *logger.Logger
	cleanupFuncs []func()
}

// ServerOption is a function that configures the server.
type ServerOption func(*Server)

// WithRouter sets a custom router implementation.
func WithRouter(r Router) ServerOption {
	return func(s *Server) {
		s.router = r
	}
}

// NewServer creates the HTTP server and installs the global middleware chain.
func NewServer(cfg *config.Config, log *logger.Logger, opts ...ServerOption) *Server {
	s := &Server{
		config: cfg,
		logger: log.With("component", "http"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.router == nil {
		s.router = NewChiRouter()
	}

	rateLimit, stopRateLimit := middleware.RateLimitWithStop(&cfg.RateLimit, s.logger)
	s.cleanupFuncs = append(s.cleanupFuncs, stopRateLimit)

	loggerCfg := middleware.DefaultLoggerConfig()
	if !cfg.Log.SkipHealthLogs {
		loggerCfg.SkipPaths = nil
	}

	// Order matters: recovery outermost, decompression before the body limit.
	s.router.Use(
		middleware.Recovery(s.logger, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{HSTSEnabled: cfg.IsProduction()}),
		middleware.CORS(&cfg.CORS),
		middleware.Decompress(middleware.DefaultDecompressConfig()),
		middleware.BodyLimit(cfg.Server.MaxBodySize),
		rateLimit,
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.Metrics(),
		middleware.Logger(s.logger, loggerCfg),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Router returns the router for registering handlers.
func (s *Server) Router() Router {
	return s.router
}

// OnShutdown registers a cleanup function run before the listener closes.
func (s *Server) OnShutdown(fn func()) {
	s.cleanupFuncs = append(s.cleanupFuncs, fn)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	for _, cleanup := range s.cleanupFuncs {
		cleanup()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}
