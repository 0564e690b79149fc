package api

import (
	"context"
	"net/http"
	"time"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/api/handlers"
	"example.com/eventwave/internal/api/middleware"
	"example.com/eventwave/internal/metrics"
	"example.com/eventwave/internal/preferences"
	"example.com/eventwave/internal/services"
	"example.com/eventwave/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultShutdownTimeout = 5 * time.Second

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server

	eventService *services.EventService
	browser      *services.Browser
	prefs        *preferences.Preferences
	metrics      *metrics.Metrics
	tracer       tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, eventService *services.EventService, browser *services.Browser,
	prefs *preferences.Preferences, metricsCollector *metrics.Metrics, tracer tracing.Tracer) *Server {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	server := &Server{
		config:       cfg,
		eventService: eventService,
		browser:      browser,
		prefs:        prefs,
		metrics:      metricsCollector,
		tracer:       tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(s.metrics))

	if app := s.tracer.Application(); app != nil {
		router.Use(middleware.NewRelic(app))
	}

	handlers.NewMetricsHandler(s.metrics).RegisterRoutes(router, s.config.Server.MetricsEnabled)

	api := router.Group("/api/v1")
	handlers.NewEventHandler(s.eventService, s.browser, s.tracer).RegisterRoutes(api)
	handlers.NewSettingsHandler(s.browser, s.prefs).RegisterRoutes(api)

	return router
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
