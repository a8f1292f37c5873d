// Package server exposes the dashboard over HTTP: the JSON snapshot, the
// live update streams, the webhook receiver and a server-rendered board.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/broadcast"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/metrics"
)

// DashboardBuilder produces a fresh dashboard. *pipeline.Pipeline implements it.
type DashboardBuilder interface {
	Build(ctx context.Context) (*domain.Dashboard, error)
}

// Server provides the dashboard HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	builder  DashboardBuilder
	hub      *broadcast.Hub
	logger   *zap.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	limiters *limiterSet

	webhookSecret   func() config.Secret
	refreshInterval time.Duration
	now             func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records webhook results and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithWebhookSecret overrides where the webhook secret is read from. It is
// called on every webhook request.
func WithWebhookSecret(fn func() config.Secret) Option {
	return func(s *Server) { s.webhookSecret = fn }
}

// WithWebhookRateLimit sets the per-client webhook rate (requests per second) and burst.
func WithWebhookRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) { s.limiters = newLimiterSet(perSecond, burst) }
}

// WithRefreshInterval sets how often the HTML board reloads itself.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Server) { s.refreshInterval = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new HTTP server.
func NewServer(builder DashboardBuilder, hub *broadcast.Hub, logger *zap.Logger, opts ...Option) (*Server, error) {
	if builder == nil {
		return nil, errors.New("dashboard builder cannot be nil")
	}
	if hub == nil {
		return nil, errors.New("broadcast hub cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}

	s := &Server{
		builder:  builder,
		hub:      hub,
		logger:   logger,
		limiters: newLimiterSet(1, 10),
		webhookSecret: func() config.Secret {
			return config.WebhookSecret(os.LookupEnv)
		},
		refreshInterval: time.Minute,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	renderer, err := newRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.echo = e
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleBoard)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/projects", s.handleProjects)
	s.echo.GET("/events", s.handleEvents)
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.POST("/webhook", s.handleWebhook)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Connections: s.hub.Len()})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server. Open /events and /ws streams
// are ended first so that they do not hold the shutdown until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server", zap.Int("streams", s.hub.Len()))
	s.hub.Close()
	return s.echo.Shutdown(ctx)
}
