// Package http provides the REST API for gridwalker.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/logging"
	"github.com/fyrsmithlabs/gridwalker/internal/simulator"
)

// Simulator is the instruction entry point the server exposes.
type Simulator interface {
	Execute(ctx context.Context, raw string) dispatch.Result
	Snapshot() simulator.Snapshot
	History(ctx context.Context, limit int) ([]audit.Invocation, error)
}

// Server provides HTTP endpoints for gridwalker.
type Server struct {
	echo     *echo.Echo
	sim      Simulator
	logger   *zap.Logger
	config   *Config
	gatherer prometheus.Gatherer
	metrics  *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64
	Version   string
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHTTPMetrics records per-request OTEL metrics.
func WithHTTPMetrics(m *HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer creates a new HTTP server.
func NewServer(sim Simulator, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if sim == nil {
		return nil, fmt.Errorf("simulator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		sim:    sim,
		logger: logger.Named("http"),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger)
	if s.metrics != nil {
		e.Use(s.metrics.MetricsMiddleware())
	}
	if cfg.RateLimit > 0 {
		e.Use(rateLimiter(cfg.RateLimit))
	}

	s.registerRoutes()

	return s, nil
}

// requestLogger logs every request and carries the request ID into the
// request context for downstream log lines.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		req := c.Request()
		c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), reqID)))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
		return nil
	}
}

// rateLimiter applies a token bucket per client IP. Bursts of up to twice the
// rate are allowed.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/", s.handleRender)
	s.echo.GET("/command/:args", s.handleCommandPath)

	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/commands", s.handleCommand)
	v1.GET("/robot", s.handleRobot)
	v1.GET("/invocations", s.handleInvocations)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "gridwalker",
		Version: s.config.Version,
	})
}

// handleRender returns the grid drawing as plain text.
func (s *Server) handleRender(c echo.Context) error {
	return c.String(http.StatusOK, s.sim.Snapshot().Grid)
}

// handleCommandPath runs the instruction carried in the path, e.g.
// GET /command/c%201%201%20E.
func (s *Server) handleCommandPath(c echo.Context) error {
	raw := c.Param("args")
	if unescaped, err := url.PathUnescape(raw); err == nil {
		raw = unescaped
	}
	return s.execute(c, raw)
}

// handleCommand runs the instruction in the request body.
func (s *Server) handleCommand(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid command request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return s.execute(c, req.Instruction)
}

func (s *Server) execute(c echo.Context, raw string) error {
	res := s.sim.Execute(c.Request().Context(), raw)
	return c.JSON(http.StatusOK, CommandResponse{
		Results:      res.Lines,
		Lost:         res.Lost,
		InvocationID: res.InvocationID,
	})
}

// handleRobot returns the robot's position and the grid size.
func (s *Server) handleRobot(c echo.Context) error {
	snap := s.sim.Snapshot()
	return c.JSON(http.StatusOK, RobotResponse{
		X:       snap.Robot.X,
		Y:       snap.Robot.Y,
		Heading: snap.Robot.Heading.String(),
		Width:   snap.Width,
		Height:  snap.Height,
	})
}

// handleInvocations returns recent audited invocations, newest first.
func (s *Server) handleInvocations(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	invocations, err := s.sim.History(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read invocation history")
	}
	return c.JSON(http.StatusOK, InvocationsResponse{Invocations: invocations})
}

// Echo returns the underlying Echo instance for registering additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the server and blocks until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
//
// Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return Serve(ctx, s.echo, addr, s.config.ShutdownTimeout, s.logger)
}

// Serve runs e on addr until ctx is cancelled and then shuts it down within
// shutdownTimeout. It returns http.ErrServerClosed after a graceful shutdown.
func Serve(ctx context.Context, e *echo.Echo, addr string, shutdownTimeout time.Duration, logger *zap.Logger) error {
	logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down http server", zap.String("addr", addr))
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
