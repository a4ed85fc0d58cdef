package graphql

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/graphql-go/relay"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/gridwalker/internal/http"
)

// Config holds GraphQL server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Server serves the schema on POST /graphql.
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger
	config *Config
}

// NewServer creates a GraphQL server over sim.
func NewServer(sim Simulator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if sim == nil {
		return nil, fmt.Errorf("simulator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 4000}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	schema, err := ParseSchema(sim)
	if err != nil {
		return nil, fmt.Errorf("parse graphql schema: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.POST("/graphql", echo.WrapHandler(&relay.Handler{Schema: schema}))

	return &Server{echo: e, logger: logger.Named("graphql"), config: cfg}, nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until ctx is cancelled. Returns http.ErrServerClosed on
// graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	return httpapi.Serve(ctx, s.echo, addr, s.config.ShutdownTimeout, s.logger)
}
