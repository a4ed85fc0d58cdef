// Package simulator serializes access to the dispatcher and grid so that
// every transport shares one robot.
package simulator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	"github.com/fyrsmithlabs/gridwalker/internal/logging"
)

// Service is the single entry point transports use to run instructions.
type Service struct {
	mu      sync.Mutex
	disp    *dispatch.Dispatcher
	history audit.History
	metrics *Metrics
	logger  *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records command counters and latency on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHistory sets the audit history reader. Without one, History returns an
// empty list.
func WithHistory(h audit.History) Option {
	return func(s *Service) { s.history = h }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("simulator")
		}
	}
}

// New wraps d.
func New(d *dispatch.Dispatcher, opts ...Option) *Service {
	s := &Service{
		disp:   d,
		logger: logging.Wrap(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle runs one raw instruction and returns its result lines.
func (s *Service) Handle(ctx context.Context, raw string) []string {
	return s.Execute(ctx, raw).Lines
}

// Execute runs one raw instruction and returns the full result.
func (s *Service) Execute(ctx context.Context, raw string) dispatch.Result {
	start := time.Now()

	s.mu.Lock()
	res := s.disp.Handle(ctx, raw)
	s.mu.Unlock()

	if s.metrics != nil {
		kind := res.Kind.String()
		s.metrics.CommandsTotal.WithLabelValues(kind).Inc()
		s.metrics.CommandDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if res.Lost {
			s.metrics.RobotLostTotal.Inc()
		}
	}
	if res.Lost {
		s.logger.Info(ctx, "robot lost",
			zap.String("invocation.id", res.InvocationID),
			zap.String("result", res.Lines[len(res.Lines)-1]),
		)
	}
	return res
}

// Robot returns the robot's stored position.
func (s *Service) Robot() grid.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disp.Grid().Robot()
}

// Size returns the grid dimensions.
func (s *Service) Size() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.disp.Grid()
	return g.Width(), g.Height()
}

// Render draws the grid.
func (s *Service) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disp.Grid().Render()
}

// Snapshot is a consistent view of the robot and the grid.
type Snapshot struct {
	Robot  grid.Position
	Width  int
	Height int
	Grid   string
}

// Snapshot reads the robot, the grid size and the drawing under one lock.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.disp.Grid()
	return Snapshot{
		Robot:  g.Robot(),
		Width:  g.Width(),
		Height: g.Height(),
		Grid:   g.Render(),
	}
}

// Help returns the command usage lines.
func (s *Service) Help() []string {
	return s.disp.Help()
}

// Prompt returns the interactive prompt label.
func (s *Service) Prompt() string {
	return s.disp.Prompt()
}

// History returns up to limit audited invocations, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]audit.Invocation, error) {
	if s.history == nil {
		return []audit.Invocation{}, nil
	}
	return s.history.History(ctx, limit)
}
