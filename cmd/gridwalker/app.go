package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/gridwalker/internal/audit"
	"github.com/fyrsmithlabs/gridwalker/internal/config"
	"github.com/fyrsmithlabs/gridwalker/internal/dispatch"
	"github.com/fyrsmithlabs/gridwalker/internal/graphql"
	"github.com/fyrsmithlabs/gridwalker/internal/grid"
	httpapi "github.com/fyrsmithlabs/gridwalker/internal/http"
	"github.com/fyrsmithlabs/gridwalker/internal/logging"
	"github.com/fyrsmithlabs/gridwalker/internal/prompt"
	"github.com/fyrsmithlabs/gridwalker/internal/simulator"
	"github.com/fyrsmithlabs/gridwalker/internal/telemetry"
)

// app holds the wired simulator and everything that must be closed with it.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	registry  *prometheus.Registry
	recorder  *audit.Recorder
	sim       *simulator.Service
}

// newApp initializes logging, telemetry, audit sinks and the simulator.
// Logs go to logWriter so they never mix with instruction results on stdout.
func newApp(ctx context.Context, cfg *config.Config, logWriter io.Writer) (*app, error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, logWriter)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	for _, reason := range tel.Degraded() {
		logger.Warn(ctx, "telemetry pipeline disabled", zap.String("reason", reason))
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		registry:  prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := simulator.NewMetrics(a.registry)

	sinks, history, err := a.initAuditSinks(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	recOpts := []audit.Option{
		audit.WithLogger(logger.Underlying()),
		audit.WithDropHook(metrics.AuditDropped.Inc),
	}
	if cfg.Audit.Async {
		recOpts = append(recOpts, audit.WithAsync(cfg.Audit.BufferSize))
	}
	a.recorder = audit.NewRecorder(sinks, recOpts...)

	g, err := grid.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to create grid: %w", err)
	}

	d := dispatch.New(g, a.recorder,
		dispatch.WithLogger(logger),
		dispatch.WithTracer(tel.Tracer(dispatch.InstrumentationName)),
	)
	a.sim = simulator.New(d,
		simulator.WithMetrics(metrics),
		simulator.WithHistory(history),
		simulator.WithLogger(logger),
	)

	logger.Info(ctx, "simulator initialized",
		zap.Int("width", cfg.Grid.Width),
		zap.Int("height", cfg.Grid.Height),
		zap.String("audit_store", cfg.Audit.Store),
		zap.Bool("audit_nats", cfg.Audit.NATSURL != ""),
		zap.Bool("audit_async", cfg.Audit.Async))

	return a, nil
}

func initLogger(cfg *config.Config, w io.Writer) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output.Writer = w
	return logging.NewLogger(logCfg, nil)
}

// initAuditSinks opens the audit store and, when configured, the NATS
// publisher. The store doubles as the history reader. The returned sinks
// are owned by the recorder, which closes them.
func (a *app) initAuditSinks(ctx context.Context) ([]audit.Sink, audit.History, error) {
	var (
		sinks   []audit.Sink
		history audit.History
	)

	switch a.cfg.Audit.Store {
	case config.AuditStoreMemory:
		store := audit.NewMemoryStore()
		sinks = append(sinks, store)
		history = store
	default:
		store, err := audit.OpenSQLite(ctx, a.cfg.Audit.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		sinks = append(sinks, store)
		history = store
	}

	if a.cfg.Audit.NATSURL != "" {
		nc, err := audit.DialNATS(a.cfg.Audit.NATSURL, a.cfg.Audit.NATSToken.Value(), a.logger.Underlying().Named("nats"))
		if err != nil {
			closeSinks(sinks)
			return nil, nil, fmt.Errorf("failed to connect audit publisher: %w", err)
		}
		sinks = append(sinks, audit.NewNATSPublisher(nc, a.cfg.Audit.SubjectPrefix))
	}

	return sinks, history, nil
}

// closeSinks releases sinks that never reached a recorder.
func closeSinks(sinks []audit.Sink) {
	for _, s := range sinks {
		if c, ok := s.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// Close flushes pending audit events through the recorder, which also
// closes the sinks, then shuts down telemetry.
func (a *app) Close(ctx context.Context) {
	if a.recorder != nil {
		if err := a.recorder.Close(ctx); err != nil {
			a.logger.Warn(ctx, "audit recorder close failed", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// runServe dispatches the boot instruction, then runs the servers and the
// prompt until the context is cancelled or the prompt exits.
func runServe(ctx context.Context, opts *rootOptions, args []string, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadWithFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		a.Close(closeCtx)
	}()

	if len(args) > 0 {
		for _, line := range a.sim.Handle(ctx, strings.Join(args, " ")) {
			fmt.Fprintln(out, line)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	started := 0

	if !opts.noServer {
		srv, err := a.restServer()
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreClosed(srv.Start(gctx)) })
		started++

		if cfg.GraphQL.Enabled && !opts.noGraphQL {
			gql, err := graphql.NewServer(a.sim, a.logger.Underlying(), &graphql.Config{
				Host:            cfg.Server.Host,
				Port:            cfg.GraphQL.Port,
				ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
			})
			if err != nil {
				return fmt.Errorf("failed to create graphql server: %w", err)
			}
			g.Go(func() error { return ignoreClosed(gql.Start(gctx)) })
			started++
		}
	}

	if cfg.Prompt.Enabled && !opts.noPrompt && isTerminal(in) {
		g.Go(func() error {
			// Quitting the prompt stops the daemon.
			defer cancel()
			return prompt.Run(gctx, a.sim, in, out)
		})
		started++
	}

	if started == 0 {
		return nil
	}

	a.logger.Info(ctx, "gridwalker started",
		zap.String("version", version),
		zap.Bool("rest", !opts.noServer),
		zap.Int("port", cfg.Server.Port))

	err = g.Wait()
	a.logger.Info(context.Background(), "gridwalker stopped")
	return err
}

func (a *app) restServer() (*httpapi.Server, error) {
	srv, err := httpapi.NewServer(a.sim, a.logger.Underlying(), &httpapi.Config{
		Host:            a.cfg.Server.Host,
		Port:            a.cfg.Server.Port,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration(),
		RateLimit:       a.cfg.Server.RateLimit,
		Version:         version,
	},
		httpapi.WithGatherer(a.registry),
		httpapi.WithHTTPMetrics(httpapi.NewHTTPMetrics(a.logger.Underlying())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}
	return srv, nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
