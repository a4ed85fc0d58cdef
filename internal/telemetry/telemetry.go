package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the OTLP trace and metric pipelines of a gridwalker
// process. Dispatcher spans go through Tracer; HTTP request counters reach
// the meter provider through the otel globals that New installs.
type Telemetry struct {
	shutdownTimeout time.Duration

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	// degraded names each pipeline whose exporter could not be built.
	degraded []string
}

// New builds the pipelines described by cfg. A disabled config yields an
// instance that hands out the global no-op tracer. An exporter that cannot
// be created leaves its pipeline on the no-op provider and is reported by
// Degraded rather than failing startup.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{shutdownTimeout: cfg.Shutdown.Timeout.Duration()}
	if !cfg.Enabled {
		return t, nil
	}

	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, o.traceExporter); err != nil {
		t.degraded = append(t.degraded, fmt.Sprintf("traces: %v", err))
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res, o.metricExporter); err != nil {
		t.degraded = append(t.degraded, fmt.Sprintf("metrics: %v", err))
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	return t, nil
}

// Degraded lists the pipelines that fell back to no-op, with the cause.
func (t *Telemetry) Degraded() []string {
	return t.degraded
}

// Tracer returns a tracer for the instrumentation scope name.
func (t *Telemetry) Tracer(name string) oteltrace.Tracer {
	if t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return t.tracerProvider.Tracer(name)
}

// Shutdown flushes buffered spans and metrics. Without a deadline on ctx the
// configured shutdown timeout applies.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && t.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.shutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
