// Package telemetry provides OpenTelemetry instrumentation for gridwalker.
//
// # Overview
//
// Tracing and metrics use the OpenTelemetry Go SDK and export over OTLP
// (gRPC by default, HTTP/protobuf on request) to a collector.
//
// # Usage
//
//	cfg := telemetry.FromAppConfig(appCfg.Observability, version)
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("gridwalker.dispatch")
//	ctx, span := tracer.Start(ctx, "dispatch.m")
//	defer span.End()
//
// # Error Handling
//
// Telemetry failures do not stop the simulator. A pipeline whose exporter
// cannot be created stays on the global no-op provider and is listed by
// Degraded.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
