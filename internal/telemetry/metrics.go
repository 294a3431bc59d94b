package telemetry

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers holds the process-wide OTel providers and their shutdown hooks.
// Packages obtain tracers/meters via otel.Tracer(name)/otel.Meter(name)
// against the global registry, mirroring the teacher's doltTracer/
// doltMetrics package-level var pattern: instruments are created once at
// package init time and forward to whatever provider Init installs.
type Providers struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// Init installs stdout-exporting meter and tracer providers as the OTel
// globals. w receives the rendered metric/span JSON; pass io.Discard to
// disable output while keeping instrumentation calls live.
func Init(w io.Writer) (*Providers, error) {
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(meterProvider)

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building trace exporter: %w", err)
	}
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	return &Providers{meterProvider: meterProvider, tracerProvider: tracerProvider}, nil
}

// Shutdown flushes and stops both providers, in the order a graceful
// process shutdown should run them: metrics then traces.
func (p *Providers) Shutdown(ctx context.Context) error {
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutting down meter provider: %w", err)
	}
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: shutting down tracer provider: %w", err)
	}
	return nil
}
