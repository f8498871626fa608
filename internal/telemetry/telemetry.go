package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every span thptune emits
const TracerName = "github.com/GoSim-25-26J-441/thp-tuner"

// Config configures tracing
type Config struct {
	ServiceName    string
	ServiceVersion string
	RunID          string
	// TraceFile receives spans as JSON lines; empty disables tracing
	TraceFile string
}

// Init installs the global tracer provider. The returned shutdown flushes
// pending spans and closes the trace file; it is safe to call when tracing is off.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.TraceFile == "" {
		return func(context.Context) error { return nil }, nil
	}

	f, err := os.Create(cfg.TraceFile)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	tp, err := newTracerProvider(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), f.Close())
	}, nil
}

func newTracerProvider(w io.Writer, cfg Config) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("thptune.run_id", cfg.RunID),
	)

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// Tracer returns the tracer used by the evaluation pipeline
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
