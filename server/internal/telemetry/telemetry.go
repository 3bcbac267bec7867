// Package telemetry installs the OpenTelemetry tracer provider used by the
// notifier spans. Tracing is opt-in through PRESENCE_OTEL_* variables.
package telemetry

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Settings are read from the environment by Setup.
type Settings struct {
	Endpoint    string  `env:"PRESENCE_OTEL_ENDPOINT"`
	Enabled     bool    `env:"PRESENCE_OTEL_ENABLED" envDefault:"true"`
	SampleRatio float64 `env:"PRESENCE_OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Active reports whether Setup would install a provider.
func (s Settings) Active() bool {
	return s.Enabled && s.Endpoint != ""
}

// Setup installs a global tracer provider exporting over OTLP/HTTP.
//
// When PRESENCE_OTEL_ENDPOINT is empty or PRESENCE_OTEL_ENABLED is false,
// Setup returns a no-op shutdown and leaves the global provider untouched.
// The returned shutdown flushes pending spans and should be deferred.
func Setup(ctx context.Context, serviceName, version string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	s, err := env.ParseAs[Settings]()
	if err != nil {
		return noop, fmt.Errorf("telemetry: parse env: %w", err)
	}
	if !s.Active() {
		return noop, nil
	}
	if s.SampleRatio < 0 || s.SampleRatio > 1 {
		return noop, fmt.Errorf("telemetry: PRESENCE_OTEL_SAMPLE_RATIO must be in [0,1], got %v", s.SampleRatio)
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(s.Endpoint))
	if err != nil {
		return noop, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
