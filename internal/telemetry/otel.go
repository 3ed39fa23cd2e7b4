package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evotodo/todo-api/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const serviceVersion = "0.1.0"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// Enabled reports whether tracing is configured.
func Enabled(cfg *config.Config) bool {
	return cfg.Telemetry.Enabled && cfg.Telemetry.OtlpEndpoint != ""
}

// SetupTracing installs a global OTLP/gRPC tracer provider and the W3C
// propagators. When tracing is disabled it installs nothing and returns a
// no-op shutdown.
func SetupTracing(ctx context.Context, cfg *config.Config) (ShutdownFunc, error) {
	if !Enabled(cfg) {
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.App.Name),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", cfg.App.Env),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("create resource: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// otlptracegrpc wants host:port, not a URL
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Telemetry.OtlpEndpoint, "http://"), "https://")
	exporter, err := otlptracegrpc.New(dialCtx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return noop, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.Telemetry.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Sampler samples everything for ratios outside (0, 1).
func Sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}
