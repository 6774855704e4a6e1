package observe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig selects what [InitProvider] installs.
type ProviderConfig struct {
	// ServiceName defaults to "voxstudio".
	ServiceName    string
	ServiceVersion string

	// DisableMetrics leaves the global meter provider as the OTel no-op one,
	// so every instrument records nothing and /metrics stays empty.
	DisableMetrics bool

	// TraceExporter receives finished spans in batches. Without one spans
	// are still created, which keeps correlation ids in logs and headers.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider installs the global OTel meter and tracer providers for the
// process. Metrics go to the Prometheus default registry, served by
// [MetricsHandler]. The returned function flushes and shuts both providers
// down in reverse order of creation.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "voxstudio"
	}
	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	var stack []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(stack) - 1; i >= 0; i-- {
			errs = append(errs, stack[i](ctx))
		}
		return errors.Join(errs...)
	}

	if !cfg.DisableMetrics {
		mp, err := prometheusMeterProvider(res)
		if err != nil {
			return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
		}
		otel.SetMeterProvider(mp)
		stack = append(stack, mp.Shutdown)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	stack = append(stack, tp.Shutdown)

	return shutdown, nil
}

func serviceResource(ctx context.Context, cfg ProviderConfig) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
}

func prometheusMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	), nil
}

// MetricsHandler serves the Prometheus default registry on /metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
