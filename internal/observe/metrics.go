// Package observe provides application-wide observability primitives for
// voxstudio: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint ([MetricsHandler]). A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxstudio metrics.
const meterName = "github.com/MrWong99/voxstudio"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// GenerationDuration tracks end-to-end generation latency (queue wait
	// excluded). Use with attributes:
	//   attribute.String("model", ...), attribute.String("status", ...)
	GenerationDuration metric.Float64Histogram

	// ModelLoadDuration tracks how long a lazy model load took. Use with
	// attributes: attribute.String("model", ...), attribute.String("status", ...)
	ModelLoadDuration metric.Float64Histogram

	// QueueWait tracks time spent waiting for a lane slot. Use with
	// attribute: attribute.String("lane", ...)
	QueueWait metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// QueueRejections counts requests turned away because the queue was full.
	QueueRejections metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of requests waiting per lane.
	QueueDepth metric.Int64UpDownCounter

	// ActiveGenerations tracks the number of requests holding a lane slot.
	ActiveGenerations metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// generationBuckets defines histogram bucket boundaries (in seconds) for
// model inference and loading, which range from sub-second turbo runs to
// multi-minute CPU loads.
var generationBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.GenerationDuration, err = m.Float64Histogram("voxstudio.generation.duration",
		metric.WithDescription("Latency of a TTS or voice-conversion generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("voxstudio.model.load.duration",
		metric.WithDescription("Latency of lazy model loading."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueWait, err = m.Float64Histogram("voxstudio.queue.wait",
		metric.WithDescription("Time spent waiting for a queue lane slot."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("voxstudio.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("voxstudio.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.QueueRejections, err = m.Int64Counter("voxstudio.queue.rejections",
		metric.WithDescription("Total requests rejected because the queue was full."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("voxstudio.queue.depth",
		metric.WithDescription("Number of requests waiting per queue lane."),
	); err != nil {
		return nil, err
	}
	if met.ActiveGenerations, err = m.Int64UpDownCounter("voxstudio.queue.active",
		metric.WithDescription("Number of requests holding a queue lane slot."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxstudio.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// statusOf maps an error to the "status" attribute value.
func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordGeneration records one generation's latency and outcome.
func (m *Metrics) RecordGeneration(ctx context.Context, model string, d time.Duration, err error) {
	m.GenerationDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", statusOf(err)),
		),
	)
}

// RecordModelLoad records one lazy model load's latency and outcome.
func (m *Metrics) RecordModelLoad(ctx context.Context, model string, d time.Duration, err error) {
	m.ModelLoadDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", statusOf(err)),
		),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordQueueWait records how long a request waited for lane.
func (m *Metrics) RecordQueueWait(ctx context.Context, lane string, d time.Duration) {
	m.QueueWait.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("lane", lane)))
}

// RecordQueueRejection counts a request rejected on lane.
func (m *Metrics) RecordQueueRejection(ctx context.Context, lane string) {
	m.QueueRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("lane", lane)))
}

// AddQueueDepth moves the waiting gauge for lane by delta.
func (m *Metrics) AddQueueDepth(ctx context.Context, lane string, delta int64) {
	m.QueueDepth.Add(ctx, delta, metric.WithAttributes(attribute.String("lane", lane)))
}

// AddActive moves the active-generation gauge for lane by delta.
func (m *Metrics) AddActive(ctx context.Context, lane string, delta int64) {
	m.ActiveGenerations.Add(ctx, delta, metric.WithAttributes(attribute.String("lane", lane)))
}
