// Package observe provides the service's metrics: OpenTelemetry instruments
// exported through a Prometheus registry, plus gin middleware recording
// request latency.
//
// Metrics are created from an injected [metric.MeterProvider]; tests use a
// ManualReader-backed provider or the noop provider.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "audioscribe"

// Metrics holds all OpenTelemetry metric instruments for the service.
type Metrics struct {
	// Transcriptions counts transcription requests. Attributes: provider, outcome.
	Transcriptions metric.Int64Counter

	// ProviderDuration tracks provider call latency. Attribute: provider.
	ProviderDuration metric.Float64Histogram

	// ProviderErrors counts failed provider calls. Attributes: provider, code.
	ProviderErrors metric.Int64Counter

	// StoreFailures counts persistence failures. Attributes: driver, op.
	StoreFailures metric.Int64Counter

	// HTTPRequestDuration tracks request latency. Attributes: method, route, status.
	HTTPRequestDuration metric.Float64Histogram
}

// providerBuckets covers both short sync calls and long polling jobs.
var providerBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transcriptions, err = m.Int64Counter("audioscribe.transcriptions",
		metric.WithDescription("Transcription requests by provider and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("audioscribe.provider.duration",
		metric.WithDescription("Latency of speech provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(providerBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("audioscribe.provider.errors",
		metric.WithDescription("Failed speech provider calls by provider and error code."),
	); err != nil {
		return nil, err
	}
	if met.StoreFailures, err = m.Int64Counter("audioscribe.store.failures",
		metric.WithDescription("Row store operations that failed, by driver and operation."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("audioscribe.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// RecordTranscription counts one finished transcription request.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, outcome string) {
	m.Transcriptions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordProviderCall records latency and, when code is non-empty, an error.
func (m *Metrics) RecordProviderCall(ctx context.Context, provider string, seconds float64, code string) {
	m.ProviderDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
	if code != "" {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("code", code),
		))
	}
}

// RecordStoreFailure counts one failed store operation.
func (m *Metrics) RecordStoreFailure(ctx context.Context, driver, op string) {
	m.StoreFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("driver", driver),
		attribute.String("op", op),
	))
}
