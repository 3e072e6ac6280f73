package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records pseudonymization operation metrics.
//
// Domains are "pseudonym", "session", "crypto" and "audit". Operations are snake_case verbs such
// as "pseudonymize", "depseudonymize", "delete_session" or "encrypt".
// No attribute ever carries a detected value, a pseudonym or a caller identifier.
type BusinessMetrics interface {
	// ObserveOperation counts one operation and records its latency. A non-nil err marks the
	// operation as failed.
	ObserveOperation(ctx context.Context, domain, operation string, elapsed time.Duration, err error)

	// RecordEntities adds count detected entities of valueType found by layer.
	RecordEntities(ctx context.Context, layer, valueType string, count int)

	// RecordAnomalies adds count tokens that were presented for reversal but did not belong
	// to the addressed session.
	RecordAnomalies(ctx context.Context, count int)
}

type businessMetrics struct {
	operations metric.Int64Counter
	latency    metric.Float64Histogram
	entities   metric.Int64Counter
	anomalies  metric.Int64Counter
}

// instrumentSet creates instruments named <namespace>_<suffix> and keeps the first error.
type instrumentSet struct {
	meter     metric.Meter
	namespace string
	err       error
}

func (s *instrumentSet) name(suffix string) string {
	if s.namespace == "" {
		return suffix
	}
	return s.namespace + "_" + suffix
}

func (s *instrumentSet) counter(suffix, description, unit string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(s.name(suffix), metric.WithDescription(description), metric.WithUnit(unit))
	s.err = errors.Join(s.err, err)
	return c
}

func (s *instrumentSet) histogram(suffix, description string) metric.Float64Histogram {
	h, err := s.meter.Float64Histogram(s.name(suffix), metric.WithDescription(description), metric.WithUnit("s"))
	s.err = errors.Join(s.err, err)
	return h
}

// NewBusinessMetrics registers the business instruments on provider.
func NewBusinessMetrics(provider *Provider) (BusinessMetrics, error) {
	set := &instrumentSet{meter: provider.Meter("business"), namespace: provider.Namespace()}
	bm := &businessMetrics{
		operations: set.counter("operations_total", "Total number of business operations", "{operation}"),
		latency:    set.histogram("operation_duration_seconds", "Duration of business operations in seconds"),
		entities: set.counter(
			"detected_entities_total", "Total number of sensitive entities detected, by layer and type", "{entity}",
		),
		anomalies: set.counter(
			"reversal_anomalies_total", "Total number of foreign or unknown tokens seen during reversal", "{token}",
		),
	}
	if set.err != nil {
		return nil, set.err
	}
	return bm, nil
}

func (b *businessMetrics) ObserveOperation(
	ctx context.Context,
	domain, operation string,
	elapsed time.Duration,
	err error,
) {
	attrs := metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status(err)),
	)
	b.operations.Add(ctx, 1, attrs)
	b.latency.Record(ctx, elapsed.Seconds(), attrs)
}

func (b *businessMetrics) RecordEntities(ctx context.Context, layer, valueType string, count int) {
	if count <= 0 {
		return
	}
	b.entities.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("layer", layer),
		attribute.String("value_type", valueType),
	))
}

func (b *businessMetrics) RecordAnomalies(ctx context.Context, count int) {
	if count > 0 {
		b.anomalies.Add(ctx, int64(count))
	}
}

// NoOpBusinessMetrics discards everything. It is used when metrics are disabled.
type NoOpBusinessMetrics struct{}

// NewNoOpBusinessMetrics creates a no-op BusinessMetrics implementation.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return NoOpBusinessMetrics{}
}

func (NoOpBusinessMetrics) ObserveOperation(context.Context, string, string, time.Duration, error) {}
func (NoOpBusinessMetrics) RecordEntities(context.Context, string, string, int)                    {}
func (NoOpBusinessMetrics) RecordAnomalies(context.Context, int)                                   {}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
