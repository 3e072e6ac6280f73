// Package metrics provides OpenTelemetry metrics instrumentation with Prometheus export.
// It covers pseudonymization business metrics, HTTP request metrics and Go runtime metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Provider owns a private Prometheus registry and the OpenTelemetry meter provider that
// exports into it. Instruments created from Meter are prefixed with the provider namespace
// by the business and HTTP metric constructors.
type Provider struct {
	namespace     string
	registry      *prometheus.Registry
	exporter      *promexporter.Exporter
	meterProvider *metric.MeterProvider
}

// NewProvider builds a provider for namespace. The registry also carries the Go runtime,
// process and build info collectors.
func NewProvider(namespace string) (*Provider, error) {
	p := &Provider{namespace: namespace, registry: prometheus.NewRegistry()}
	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		collectors.NewBuildInfoCollector(),
	)

	var err error
	if p.exporter, err = promexporter.New(promexporter.WithRegisterer(p.registry)); err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.meterProvider = metric.NewMeterProvider(
		metric.WithReader(p.exporter),
		metric.WithResource(resource.NewSchemaless(attribute.String("service.name", namespace))),
	)
	return p, nil
}

// Namespace is the metric name prefix.
func (p *Provider) Namespace() string {
	return p.namespace
}

// Meter returns a named meter scoped under the provider namespace.
func (p *Provider) Meter(name string) otelmetric.Meter {
	scope := name
	if p.namespace != "" {
		scope = p.namespace + "/" + name
	}
	return p.meterProvider.Meter(scope)
}

// MeterProvider exposes the underlying SDK meter provider.
func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.meterProvider
}

// Handler serves the registry in Prometheus exposition format, negotiating OpenMetrics.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          p.registry,
	})
}

// Shutdown flushes and stops the meter provider. A zero Provider is a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
