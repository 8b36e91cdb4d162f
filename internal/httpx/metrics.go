package httpx

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// NewMeterProvider returns a meter provider whose instruments (request
// counters here, fetch and warning counters in the pipeline) are collected
// into reg. A nil reg means the default Prometheus registry, which is what
// the /metrics route serves.
func NewMeterProvider(reg prometheus.Registerer) (*metric.MeterProvider, error) {
	var opts []otelprom.Option
	if reg != nil {
		opts = append(opts, otelprom.WithRegisterer(reg))
	}
	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, err
	}
	return metric.NewMeterProvider(metric.WithReader(exporter)), nil
}

// Shutdown flushes and stops provider. It is a no-op for nil.
func Shutdown(ctx context.Context, provider *metric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
