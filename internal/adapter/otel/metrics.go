package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tenantgate"

// Resolution outcomes recorded on the resolutions counter.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeUnknown  = "unknown"
	OutcomeInactive = "inactive"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// Metrics holds all tenantgate metric instruments.
type Metrics struct {
	Resolutions       metric.Int64Counter
	ResolveDuration   metric.Float64Histogram
	CacheErrors       metric.Int64Counter
	Invalidations     metric.Int64Counter
	InvalidationFails metric.Int64Counter
	Provisioned       metric.Int64Counter
	ProvisionFailures metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all metric instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Resolutions, err = meter.Int64Counter("tenantgate.resolutions",
		metric.WithDescription("Hostname resolutions by outcome"))
	if err != nil {
		return nil, err
	}

	m.ResolveDuration, err = meter.Float64Histogram("tenantgate.resolve.duration_seconds",
		metric.WithDescription("Hostname resolution latency in seconds"))
	if err != nil {
		return nil, err
	}

	m.CacheErrors, err = meter.Int64Counter("tenantgate.cache.errors",
		metric.WithDescription("Resolution cache operations that failed or were short-circuited"))
	if err != nil {
		return nil, err
	}

	m.Invalidations, err = meter.Int64Counter("tenantgate.cache.invalidations",
		metric.WithDescription("Routing keys invalidated"))
	if err != nil {
		return nil, err
	}

	m.InvalidationFails, err = meter.Int64Counter("tenantgate.cache.invalidation_failures",
		metric.WithDescription("Invalidations that did not complete after a committed mutation"))
	if err != nil {
		return nil, err
	}

	m.Provisioned, err = meter.Int64Counter("tenantgate.tenants.provisioned",
		metric.WithDescription("Tenants provisioned"))
	if err != nil {
		return nil, err
	}

	m.ProvisionFailures, err = meter.Int64Counter("tenantgate.tenants.provision_failures",
		metric.WithDescription("Provisioning attempts that failed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
