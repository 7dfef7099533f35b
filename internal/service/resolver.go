package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	cfotel "github.com/Strob0t/tenantgate/internal/adapter/otel"
	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/database"
)

// Resolver maps a request hostname to its tenant and partition. It is the
// single entry point request handling uses, and it never returns a partial
// or default tenant: every call yields a resolution or a named error.
type Resolver struct {
	cache   *ResolutionCache
	domains database.DomainStore
	tenants database.TenantStore
	timeout time.Duration
	group   singleflight.Group
	metrics *cfotel.Metrics
	now     func() time.Time
}

// NewResolver creates a resolver. storeTimeout bounds the registry lookups
// made on a cache miss.
func NewResolver(cache *ResolutionCache, store database.Store, storeTimeout time.Duration) *Resolver {
	return &Resolver{
		cache:   cache,
		domains: store,
		tenants: store,
		timeout: storeTimeout,
		now:     time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (r *Resolver) SetMetrics(m *cfotel.Metrics) { r.metrics = m }

// Resolve returns the resolution for hostname.
//
// Errors: domain.ErrUnknownTenant when the hostname is unbound or its tenant
// row is missing, domain.ErrTenantInactive when the tenant is deactivated,
// domain.ErrResolutionTimeout when the registry does not answer in time. If
// ctx is cancelled first, ctx.Err() is returned while the registry lookup
// runs on and fills the cache.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (*tenant.Resolved, error) {
	start := r.now()
	ctx, span := cfotel.StartResolveSpan(ctx, hostname)
	defer span.End()

	res, outcome, err := r.resolve(ctx, hostname)
	if err != nil {
		span.RecordError(err)
	}
	if r.metrics != nil {
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		r.metrics.Resolutions.Add(ctx, 1, attrs)
		r.metrics.ResolveDuration.Record(ctx, r.now().Sub(start).Seconds(), attrs)
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, hostname string) (*tenant.Resolved, string, error) {
	host, err := tenant.NormalizeHostname(hostname)
	if err != nil {
		return nil, cfotel.OutcomeUnknown, fmt.Errorf("resolve %q: %w: %w", hostname, domain.ErrUnknownTenant, err)
	}

	cached, err := r.cache.Lookup(ctx, host)
	if err != nil {
		logger.From(ctx).Warn("resolution cache unavailable, using registry", "hostname", host, "error", err)
	}
	if cached != nil {
		if !cached.Active {
			return nil, cfotel.OutcomeInactive, fmt.Errorf("resolve %s: %w", host, domain.ErrTenantInactive)
		}
		return cached, cfotel.OutcomeHit, nil
	}

	// Callers arriving after an invalidation must not join a lookup that
	// read the registry before it.
	epoch := r.cache.Epoch()
	ch := r.group.DoChan(fmt.Sprintf("%s@%d", host, epoch), func() (any, error) {
		return r.fill(ctx, host, epoch)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, outcomeOf(res.Err), res.Err
		}
		v := res.Val.(tenant.Resolved)
		return &v, cfotel.OutcomeMiss, nil
	case <-ctx.Done():
		return nil, cfotel.OutcomeError, ctx.Err()
	}
}

// fill loads the resolution from the registry and writes it through to the
// cache. It runs detached from the caller's cancellation but bounded by the
// store timeout, so an abandoned request still warms the cache.
func (r *Resolver) fill(ctx context.Context, host string, epoch uint64) (tenant.Resolved, error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	d, err := r.domains.GetDomain(sctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return tenant.Resolved{}, fmt.Errorf("resolve %s: %w", host, domain.ErrUnknownTenant)
		}
		return tenant.Resolved{}, storeError(sctx, err, "resolve %s: domain", host)
	}

	t, err := r.tenants.GetTenant(sctx, d.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Alarm(ctx, "domain references missing tenant",
				"hostname", host, "tenant_id", d.TenantID)
			return tenant.Resolved{}, fmt.Errorf("resolve %s: dangling tenant %s: %w", host, d.TenantID, domain.ErrUnknownTenant)
		}
		return tenant.Resolved{}, storeError(sctx, err, "resolve %s: tenant", host)
	}

	res := tenant.NewResolved(host, t)
	if err := r.cache.PutIfFresh(sctx, res, epoch); err != nil {
		logger.From(ctx).Warn("resolution cache fill failed", "hostname", host, "error", err)
	}
	if !t.Active {
		return tenant.Resolved{}, fmt.Errorf("resolve %s: %w", host, domain.ErrTenantInactive)
	}
	return res, nil
}

// storeError maps an expired store deadline to domain.ErrResolutionTimeout.
func storeError(ctx context.Context, err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, domain.ErrResolutionTimeout)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownTenant):
		return cfotel.OutcomeUnknown
	case errors.Is(err, domain.ErrTenantInactive):
		return cfotel.OutcomeInactive
	case errors.Is(err, domain.ErrResolutionTimeout):
		return cfotel.OutcomeTimeout
	}
	return cfotel.OutcomeError
}
