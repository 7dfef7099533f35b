package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	cfotel "github.com/Strob0t/tenantgate/internal/adapter/otel"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
	"github.com/Strob0t/tenantgate/internal/port/cache"
	"github.com/Strob0t/tenantgate/internal/port/database"
	"github.com/Strob0t/tenantgate/internal/resilience"
)

const routeKeyPrefix = "route:"

// routeKey is the cache key for a hostname's resolution.
func routeKey(host string) string { return routeKeyPrefix + host }

// localEvicter is implemented by caches with a per-process tier that peers
// cannot reach directly.
type localEvicter interface {
	EvictLocal(ctx context.Context, keys ...string)
}

// ResolutionCache holds hostname resolutions in front of the registry.
//
// Values are whole JSON documents replaced atomically per key. Every entry
// carries an absolute expiry no later than the configured TTL ceiling, which
// is checked on read regardless of what the backend does with its own TTL.
//
// Reads and fills go through a circuit breaker so a failing backend costs one
// fast error per request instead of a timeout. Invalidations always reach the
// backend.
type ResolutionCache struct {
	cache   cache.Cache
	domains database.DomainStore
	breaker *resilience.Breaker
	ttl     time.Duration
	epoch   atomic.Uint64
	metrics *cfotel.Metrics
	now     func() time.Time
}

// NewResolutionCache creates a cache over c. domains is the authoritative
// tenant to hostname index used by InvalidateTenant.
func NewResolutionCache(c cache.Cache, domains database.DomainStore, ttl time.Duration, breaker *resilience.Breaker) *ResolutionCache {
	return &ResolutionCache{
		cache:   c,
		domains: domains,
		breaker: breaker,
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetMetrics attaches metric instruments.
func (rc *ResolutionCache) SetMetrics(m *cfotel.Metrics) { rc.metrics = m }

func (rc *ResolutionCache) guarded(fn func() error) error {
	if rc.breaker == nil {
		return fn()
	}
	return rc.breaker.Execute(fn)
}

func (rc *ResolutionCache) cacheError(ctx context.Context) {
	if rc.metrics != nil {
		rc.metrics.CacheErrors.Add(ctx, 1)
	}
}

// Lookup returns the cached resolution for host, or nil on a miss. A non-nil
// error means the cache could not be consulted; callers treat it as a miss.
func (rc *ResolutionCache) Lookup(ctx context.Context, host string) (*tenant.Resolved, error) {
	var (
		data  []byte
		found bool
	)
	err := rc.guarded(func() error {
		var err error
		data, found, err = rc.cache.Get(ctx, routeKey(host))
		return err
	})
	if err != nil {
		rc.cacheError(ctx)
		return nil, fmt.Errorf("cache lookup %s: %w", host, err)
	}
	if !found {
		return nil, nil
	}

	var r tenant.Resolved
	if err := json.Unmarshal(data, &r); err != nil || r.Hostname != host {
		logger.From(ctx).Warn("discarding malformed resolution cache entry", "hostname", host)
		_ = rc.cache.Delete(ctx, routeKey(host))
		return nil, nil
	}
	if r.Expired(rc.now()) {
		return nil, nil
	}
	return &r, nil
}

// Put stores r for its hostname. ttl is clamped to the cache's TTL ceiling;
// a non-positive ttl uses the ceiling.
func (rc *ResolutionCache) Put(ctx context.Context, r tenant.Resolved, ttl time.Duration) error {
	if ttl <= 0 || ttl > rc.ttl {
		ttl = rc.ttl
	}
	r.ExpiresAt = rc.now().Add(ttl)
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	err = rc.guarded(func() error {
		return rc.cache.Set(ctx, routeKey(r.Hostname), data, ttl)
	})
	if err != nil {
		rc.cacheError(ctx)
		return fmt.Errorf("cache put %s: %w", r.Hostname, err)
	}
	return nil
}

// Epoch returns the invalidation counter. A fill records it before reading
// the store and hands it to PutIfFresh.
func (rc *ResolutionCache) Epoch() uint64 { return rc.epoch.Load() }

// PutIfFresh stores r unless an invalidation happened since epoch was read.
// If one lands while the write is in flight the entry is removed again.
func (rc *ResolutionCache) PutIfFresh(ctx context.Context, r tenant.Resolved, epoch uint64) error {
	if rc.epoch.Load() != epoch {
		return nil
	}
	if err := rc.Put(ctx, r, rc.ttl); err != nil {
		return err
	}
	if rc.epoch.Load() != epoch {
		return rc.cache.Delete(ctx, routeKey(r.Hostname))
	}
	return nil
}

// Invalidate evicts the given hostnames. It bypasses the breaker and reports
// the first failure after attempting every key.
func (rc *ResolutionCache) Invalidate(ctx context.Context, hosts ...string) error {
	ctx, span := cfotel.StartInvalidateSpan(ctx, "", len(hosts))
	defer span.End()
	return rc.evict(ctx, hosts)
}

func (rc *ResolutionCache) evict(ctx context.Context, hosts []string) error {
	rc.epoch.Add(1)
	var errs []error
	for _, h := range hosts {
		if err := rc.cache.Delete(ctx, routeKey(h)); err != nil {
			errs = append(errs, fmt.Errorf("evict %s: %w", h, err))
		}
	}
	if rc.metrics != nil {
		rc.metrics.Invalidations.Add(ctx, int64(len(hosts)-len(errs)))
	}
	return errors.Join(errs...)
}

// InvalidateTenant evicts every hostname currently bound to tenantID, plus
// any extra hostnames the caller knows were bound until just now. It returns
// the hostnames it evicted.
func (rc *ResolutionCache) InvalidateTenant(ctx context.Context, tenantID string, extra ...string) ([]string, error) {
	rc.epoch.Add(1)
	ctx, span := cfotel.StartInvalidateSpan(ctx, tenantID, len(extra))
	defer span.End()

	domains, err := rc.domains.ListDomainsByTenant(ctx, tenantID)
	if err != nil {
		return extra, fmt.Errorf("list domains for %s: %w", tenantID, err)
	}
	hosts := make([]string, 0, len(domains)+len(extra))
	for _, d := range domains {
		hosts = append(hosts, d.Hostname)
	}
	hosts = append(hosts, extra...)
	return hosts, rc.evict(ctx, hosts)
}

// HandleEvent applies a peer's lifecycle event: in-flight fills are voided
// and the affected hostnames are dropped from the per-process tier. The
// shared tier was already cleared by the publisher.
func (rc *ResolutionCache) HandleEvent(ctx context.Context, ev broadcast.Event) error {
	rc.epoch.Add(1)
	if len(ev.Hostnames) == 0 {
		return nil
	}
	keys := make([]string, len(ev.Hostnames))
	for i, h := range ev.Hostnames {
		keys[i] = routeKey(h)
	}
	if le, ok := rc.cache.(localEvicter); ok {
		le.EvictLocal(ctx, keys...)
		return nil
	}
	return rc.evict(ctx, ev.Hostnames)
}
