package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/tenantgate/internal/adapter/otel"
	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
	"github.com/Strob0t/tenantgate/internal/port/database"
)

// DirectoryService manages hostname bindings. Hostnames are matched exactly
// after lowercasing and stripping a trailing dot.
type DirectoryService struct {
	store   database.Store
	cache   *ResolutionCache
	events  broadcast.Broadcaster
	metrics *cfotel.Metrics
}

// NewDirectoryService creates a DirectoryService.
func NewDirectoryService(store database.Store, cache *ResolutionCache, events broadcast.Broadcaster) *DirectoryService {
	return &DirectoryService{store: store, cache: cache, events: events}
}

// SetMetrics attaches metric instruments.
func (s *DirectoryService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Resolve returns the binding for hostname or domain.ErrNotFound. It never
// falls back to another tenant.
func (s *DirectoryService) Resolve(ctx context.Context, hostname string) (*tenant.Domain, error) {
	host, err := tenant.NormalizeHostname(hostname)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w: %w", hostname, domain.ErrNotFound, err)
	}
	return s.store.GetDomain(ctx, host)
}

// Bind attaches a hostname to a tenant.
//
// Binding a hostname already held by another tenant fails with
// domain.ErrConflict and leaves that binding untouched. Binding to an
// inactive tenant fails with domain.ErrInvalidState unless req.Override is
// set. Re-binding to the same tenant is a no-op, except that it promotes the
// binding when req.IsPrimary is set.
func (s *DirectoryService) Bind(ctx context.Context, req tenant.BindRequest) (*tenant.Domain, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(req.TenantID); err != nil {
		return nil, fmt.Errorf("bind %s: tenant %q: %w", req.Hostname, req.TenantID, domain.ErrNotFound)
	}
	t, err := s.store.GetTenant(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", req.Hostname, err)
	}
	if !t.Active && !req.Override {
		return nil, fmt.Errorf("bind %s: tenant %s is inactive: %w", req.Hostname, t.Slug, domain.ErrInvalidState)
	}

	existing, err := s.store.GetDomain(ctx, req.Hostname)
	switch {
	case err == nil:
		return s.rebind(ctx, existing, t, req.IsPrimary)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("bind %s: %w", req.Hostname, err)
	}

	d := &tenant.Domain{
		ID:        uuid.NewString(),
		Hostname:  req.Hostname,
		TenantID:  t.ID,
		IsPrimary: req.IsPrimary,
	}
	if err := s.store.CreateDomain(ctx, d, req.Override); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("bind %s: %w", req.Hostname, err)
		}
		// Lost a race; the winner decides.
		winner, gerr := s.store.GetDomain(ctx, req.Hostname)
		if gerr != nil {
			return nil, fmt.Errorf("bind %s: %w", req.Hostname, domain.ErrConflict)
		}
		return s.rebind(ctx, winner, t, req.IsPrimary)
	}

	logger.From(ctx).Info("domain bound", "hostname", d.Hostname, "tenant_id", t.ID, "slug", t.Slug, "primary", d.IsPrimary)
	return d, s.invalidate(ctx, broadcast.EventDomainBound, t.ID, d.Hostname)
}

func (s *DirectoryService) rebind(ctx context.Context, existing *tenant.Domain, t *tenant.Tenant, primary bool) (*tenant.Domain, error) {
	if existing.TenantID != t.ID {
		return nil, fmt.Errorf("bind %s: bound to another tenant: %w", existing.Hostname, domain.ErrConflict)
	}
	if primary && !existing.IsPrimary {
		return s.SetPrimary(ctx, existing.Hostname)
	}
	return existing, nil
}

// Unbind removes a hostname binding. Unbinding an absent hostname is a no-op.
func (s *DirectoryService) Unbind(ctx context.Context, hostname string) error {
	host, err := tenant.NormalizeHostname(hostname)
	if err != nil {
		return err
	}
	d, err := s.store.DeleteDomain(ctx, host)
	if err != nil {
		return fmt.Errorf("unbind %s: %w", host, err)
	}
	if d == nil {
		return nil
	}
	logger.From(ctx).Info("domain unbound", "hostname", host, "tenant_id", d.TenantID)
	return s.invalidate(ctx, broadcast.EventDomainUnbound, d.TenantID, host)
}

// ListForTenant returns a tenant's bindings, primary first.
func (s *DirectoryService) ListForTenant(ctx context.Context, tenantID string) ([]tenant.Domain, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, fmt.Errorf("list domains: tenant %q: %w", tenantID, domain.ErrNotFound)
	}
	if _, err := s.store.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.store.ListDomainsByTenant(ctx, tenantID)
}

// SetPrimary makes hostname its tenant's primary binding and demotes the
// previous one.
func (s *DirectoryService) SetPrimary(ctx context.Context, hostname string) (*tenant.Domain, error) {
	host, err := tenant.NormalizeHostname(hostname)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetPrimaryDomain(ctx, host); err != nil {
		return nil, fmt.Errorf("set primary %s: %w", host, err)
	}
	d, err := s.store.GetDomain(ctx, host)
	if err != nil {
		return nil, err
	}
	return d, s.invalidate(ctx, broadcast.EventDomainBound, d.TenantID, host)
}

func (s *DirectoryService) invalidate(ctx context.Context, evType, tenantID, host string) error {
	err := s.cache.Invalidate(ctx, host)
	publish(ctx, s.events, broadcast.Event{Type: evType, TenantID: tenantID, Hostnames: []string{host}})
	if err != nil {
		if s.metrics != nil {
			s.metrics.InvalidationFails.Add(ctx, 1)
		}
		logger.From(ctx).Error("routing cache invalidation failed after commit",
			"hostname", host, "event", evType, "error", err)
		return fmt.Errorf("%s %s: %w: %w", evType, host, domain.ErrInvalidationFailed, err)
	}
	return nil
}
