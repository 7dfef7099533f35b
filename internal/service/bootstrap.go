package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
)

// Local development defaults for EnsureDevTenant.
const (
	DevTenantSlug   = "dev"
	DevTenantName   = "Dev Tenant"
	DevTenantDomain = "127.0.0.1"
	LocalhostDomain = "localhost"
)

// EnsureDevTenant provisions a premium tenant for local development and binds
// host to it as primary. It is safe to run repeatedly: an existing tenant
// with the slug is reused and an existing binding to it is kept.
func EnsureDevTenant(ctx context.Context, parts *PartitionService, dir *DirectoryService, host, name, slug string) (*tenant.Tenant, error) {
	t, err := parts.GetBySlug(ctx, slug)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		t, err = parts.Provision(ctx, tenant.ProvisionRequest{Name: name, Slug: slug, Plan: tenant.PlanPremium})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		logger.From(ctx).Info("dev tenant already exists", "slug", slug, "tenant_id", t.ID)
	}

	if _, err := dir.Bind(ctx, tenant.BindRequest{Hostname: host, TenantID: t.ID, IsPrimary: true, Override: true}); err != nil {
		return t, fmt.Errorf("bind dev domain: %w", err)
	}
	return t, nil
}

// BindLocalhost binds "localhost" to the tenant with slug unless it is
// already bound. An existing binding to another tenant is reported as
// domain.ErrConflict.
func BindLocalhost(ctx context.Context, parts *PartitionService, dir *DirectoryService, slug string) (*tenant.Domain, error) {
	t, err := parts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return dir.Bind(ctx, tenant.BindRequest{Hostname: LocalhostDomain, TenantID: t.ID, IsPrimary: true})
}
