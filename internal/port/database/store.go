// Package database defines the storage ports for the shared registry and the
// per-tenant partitions.
package database

import (
	"context"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/scope"
)

// TenantStore persists tenant registry rows in the shared partition.
type TenantStore interface {
	// CreateTenant inserts t. A slug or partition collision returns domain.ErrConflict.
	CreateTenant(ctx context.Context, t *tenant.Tenant) error
	// DeleteTenant removes a registry row. Only provisioning rollback uses it.
	DeleteTenant(ctx context.Context, id string) error
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	SetTenantActive(ctx context.Context, id string, active bool) error
	SetTenantPlan(ctx context.Context, id string, plan tenant.Plan) error
}

// DomainStore persists hostname bindings in the shared partition.
type DomainStore interface {
	GetDomain(ctx context.Context, hostname string) (*tenant.Domain, error)
	// CreateDomain inserts d. A hostname already present returns domain.ErrConflict.
	// When d.IsPrimary is set, the tenant's previous primary is demoted in the same transaction.
	// The tenant row is locked for the insert; an inactive tenant returns
	// domain.ErrInvalidState unless allowInactive is set.
	CreateDomain(ctx context.Context, d *tenant.Domain, allowInactive bool) error
	// DeleteDomain removes the binding and returns it, or (nil, nil) when absent.
	DeleteDomain(ctx context.Context, hostname string) (*tenant.Domain, error)
	ListDomainsByTenant(ctx context.Context, tenantID string) ([]tenant.Domain, error)
	SetPrimaryDomain(ctx context.Context, hostname string) error
}

// Store combines the registry ports.
type Store interface {
	TenantStore
	DomainStore
}

// PartitionEngine creates and drops physical partitions (Postgres schemas).
type PartitionEngine interface {
	CreatePartition(ctx context.Context, partition string) error
	DropPartition(ctx context.Context, partition string) error
	PartitionExists(ctx context.Context, partition string) (bool, error)
}

// SettingsStore holds tenant settings inside the tenant's own partition.
// Every call is bound to exactly one partition by its scope argument.
type SettingsStore interface {
	GetSetting(ctx context.Context, sc scope.Tenant, key string) (string, error)
	PutSetting(ctx context.Context, sc scope.Tenant, key, value string) error
	DeleteSetting(ctx context.Context, sc scope.Tenant, key string) error
	// CountSettingsIn is a platform operation across partitions.
	CountSettingsIn(ctx context.Context, u scope.Unscoped, partition string) (int, error)
}
