// Package scope provides the partition-scoped execution context handed to
// data access code for the lifetime of one request.
//
// A Tenant scope can only be built from a successful resolution, so holding
// one proves the partition was routed from a bound hostname to an active
// tenant. Platform code that must read across partitions uses Unscoped, a
// distinct type that no tenant-scoped store method accepts.
package scope

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
)

// ErrNoScope is returned when data access is attempted without a bound partition.
var ErrNoScope = errors.New("no partition scope")

// Tenant binds data operations to one tenant partition. The zero value is
// unbound and every accessor on it reports ErrNoScope through Validate.
type Tenant struct {
	tenantID  string
	slug      string
	partition string
	plan      tenant.Plan
	hostname  string
}

// FromResolved builds a scope from a resolution result. Inactive or
// malformed results yield an unbound scope and an error.
func FromResolved(r *tenant.Resolved) (Tenant, error) {
	if r == nil || !r.Active || r.TenantID == "" {
		return Tenant{}, ErrNoScope
	}
	if err := tenant.ValidatePartition(r.Partition); err != nil {
		return Tenant{}, err
	}
	return Tenant{
		tenantID:  r.TenantID,
		slug:      r.Slug,
		partition: r.Partition,
		plan:      r.Plan,
		hostname:  r.Hostname,
	}, nil
}

// Validate returns ErrNoScope for an unbound scope.
func (s Tenant) Validate() error {
	if s.partition == "" {
		return ErrNoScope
	}
	return nil
}

// TenantID returns the bound tenant's id.
func (s Tenant) TenantID() string { return s.tenantID }

// Slug returns the bound tenant's slug.
func (s Tenant) Slug() string { return s.slug }

// Partition returns the partition descriptor.
func (s Tenant) Partition() string { return s.partition }

// Plan returns the bound tenant's subscription plan.
func (s Tenant) Plan() tenant.Plan { return s.plan }

// Hostname returns the hostname the request was routed by.
func (s Tenant) Hostname() string { return s.hostname }

// Table returns the schema-qualified, quoted identifier for a table inside
// the bound partition, e.g. "tenant_acme"."settings".
func (s Tenant) Table(name string) string {
	return pgx.Identifier{s.partition, name}.Sanitize()
}

// CacheKey builds a cache key qualified by the partition. Any cache entry
// holding tenant data must use it; a bare resource id collides across tenants.
func (s Tenant) CacheKey(parts ...string) string {
	return "p:" + s.partition + ":" + strings.Join(parts, ":")
}

// Unscoped is the platform context for cross-partition operations such as
// admin reporting. It is deliberately a different type from Tenant.
type Unscoped struct {
	reason string
}

// NewUnscoped creates a platform context. reason is recorded in logs and
// spans of the operations it authorizes.
func NewUnscoped(reason string) Unscoped {
	return Unscoped{reason: reason}
}

// Reason returns why the unscoped context was created.
func (u Unscoped) Reason() string { return u.reason }

// Valid reports whether u was created through NewUnscoped.
func (u Unscoped) Valid() bool { return u.reason != "" }

// Table returns the quoted identifier for a table in an explicit partition.
func (u Unscoped) Table(partition, name string) (string, error) {
	if err := tenant.ValidatePartition(partition); err != nil {
		return "", err
	}
	return pgx.Identifier{partition, name}.Sanitize(), nil
}

type ctxKey struct{}

// WithTenant stores the request's scope in ctx for handlers to retrieve.
// Stores still take the scope as an explicit argument.
func WithTenant(ctx context.Context, s Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope stored by WithTenant.
func FromContext(ctx context.Context) (Tenant, bool) {
	s, ok := ctx.Value(ctxKey{}).(Tenant)
	if !ok || s.Validate() != nil {
		return Tenant{}, false
	}
	return s, true
}
