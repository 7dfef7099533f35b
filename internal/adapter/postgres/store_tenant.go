package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/tenantgate/internal/domain/tenant"
)

const tenantColumns = `id, name, slug, partition, plan, active, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Partition, &t.Plan, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTenant inserts the registry row. The id, slug and partition are
// supplied by the caller; timestamps are filled in from the database.
func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug, partition, plan, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Slug, t.Partition, t.Plan, t.Active,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create tenant %s", t.Slug)
	}
	return nil
}

func (s *Store) DeleteTenant(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete tenant %s", id)
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
	if err != nil {
		return nil, wrapErr(err, "get tenant by slug %s", slug)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC, slug ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) SetTenantActive(ctx context.Context, id string, active bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	return execExpectOne(tag, err, "set tenant %s active=%t", id, active)
}

func (s *Store) SetTenantPlan(ctx context.Context, id string, plan tenant.Plan) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET plan = $2, updated_at = now() WHERE id = $1`, id, plan)
	return execExpectOne(tag, err, "set tenant %s plan", id)
}
