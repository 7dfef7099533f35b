package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
)

const domainColumns = `id, hostname, tenant_id, is_primary, created_at`

func scanDomain(row scannable) (tenant.Domain, error) {
	var d tenant.Domain
	err := row.Scan(&d.ID, &d.Hostname, &d.TenantID, &d.IsPrimary, &d.CreatedAt)
	return d, err
}

// GetDomain looks up a binding by exact hostname.
func (s *Store) GetDomain(ctx context.Context, hostname string) (*tenant.Domain, error) {
	d, err := scanDomain(s.pool.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM domains WHERE hostname = $1`, hostname))
	if err != nil {
		return nil, wrapErr(err, "get domain %s", hostname)
	}
	return &d, nil
}

// CreateDomain inserts a binding. A primary binding demotes the tenant's
// current primary in the same transaction. The tenant row is share-locked so
// a concurrent deactivation either precedes the check or sees the binding.
func (s *Store) CreateDomain(ctx context.Context, d *tenant.Domain, allowInactive bool) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var active bool
		err := tx.QueryRow(ctx,
			`SELECT active FROM tenants WHERE id = $1 FOR SHARE`, d.TenantID,
		).Scan(&active)
		if err != nil {
			return wrapErr(err, "create domain %s: tenant %s", d.Hostname, d.TenantID)
		}
		if !active && !allowInactive {
			return fmt.Errorf("create domain %s: tenant %s is inactive: %w", d.Hostname, d.TenantID, domain.ErrInvalidState)
		}
		if d.IsPrimary {
			if _, err := tx.Exec(ctx,
				`UPDATE domains SET is_primary = FALSE WHERE tenant_id = $1 AND is_primary`,
				d.TenantID); err != nil {
				return fmt.Errorf("demote primary for tenant %s: %w", d.TenantID, err)
			}
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO domains (id, hostname, tenant_id, is_primary)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			d.ID, d.Hostname, d.TenantID, d.IsPrimary,
		).Scan(&d.CreatedAt)
		if err != nil {
			return wrapErr(err, "create domain %s", d.Hostname)
		}
		return nil
	})
}

// DeleteDomain removes a binding and returns it. Absent hostnames return (nil, nil).
func (s *Store) DeleteDomain(ctx context.Context, hostname string) (*tenant.Domain, error) {
	d, err := scanDomain(s.pool.QueryRow(ctx,
		`DELETE FROM domains WHERE hostname = $1 RETURNING `+domainColumns, hostname))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "delete domain %s", hostname)
	}
	return &d, nil
}

// ListDomainsByTenant returns a tenant's bindings, primary first, then by hostname.
func (s *Store) ListDomainsByTenant(ctx context.Context, tenantID string) ([]tenant.Domain, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+domainColumns+` FROM domains
		 WHERE tenant_id = $1 ORDER BY is_primary DESC, hostname ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list domains for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var result []tenant.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// SetPrimaryDomain makes hostname its tenant's only primary binding.
func (s *Store) SetPrimaryDomain(ctx context.Context, hostname string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var tenantID string
		err := tx.QueryRow(ctx,
			`SELECT tenant_id FROM domains WHERE hostname = $1 FOR UPDATE`, hostname,
		).Scan(&tenantID)
		if err != nil {
			return wrapErr(err, "set primary %s", hostname)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE domains SET is_primary = FALSE
			 WHERE tenant_id = $1 AND is_primary AND hostname <> $2`,
			tenantID, hostname); err != nil {
			return fmt.Errorf("demote primary for tenant %s: %w", tenantID, err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE domains SET is_primary = TRUE WHERE hostname = $1`, hostname)
		if err != nil {
			return fmt.Errorf("promote %s: %w", hostname, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("promote %s: %w", hostname, domain.ErrNotFound)
		}
		return nil
	})
}
