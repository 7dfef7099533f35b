package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/port/database"
)

// partitionTables is the DDL run inside every new partition schema. %s is the
// quoted schema identifier.
var partitionTables = []string{
	`CREATE TABLE %s.settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Engine creates and drops tenant partitions as PostgreSQL schemas.
type Engine struct {
	pool *pgxpool.Pool
}

var _ database.PartitionEngine = (*Engine)(nil)

// NewEngine creates a partition engine on pool.
func NewEngine(pool *pgxpool.Pool) *Engine {
	return &Engine{pool: pool}
}

// CreatePartition creates the schema and its tables in one transaction, so a
// failure leaves no schema behind. An existing schema returns domain.ErrConflict.
func (e *Engine) CreatePartition(ctx context.Context, partition string) error {
	if err := tenant.ValidatePartition(partition); err != nil {
		return err
	}
	ident := pgx.Identifier{partition}.Sanitize()

	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `CREATE SCHEMA `+ident); err != nil {
			return wrapErr(err, "create partition %s", partition)
		}
		for _, ddl := range partitionTables {
			if _, err := tx.Exec(ctx, fmt.Sprintf(ddl, ident)); err != nil {
				return fmt.Errorf("create partition %s tables: %w", partition, err)
			}
		}
		return nil
	})
}

// DropPartition removes an empty partition. A partition holding any settings
// rows is refused with domain.ErrInvalidState; tenants with data are only
// ever deactivated. Dropping a missing partition is a no-op.
func (e *Engine) DropPartition(ctx context.Context, partition string) error {
	if err := tenant.ValidatePartition(partition); err != nil {
		return err
	}
	ident := pgx.Identifier{partition}.Sanitize()

	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, partition,
		).Scan(&exists); err != nil {
			return fmt.Errorf("drop partition %s: %w", partition, err)
		}
		if !exists {
			return nil
		}

		var hasData bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+ident+`.settings)`).Scan(&hasData)
		if err != nil {
			return fmt.Errorf("drop partition %s: inspect: %w", partition, err)
		}
		if hasData {
			return fmt.Errorf("drop partition %s: not empty: %w", partition, domain.ErrInvalidState)
		}
		if _, err := tx.Exec(ctx, `DROP SCHEMA `+ident+` CASCADE`); err != nil {
			return fmt.Errorf("drop partition %s: %w", partition, err)
		}
		return nil
	})
}

// PartitionExists reports whether the schema exists.
func (e *Engine) PartitionExists(ctx context.Context, partition string) (bool, error) {
	var exists bool
	err := e.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, partition,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("partition exists %s: %w", partition, err)
	}
	return exists, nil
}
