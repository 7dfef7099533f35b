package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/tenantgate/internal/scope"
)

// inPartition runs fn in a transaction whose search_path is the scope's
// partition alone. The setting is transaction-local, so the pooled connection
// carries nothing over to the next request. Queries should still qualify
// tables through sc.Table; the search_path only catches unqualified names.
func (s *Store) inPartition(ctx context.Context, sc scope.Tenant, fn func(tx pgx.Tx) error) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`,
			pgx.Identifier{sc.Partition()}.Sanitize()); err != nil {
			return fmt.Errorf("bind partition %s: %w", sc.Partition(), err)
		}
		return fn(tx)
	})
}
