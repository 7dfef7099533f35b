package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/tenantgate/internal/scope"
)

// GetSetting returns a setting from the scope's partition.
func (s *Store) GetSetting(ctx context.Context, sc scope.Tenant, key string) (string, error) {
	var value string
	err := s.inPartition(ctx, sc, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`SELECT value FROM `+sc.Table("settings")+` WHERE key = $1`, key,
		).Scan(&value)
	})
	if err != nil {
		return "", wrapErr(err, "get setting %s in %s", key, sc.Partition())
	}
	return value, nil
}

// PutSetting inserts or replaces a setting in the scope's partition.
func (s *Store) PutSetting(ctx context.Context, sc scope.Tenant, key, value string) error {
	err := s.inPartition(ctx, sc, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO `+sc.Table("settings")+` (key, value, updated_at)
			 VALUES ($1, $2, now())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("put setting %s in %s: %w", key, sc.Partition(), err)
	}
	return nil
}

// DeleteSetting removes a setting from the scope's partition.
func (s *Store) DeleteSetting(ctx context.Context, sc scope.Tenant, key string) error {
	return s.inPartition(ctx, sc, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM `+sc.Table("settings")+` WHERE key = $1`, key)
		return execExpectOne(tag, err, "delete setting %s in %s", key, sc.Partition())
	})
}

// CountSettingsIn counts settings rows in an explicitly named partition. It
// requires the platform context and never touches search_path.
func (s *Store) CountSettingsIn(ctx context.Context, u scope.Unscoped, partition string) (int, error) {
	if !u.Valid() {
		return 0, scope.ErrNoScope
	}
	table, err := u.Table(partition, "settings")
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count settings in %s: %w", partition, err)
	}
	return n, nil
}
