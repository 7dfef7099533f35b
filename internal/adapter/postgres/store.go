package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/tenantgate/internal/port/database"
)

// Store implements the registry, domain and settings ports using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ database.Store         = (*Store)(nil)
	_ database.SettingsStore = (*Store)(nil)
)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}
