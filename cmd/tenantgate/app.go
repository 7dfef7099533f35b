package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	cfnats "github.com/Strob0t/tenantgate/internal/adapter/nats"
	"github.com/Strob0t/tenantgate/internal/adapter/natskv"
	cfotel "github.com/Strob0t/tenantgate/internal/adapter/otel"
	"github.com/Strob0t/tenantgate/internal/adapter/postgres"
	"github.com/Strob0t/tenantgate/internal/adapter/ristretto"
	"github.com/Strob0t/tenantgate/internal/adapter/tiered"
	"github.com/Strob0t/tenantgate/internal/config"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
	"github.com/Strob0t/tenantgate/internal/port/cache"
	"github.com/Strob0t/tenantgate/internal/resilience"
	"github.com/Strob0t/tenantgate/internal/service"
)

// app holds the wired infrastructure and services shared by the server and
// the admin commands.
type app struct {
	pool *pgxpool.Pool
	l1   *ristretto.Cache
	bus  *cfnats.Bus

	routes     *service.ResolutionCache
	resolver   *service.Resolver
	partitions *service.PartitionService
	directory  *service.DirectoryService
	settings   *service.SettingsService
	reports    *service.ReportService
}

// newApp connects to Postgres (optionally applying migrations) and NATS when
// configured, and wires the services over them. Without NATS the routing
// cache is process-local and lifecycle events are dropped.
func newApp(ctx context.Context, cfg *config.Config, migrate bool) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.pool = pool
	slog.Info("postgres connected")

	if migrate {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")
	}

	// Routing cache: ristretto L1, NATS KV L2 when NATS is configured.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("l1 cache: %w", err)
	}
	a.l1 = l1

	var c cache.Cache = l1
	var events broadcast.Broadcaster = broadcast.Nop{}
	if cfg.NATS.URL != "" {
		bus, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.EventsStream, processOrigin())
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.bus = bus

		l2, err := natskv.Open(ctx, bus.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("l2 cache: %w", err)
		}
		c = tiered.New(l1, l2, cfg.Cache.L1TTL)
		events = bus
		slog.Info("nats connected", "url", cfg.NATS.URL, "bucket", cfg.Cache.L2Bucket)
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	breaker.OnStateChange(func(from, to resilience.State) {
		slog.Warn("routing cache breaker state changed", "from", from.String(), "to", to.String())
	})

	// --- Services ---
	store := postgres.NewStore(pool)
	engine := postgres.NewEngine(pool)

	a.routes = service.NewResolutionCache(c, store, cfg.Cache.TTL, breaker)
	a.resolver = service.NewResolver(a.routes, store, cfg.Resolver.StoreTimeout)
	a.partitions = service.NewPartitionService(store, engine, a.routes, events)
	a.directory = service.NewDirectoryService(store, a.routes, events)
	a.settings = service.NewSettingsService(store, c, cfg.Cache.TTL)
	a.reports = service.NewReportService(store, store)

	ok = true
	return a, nil
}

func (a *app) setMetrics(m *cfotel.Metrics) {
	a.routes.SetMetrics(m)
	a.resolver.SetMetrics(m)
	a.partitions.SetMetrics(m)
	a.directory.SetMetrics(m)
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			slog.Warn("nats close failed", "error", err)
		}
	}
	if a.l1 != nil {
		a.l1.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// processOrigin identifies this process in published events.
func processOrigin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}
