package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/database"
	"github.com/Strob0t/tenantgate/internal/scope"
)

const reportConcurrency = 8

// PartitionCount is one row of a cross-partition report.
type PartitionCount struct {
	TenantID  string `json:"tenant_id"`
	Slug      string `json:"slug"`
	Partition string `json:"partition"`
	Settings  int    `json:"settings"`
}

// ReportService runs platform reports that read every partition. Its methods
// only accept the unscoped platform context.
type ReportService struct {
	tenants  database.TenantStore
	settings database.SettingsStore
}

// NewReportService creates a ReportService.
func NewReportService(tenants database.TenantStore, settings database.SettingsStore) *ReportService {
	return &ReportService{tenants: tenants, settings: settings}
}

// CountSettings returns the number of settings stored in each active
// tenant's partition, in registry order.
func (s *ReportService) CountSettings(ctx context.Context, u scope.Unscoped) ([]PartitionCount, error) {
	if !u.Valid() {
		return nil, scope.ErrNoScope
	}
	all, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return nil, err
	}
	tenants := all[:0:0]
	for _, t := range all {
		if t.Active {
			tenants = append(tenants, t)
		}
	}

	out := make([]PartitionCount, len(tenants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportConcurrency)
	for i := range tenants {
		t := tenants[i]
		g.Go(func() error {
			n, err := s.settings.CountSettingsIn(gctx, u, t.Partition)
			if err != nil {
				return fmt.Errorf("count settings for %s: %w", t.Slug, err)
			}
			out[i] = PartitionCount{TenantID: t.ID, Slug: t.Slug, Partition: t.Partition, Settings: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("cross-partition report", "report", "settings", "reason", u.Reason(), "partitions", len(out))
	return out, nil
}
