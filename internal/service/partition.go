package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	cfotel "github.com/Strob0t/tenantgate/internal/adapter/otel"
	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
	"github.com/Strob0t/tenantgate/internal/port/database"
)

// PartitionService owns the tenant registry and the physical partitions.
// Every registry mutation invalidates the routing cache before it returns.
type PartitionService struct {
	store   database.Store
	engine  database.PartitionEngine
	cache   *ResolutionCache
	events  broadcast.Broadcaster
	metrics *cfotel.Metrics
}

// NewPartitionService creates a PartitionService.
func NewPartitionService(store database.Store, engine database.PartitionEngine, cache *ResolutionCache, events broadcast.Broadcaster) *PartitionService {
	return &PartitionService{store: store, engine: engine, cache: cache, events: events}
}

// SetMetrics attaches metric instruments.
func (s *PartitionService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Provision registers a tenant and creates its partition. Either both exist
// afterwards or neither does.
//
// The registry row is written first so that its unique constraints decide
// races on the same slug. If the partition cannot be created the row is
// removed again and domain.ErrProvisioningFailure is returned; if that
// cleanup fails too, domain.ErrIntegrity is returned and an alarm is logged.
func (s *PartitionService) Provision(ctx context.Context, req tenant.ProvisionRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	partition, err := tenant.PartitionFor(req.Slug)
	if err != nil {
		return nil, err
	}

	ctx, span := cfotel.StartProvisionSpan(ctx, req.Slug)
	defer span.End()

	t := &tenant.Tenant{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Slug:      req.Slug,
		Partition: partition,
		Plan:      req.Plan,
		Active:    true,
	}
	if err := s.store.CreateTenant(ctx, t); err != nil {
		s.provisionFailed(ctx)
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("provision %s: slug already provisioned: %w", req.Slug, domain.ErrConflict)
		}
		return nil, fmt.Errorf("provision %s: register: %w", req.Slug, err)
	}

	if err := s.engine.CreatePartition(ctx, partition); err != nil {
		s.provisionFailed(ctx)
		span.RecordError(err)
		return nil, s.rollback(ctx, t, err)
	}

	if s.metrics != nil {
		s.metrics.Provisioned.Add(ctx, 1)
	}
	logger.From(ctx).Info("tenant provisioned", "tenant_id", t.ID, "slug", t.Slug, "partition", t.Partition, "plan", t.Plan)
	publish(ctx, s.events, broadcast.Event{Type: broadcast.EventProvisioned, TenantID: t.ID})
	return t, nil
}

func (s *PartitionService) provisionFailed(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.ProvisionFailures.Add(ctx, 1)
	}
}

// rollback undoes a registered tenant whose partition could not be created.
// A partition that already existed before this attempt is not ours to drop.
func (s *PartitionService) rollback(ctx context.Context, t *tenant.Tenant, cause error) error {
	rctx := context.WithoutCancel(ctx)

	var rbErr error
	if !errors.Is(cause, domain.ErrConflict) {
		exists, err := s.engine.PartitionExists(rctx, t.Partition)
		switch {
		case err != nil:
			rbErr = err
		case exists:
			rbErr = s.engine.DropPartition(rctx, t.Partition)
		}
	}
	if err := s.store.DeleteTenant(rctx, t.ID); err != nil {
		rbErr = errors.Join(rbErr, err)
	}

	if rbErr != nil {
		logger.Alarm(ctx, "provisioning rollback failed",
			"tenant_id", t.ID, "slug", t.Slug, "partition", t.Partition,
			"cause", cause.Error(), "rollback_error", rbErr.Error())
		return fmt.Errorf("provision %s: %w: partition: %v; rollback: %v", t.Slug, domain.ErrIntegrity, cause, rbErr)
	}
	logger.From(ctx).Warn("provisioning rolled back", "slug", t.Slug, "partition", t.Partition, "error", cause)
	return fmt.Errorf("provision %s: %w: %v", t.Slug, domain.ErrProvisioningFailure, cause)
}

// Get returns a tenant by id.
func (s *PartitionService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get tenant %q: %w", id, domain.ErrNotFound)
	}
	return s.store.GetTenant(ctx, id)
}

// GetBySlug returns a tenant by slug.
func (s *PartitionService) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return s.store.GetTenantBySlug(ctx, slug)
}

// List returns all tenants.
func (s *PartitionService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Deactivate marks a tenant inactive. Its partition and data are kept.
func (s *PartitionService) Deactivate(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.setActive(ctx, id, false)
}

// Activate reverses Deactivate.
func (s *PartitionService) Activate(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.setActive(ctx, id, true)
}

func (s *PartitionService) setActive(ctx context.Context, id string, active bool) (*tenant.Tenant, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTenantActive(ctx, id, active); err != nil {
		return nil, err
	}
	t.Active = active

	evType := broadcast.EventDeactivated
	if active {
		evType = broadcast.EventActivated
	}
	if err := s.invalidate(ctx, t, evType); err != nil {
		return t, err
	}
	logger.From(ctx).Info("tenant "+evType, "tenant_id", id, "slug", t.Slug)
	return t, nil
}

// ChangePlan moves a tenant to another subscription plan.
func (s *PartitionService) ChangePlan(ctx context.Context, id string, plan tenant.Plan) (*tenant.Tenant, error) {
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: unknown plan %q", domain.ErrValidation, plan)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetTenantPlan(ctx, id, plan); err != nil {
		return nil, err
	}
	t.Plan = plan
	if err := s.invalidate(ctx, t, broadcast.EventPlanChanged); err != nil {
		return t, err
	}
	logger.From(ctx).Info("tenant plan changed", "tenant_id", id, "slug", t.Slug, "plan", plan)
	return t, nil
}

// invalidate evicts the tenant's routes and announces the change. The
// registry change has already committed; a failed eviction is reported as
// domain.ErrInvalidationFailed.
func (s *PartitionService) invalidate(ctx context.Context, t *tenant.Tenant, evType string) error {
	hosts, err := s.cache.InvalidateTenant(ctx, t.ID)
	publish(ctx, s.events, broadcast.Event{Type: evType, TenantID: t.ID, Hostnames: hosts})
	if err != nil {
		if s.metrics != nil {
			s.metrics.InvalidationFails.Add(ctx, 1)
		}
		logger.From(ctx).Error("routing cache invalidation failed after commit",
			"tenant_id", t.ID, "event", evType, "error", err)
		return fmt.Errorf("%s tenant %s: %w: %w", evType, t.ID, domain.ErrInvalidationFailed, err)
	}
	return nil
}
