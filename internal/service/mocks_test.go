package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/domain/tenant"
	"github.com/Strob0t/tenantgate/internal/port/broadcast"
	"github.com/Strob0t/tenantgate/internal/port/cache"
	"github.com/Strob0t/tenantgate/internal/port/database"
	"github.com/Strob0t/tenantgate/internal/scope"
)

var (
	_ database.Store           = (*mockStore)(nil)
	_ database.PartitionEngine = (*mockEngine)(nil)
	_ database.SettingsStore   = (*mockSettings)(nil)
	_ cache.Cache              = (*memCache)(nil)
	_ broadcast.Broadcaster    = (*recordingBroadcaster)(nil)
)

// mockStore is an in-memory registry.
type mockStore struct {
	mu      sync.Mutex
	tenants map[string]tenant.Tenant
	domains map[string]tenant.Domain

	// Calls counts store reads made by the resolver path.
	getDomainCalls int
	getTenantCalls int

	// Error hooks inject failures.
	createTenantErr error
	deleteTenantErr error
	getDomainErr    error
	listDomainsErr  error
	getTenantDelay  time.Duration

	// getTenantHold, when set, parks the next GetTenant after it has read
	// the row: it signals entered and waits for release.
	getTenantHold *hold
}

type hold struct {
	entered chan struct{}
	release chan struct{}
}

func newHold() *hold {
	return &hold{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func newMockStore() *mockStore {
	return &mockStore{tenants: map[string]tenant.Tenant{}, domains: map[string]tenant.Domain{}}
}

func (m *mockStore) CreateTenant(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createTenantErr != nil {
		return m.createTenantErr
	}
	for _, x := range m.tenants {
		if x.Slug == t.Slug || x.Partition == t.Partition {
			return fmt.Errorf("create tenant %s: %w", t.Slug, domain.ErrConflict)
		}
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	m.tenants[t.ID] = *t
	return nil
}

func (m *mockStore) DeleteTenant(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteTenantErr != nil {
		return m.deleteTenantErr
	}
	if _, ok := m.tenants[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tenants, id)
	return nil
}

func (m *mockStore) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	m.getTenantCalls++
	delay := m.getTenantDelay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("get tenant %s: %w", id, ctx.Err())
		}
	}
	m.mu.Lock()
	t, ok := m.tenants[id]
	h := m.getTenantHold
	m.getTenantHold = nil
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	if h != nil {
		h.entered <- struct{}{}
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, fmt.Errorf("get tenant %s: %w", id, ctx.Err())
		}
	}
	return &t, nil
}

func (m *mockStore) holdNextGetTenant(h *hold) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getTenantHold = h
}

func (m *mockStore) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("get tenant by slug %s: %w", slug, domain.ErrNotFound)
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *mockStore) SetTenantActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Active = active
	m.tenants[id] = t
	return nil
}

func (m *mockStore) SetTenantPlan(_ context.Context, id string, plan tenant.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Plan = plan
	m.tenants[id] = t
	return nil
}

func (m *mockStore) GetDomain(_ context.Context, hostname string) (*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getDomainCalls++
	if m.getDomainErr != nil {
		return nil, m.getDomainErr
	}
	d, ok := m.domains[hostname]
	if !ok {
		return nil, fmt.Errorf("get domain %s: %w", hostname, domain.ErrNotFound)
	}
	return &d, nil
}

func (m *mockStore) CreateDomain(_ context.Context, d *tenant.Domain, allowInactive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[d.TenantID]
	if !ok {
		return fmt.Errorf("create domain %s: %w", d.Hostname, domain.ErrNotFound)
	}
	if !t.Active && !allowInactive {
		return fmt.Errorf("create domain %s: %w", d.Hostname, domain.ErrInvalidState)
	}
	if _, ok := m.domains[d.Hostname]; ok {
		return fmt.Errorf("create domain %s: %w", d.Hostname, domain.ErrConflict)
	}
	if d.IsPrimary {
		m.demoteLocked(d.TenantID)
	}
	d.CreatedAt = time.Now()
	m.domains[d.Hostname] = *d
	return nil
}

func (m *mockStore) demoteLocked(tenantID string) {
	for h, x := range m.domains {
		if x.TenantID == tenantID && x.IsPrimary {
			x.IsPrimary = false
			m.domains[h] = x
		}
	}
}

func (m *mockStore) DeleteDomain(_ context.Context, hostname string) (*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[hostname]
	if !ok {
		return nil, nil
	}
	delete(m.domains, hostname)
	return &d, nil
}

func (m *mockStore) ListDomainsByTenant(_ context.Context, tenantID string) ([]tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listDomainsErr != nil {
		return nil, m.listDomainsErr
	}
	var out []tenant.Domain
	for _, d := range m.domains {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].Hostname < out[j].Hostname
	})
	return out, nil
}

func (m *mockStore) SetPrimaryDomain(_ context.Context, hostname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.domains[hostname]
	if !ok {
		return domain.ErrNotFound
	}
	m.demoteLocked(d.TenantID)
	d.IsPrimary = true
	m.domains[hostname] = d
	return nil
}

// putTenant seeds a tenant directly, bypassing provisioning.
func (m *mockStore) putTenant(t tenant.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

func (m *mockStore) putDomain(d tenant.Domain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[d.Hostname] = d
}

func (m *mockStore) reads() (domains, tenants int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getDomainCalls, m.getTenantCalls
}

// mockEngine tracks partitions as a set.
type mockEngine struct {
	mu         sync.Mutex
	partitions map[string]bool

	createErr error
	// createLeaves simulates a failure reported after the schema was created.
	createLeaves bool
	dropErr      error
	dropped      []string
}

func newMockEngine() *mockEngine {
	return &mockEngine{partitions: map[string]bool{}}
}

func (e *mockEngine) CreatePartition(_ context.Context, p string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.partitions[p] {
		return fmt.Errorf("create partition %s: %w", p, domain.ErrConflict)
	}
	if e.createErr != nil {
		if e.createLeaves {
			e.partitions[p] = true
		}
		return e.createErr
	}
	e.partitions[p] = true
	return nil
}

func (e *mockEngine) DropPartition(_ context.Context, p string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropErr != nil {
		return e.dropErr
	}
	delete(e.partitions, p)
	e.dropped = append(e.dropped, p)
	return nil
}

func (e *mockEngine) PartitionExists(_ context.Context, p string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.partitions[p], nil
}

func (e *mockEngine) has(p string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.partitions[p]
}

// memCache is a thread-safe in-memory cache.Cache with failure switches.
type memCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	getErr    error
	setErr    error
	deleteErr error
	sets      int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *memCache) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr, c.setErr, c.deleteErr = err, err, err
}

// evictingCache adds a local tier on top of memCache.
type evictingCache struct {
	*memCache
	evicted []string
}

func (c *evictingCache) EvictLocal(_ context.Context, keys ...string) {
	c.evicted = append(c.evicted, keys...)
	for _, k := range keys {
		_ = c.memCache.Delete(context.Background(), k)
	}
}

// recordingBroadcaster keeps every published event.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
	err    error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, ev broadcast.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, ev := range b.events {
		out[i] = ev.Type
	}
	return out
}

// mockSettings stores settings per partition.
type mockSettings struct {
	mu    sync.Mutex
	data  map[string]map[string]string
	gets  int
	errFn func(partition string) error
	// afterGet runs once, after the next GetSetting has read its value.
	afterGet func()
}

func newMockSettings() *mockSettings {
	return &mockSettings{data: map[string]map[string]string{}}
}

func (m *mockSettings) GetSetting(_ context.Context, sc scope.Tenant, key string) (string, error) {
	m.mu.Lock()
	m.gets++
	v, ok := m.data[sc.Partition()][key]
	after := m.afterGet
	m.afterGet = nil
	m.mu.Unlock()
	if after != nil {
		after()
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *mockSettings) PutSetting(_ context.Context, sc scope.Tenant, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[sc.Partition()] == nil {
		m.data[sc.Partition()] = map[string]string{}
	}
	m.data[sc.Partition()][key] = value
	return nil
}

func (m *mockSettings) DeleteSetting(_ context.Context, sc scope.Tenant, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[sc.Partition()][key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.data[sc.Partition()], key)
	return nil
}

func (m *mockSettings) CountSettingsIn(_ context.Context, u scope.Unscoped, partition string) (int, error) {
	if !u.Valid() {
		return 0, scope.ErrNoScope
	}
	if m.errFn != nil {
		if err := m.errFn(partition); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data[partition]), nil
}

var errBackend = errors.New("backend unavailable")

// harness wires the services over the mocks the way cmd/tenantgate wires
// them over the real adapters.
type harness struct {
	store    *mockStore
	engine   *mockEngine
	cache    *memCache
	events   *recordingBroadcaster
	rc       *ResolutionCache
	resolver *Resolver
	parts    *PartitionService
	dir      *DirectoryService
}

func newHarness() *harness {
	h := &harness{
		store:  newMockStore(),
		engine: newMockEngine(),
		cache:  newMemCache(),
		events: &recordingBroadcaster{},
	}
	h.rc = NewResolutionCache(h.cache, h.store, 5*time.Minute, nil)
	h.resolver = NewResolver(h.rc, h.store, time.Second)
	h.parts = NewPartitionService(h.store, h.engine, h.rc, h.events)
	h.dir = NewDirectoryService(h.store, h.rc, h.events)
	return h
}
