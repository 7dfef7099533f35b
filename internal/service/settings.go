package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Strob0t/tenantgate/internal/domain"
	"github.com/Strob0t/tenantgate/internal/logger"
	"github.com/Strob0t/tenantgate/internal/port/cache"
	"github.com/Strob0t/tenantgate/internal/port/database"
	"github.com/Strob0t/tenantgate/internal/scope"
)

const maxSettingKeyLen = 128

// SettingsService reads and writes tenant settings stored inside the
// tenant's partition. Cached values are keyed by the partition so equal keys
// of different tenants never share an entry.
type SettingsService struct {
	store database.SettingsStore
	cache cache.Cache
	ttl   time.Duration
	// epoch counts evictions; a fill that raced one is dropped.
	epoch atomic.Uint64
}

// NewSettingsService creates a SettingsService. c may be nil to disable caching.
func NewSettingsService(store database.SettingsStore, c cache.Cache, ttl time.Duration) *SettingsService {
	return &SettingsService{store: store, cache: c, ttl: ttl}
}

func settingCacheKey(sc scope.Tenant, key string) string {
	return sc.CacheKey("setting", key)
}

func validateSettingKey(key string) error {
	if key == "" || len(key) > maxSettingKeyLen || strings.ContainsAny(key, " \t\n/") {
		return fmt.Errorf("%w: invalid setting key %q", domain.ErrValidation, key)
	}
	return nil
}

// Get returns a setting of the scoped tenant.
func (s *SettingsService) Get(ctx context.Context, sc scope.Tenant, key string) (string, error) {
	if err := sc.Validate(); err != nil {
		return "", err
	}
	if err := validateSettingKey(key); err != nil {
		return "", err
	}

	ck := settingCacheKey(sc, key)
	if s.cache != nil {
		if v, ok, err := s.cache.Get(ctx, ck); err == nil && ok {
			return string(v), nil
		} else if err != nil {
			logger.From(ctx).Debug("settings cache unavailable", "error", err)
		}
	}

	epoch := s.epoch.Load()
	v, err := s.store.GetSetting(ctx, sc, key)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.fill(ctx, ck, v, epoch)
	}
	return v, nil
}

// fill caches v unless a write evicted the key since epoch was read.
func (s *SettingsService) fill(ctx context.Context, ck, v string, epoch uint64) {
	if s.epoch.Load() != epoch {
		return
	}
	if err := s.cache.Set(ctx, ck, []byte(v), s.ttl); err != nil {
		return
	}
	if s.epoch.Load() != epoch {
		_ = s.cache.Delete(ctx, ck)
	}
}

// Put stores a setting of the scoped tenant.
func (s *SettingsService) Put(ctx context.Context, sc scope.Tenant, key, value string) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := validateSettingKey(key); err != nil {
		return err
	}
	if err := s.store.PutSetting(ctx, sc, key, value); err != nil {
		return err
	}
	s.evict(ctx, sc, key)
	return nil
}

// Delete removes a setting of the scoped tenant.
func (s *SettingsService) Delete(ctx context.Context, sc scope.Tenant, key string) error {
	if err := sc.Validate(); err != nil {
		return err
	}
	if err := validateSettingKey(key); err != nil {
		return err
	}
	if err := s.store.DeleteSetting(ctx, sc, key); err != nil {
		return err
	}
	s.evict(ctx, sc, key)
	return nil
}

func (s *SettingsService) evict(ctx context.Context, sc scope.Tenant, key string) {
	if s.cache == nil {
		return
	}
	s.epoch.Add(1)
	if err := s.cache.Delete(ctx, settingCacheKey(sc, key)); err != nil {
		logger.From(ctx).Warn("settings cache eviction failed", "key", key, "error", err)
	}
}
