// Package cache holds the Redis-backed tenant timezone lookup. Timezones
// change rarely but are read on every availability request, so a short TTL
// keeps the hot path off Postgres without a dedicated invalidation channel.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DesignCorporation/beauty-platform/services/schedule-service/internal/model"
)

const timezoneTTL = 5 * time.Minute

type tenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (model.Tenant, error)
}

type TimezoneCache struct {
	rdb    *redis.Client
	store  tenantStore
	logger *slog.Logger
}

func NewTimezoneCache(rdb *redis.Client, store tenantStore, logger *slog.Logger) *TimezoneCache {
	return &TimezoneCache{rdb: rdb, store: store, logger: logger}
}

func key(tenantID string) string { return "tz:" + tenantID }

// TenantTimezone serves from Redis when possible and falls back to the
// tenant store on any cache miss or Redis failure. Cache errors are logged
// and swallowed: availability must not depend on Redis being up.
func (c *TimezoneCache) TenantTimezone(ctx context.Context, tenantID string) (string, error) {
	if c.rdb != nil {
		tz, err := c.rdb.Get(ctx, key(tenantID)).Result()
		if err == nil && tz != "" {
			return tz, nil
		}
		if err != nil && err != redis.Nil {
			c.logger.Warn("timezone cache read failed", "error", err)
		}
	}

	tenant, err := c.store.GetTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key(tenantID), tenant.Timezone, timezoneTTL).Err(); err != nil {
			c.logger.Warn("timezone cache write failed", "error", err)
		}
	}
	return tenant.Timezone, nil
}

// Invalidate drops the cached entry, used when tenant settings change.
func (c *TimezoneCache) Invalidate(ctx context.Context, tenantID string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key(tenantID)).Err(); err != nil {
		c.logger.Warn("timezone cache invalidate failed", "error", err)
	}
}
