package preference

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-recommend/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-recommend/internal/preference/entity"
)

const cacheKeyPrefix = "user_profile:"

// CachedStore is a read-through Redis cache in front of a Store. Writes go
// to the backing store first and then replace the cached copy; read fills
// only populate an empty key, so a slow reader cannot overwrite a newer
// write. Cache failures are logged and never fail the request.
type CachedStore struct {
	next   Store
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewCachedStore(next Store, rdb *goredis.Client, ttl time.Duration, logger *zap.SugaredLogger) *CachedStore {
	return &CachedStore{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedStore) Find(ctx context.Context, userID string) (*entity.Profile, error) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+userID).Bytes()
	switch {
	case err == nil:
		var p entity.Profile
		if jerr := json.Unmarshal(raw, &p); jerr == nil {
			metrics.ProfileCache.WithLabelValues("hit").Inc()
			return &p, nil
		}
		c.logger.Warnw("discarding undecodable cached profile", "user_id", userID)
		metrics.ProfileCache.WithLabelValues("error").Inc()
	case errors.Is(err, goredis.Nil):
		metrics.ProfileCache.WithLabelValues("miss").Inc()
	default:
		c.logger.Warnw("profile cache get failed", "user_id", userID, "err", err)
		metrics.ProfileCache.WithLabelValues("error").Inc()
	}

	p, err := c.next.Find(ctx, userID)
	if err != nil || p == nil {
		return p, err
	}
	if raw, jerr := json.Marshal(p); jerr == nil {
		if serr := c.rdb.SetNX(ctx, cacheKeyPrefix+userID, raw, c.ttl).Err(); serr != nil {
			c.logger.Warnw("profile cache set failed", "user_id", userID, "err", serr)
		}
	}
	return p, nil
}

// FindPrimary reads the backing store, bypassing the cache. Read-modify-write
// cycles start from here.
func (c *CachedStore) FindPrimary(ctx context.Context, userID string) (*entity.Profile, error) {
	return c.next.Find(ctx, userID)
}

func (c *CachedStore) Upsert(ctx context.Context, p *entity.Profile) error {
	if err := c.next.Upsert(ctx, p); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		c.invalidate(ctx, p.UserID)
		return nil
	}
	if err := c.rdb.Set(ctx, cacheKeyPrefix+p.UserID, raw, c.ttl).Err(); err != nil {
		c.logger.Warnw("profile cache refresh failed", "user_id", p.UserID, "err", err)
		c.invalidate(ctx, p.UserID)
	}
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, userID string) (int64, error) {
	n, err := c.next.Delete(ctx, userID)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, userID)
	return n, nil
}

func (c *CachedStore) invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, cacheKeyPrefix+userID).Err(); err != nil {
		c.logger.Warnw("profile cache invalidate failed", "user_id", userID, "err", err)
	}
}
