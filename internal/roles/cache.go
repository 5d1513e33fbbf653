package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-school/odyssey-school/internal/access"
)

// Source resolves the persisted role of a user.
type Source interface {
	CurrentRole(ctx context.Context, userID string) (access.Role, error)
}

// CachedSource fronts a Source with Redis. Concurrent misses for the same user
// share one backing lookup.
type CachedSource struct {
	client  *redis.Client
	backing Source
	ttl     time.Duration
	group   singleflight.Group
}

// NewCachedSource instantiates the cache helper.
func NewCachedSource(client *redis.Client, backing Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSource{client: client, backing: backing, ttl: ttl}
}

const lookupTimeout = 5 * time.Second

func cacheKey(userID string) string {
	return "roles:user:" + userID
}

// CurrentRole returns the cached role or loads it from the backing source. A
// Redis outage degrades to direct lookups.
func (c *CachedSource) CurrentRole(ctx context.Context, userID string) (access.Role, error) {
	if c.client != nil {
		raw, err := c.client.Get(ctx, cacheKey(userID)).Result()
		switch {
		case err == nil:
			if role, perr := access.ParseRole(raw); perr == nil {
				return role, nil
			}
		case !errors.Is(err, redis.Nil) && ctx.Err() != nil:
			return "", ctx.Err()
		}
	}

	ch := c.group.DoChan(userID, func() (any, error) {
		// Shared by every waiter, so it must outlive the first caller's context.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		role, err := c.backing.CurrentRole(lctx, userID)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			_ = c.client.Set(lctx, cacheKey(userID), string(role), c.ttl).Err()
		}
		return role, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(access.Role), nil
	}
}

// Invalidate drops the cached role for userID.
func (c *CachedSource) Invalidate(ctx context.Context, userID string) error {
	if c.client == nil {
		return nil
	}
	c.group.Forget(userID)
	if err := c.client.Del(ctx, cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("roles: invalidate cache: %w", err)
	}
	return nil
}

var _ access.RoleSource = (*CachedSource)(nil)
