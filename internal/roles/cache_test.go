package roles

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-school/odyssey-school/internal/access"
	"github.com/odyssey-school/odyssey-school/internal/shared"
)

type memoryRoles struct {
	mu    sync.Mutex
	roles map[string]access.Role
	calls atomic.Int32
	delay time.Duration
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{roles: map[string]access.Role{"1": access.RoleAdmin, "2": access.RoleTeacher, "3": access.RoleParent}}
}

func (m *memoryRoles) CurrentRole(ctx context.Context, userID string) (access.Role, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func (m *memoryRoles) UpdateRole(ctx context.Context, userID string, role access.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[userID]; !ok {
		return shared.ErrNotFound
	}
	m.roles[userID] = role
	return nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCachedSourceCachesLookups(t *testing.T) {
	mr, client := newRedis(t)
	backing := newMemoryRoles()
	cache := NewCachedSource(client, backing, time.Minute)
	ctx := context.Background()

	role, err := cache.CurrentRole(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, access.RoleTeacher, role)

	cached, err := mr.Get("roles:user:2")
	require.NoError(t, err)
	assert.Equal(t, "TEACHER", cached)
	assert.Equal(t, time.Minute, mr.TTL("roles:user:2"))

	role, err = cache.CurrentRole(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, access.RoleTeacher, role)
	assert.EqualValues(t, 1, backing.calls.Load())
}

func TestCachedSourceInvalidate(t *testing.T) {
	mr, client := newRedis(t)
	backing := newMemoryRoles()
	cache := NewCachedSource(client, backing, time.Minute)
	ctx := context.Background()

	_, err := cache.CurrentRole(ctx, "2")
	require.NoError(t, err)
	require.NoError(t, backing.UpdateRole(ctx, "2", access.RoleParent))
	require.NoError(t, cache.Invalidate(ctx, "2"))
	assert.False(t, mr.Exists("roles:user:2"))

	role, err := cache.CurrentRole(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, access.RoleParent, role)
}

func TestCachedSourceIgnoresCorruptEntries(t *testing.T) {
	mr, client := newRedis(t)
	backing := newMemoryRoles()
	cache := NewCachedSource(client, backing, time.Minute)
	require.NoError(t, mr.Set("roles:user:1", "SUPERUSER"))

	role, err := cache.CurrentRole(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, role)
	assert.EqualValues(t, 1, backing.calls.Load())
}

func TestCachedSourceSurvivesRedisOutage(t *testing.T) {
	mr, client := newRedis(t)
	backing := newMemoryRoles()
	cache := NewCachedSource(client, backing, time.Minute)
	mr.Close()

	role, err := cache.CurrentRole(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, access.RoleParent, role)
}

func TestCachedSourceWithoutRedis(t *testing.T) {
	backing := newMemoryRoles()
	cache := NewCachedSource(nil, backing, 0)

	role, err := cache.CurrentRole(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, access.RoleAdmin, role)
	assert.NoError(t, cache.Invalidate(context.Background(), "1"))

	_, err = cache.CurrentRole(context.Background(), "404")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestCachedSourceCollapsesConcurrentMisses(t *testing.T) {
	backing := newMemoryRoles()
	backing.delay = 50 * time.Millisecond
	cache := NewCachedSource(nil, backing, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			role, err := cache.CurrentRole(context.Background(), "2")
			assert.NoError(t, err)
			assert.Equal(t, access.RoleTeacher, role)
		}()
	}
	wg.Wait()
	assert.Less(t, backing.calls.Load(), int32(8))
}

func TestCachedSourceHonoursCallerContext(t *testing.T) {
	backing := newMemoryRoles()
	backing.delay = 200 * time.Millisecond
	cache := NewCachedSource(nil, backing, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.CurrentRole(ctx, "1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
