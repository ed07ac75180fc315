package parcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsvc/internal/par"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedis(rdb, "par:")
}

func TestRedisPutGet(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()
	now := time.Now()
	mr.SetTime(now)

	req := par.PushedAuthRequest{
		ID: "abc", ClientID: "app1", TenantID: 7,
		ExpiresAt:  now.Add(60 * time.Second).UnixMilli(),
		Parameters: map[string]string{"scope": "openid"},
	}
	require.NoError(t, c.Put(ctx, req.ID, req, req.TenantID))

	assert.True(t, mr.Exists("par:request:7:abc"))
	ttl := mr.TTL("par:request:7:abc")
	assert.InDelta(t, 60*time.Second, ttl, float64(time.Second))

	got, err := c.Get(ctx, "abc", 7)
	require.NoError(t, err)
	assert.Equal(t, req, got)

	_, err = c.Get(ctx, "abc", 8)
	assert.ErrorIs(t, err, par.ErrRequestNotFound, "other tenant")
}

func TestRedisEntryExpires(t *testing.T) {
	mr, c := newRedis(t)
	ctx := context.Background()
	now := time.Now()
	mr.SetTime(now)

	req := par.PushedAuthRequest{ID: "abc", TenantID: 7, ExpiresAt: now.Add(time.Second).UnixMilli()}
	require.NoError(t, c.Put(ctx, req.ID, req, req.TenantID))

	mr.FastForward(2 * time.Second)
	_, err := c.Get(ctx, "abc", 7)
	assert.ErrorIs(t, err, par.ErrRequestNotFound)
}

func TestRedisPutFailsWhenUnavailable(t *testing.T) {
	mr, c := newRedis(t)
	mr.Close()

	err := c.Put(context.Background(), "abc", par.PushedAuthRequest{ID: "abc"}, 7)
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	req := par.PushedAuthRequest{
		ID: "abc", TenantID: 7, ExpiresAt: now.Add(time.Minute).UnixMilli(),
		Parameters: map[string]string{"scope": "openid"},
	}
	require.NoError(t, m.Put(ctx, "abc", req, 7))
	req.Parameters["scope"] = "mutated"

	got, err := m.Get(ctx, "abc", 7)
	require.NoError(t, err)
	assert.Equal(t, "openid", got.Parameters["scope"])

	_, err = m.Get(ctx, "abc", 1)
	assert.ErrorIs(t, err, par.ErrRequestNotFound)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "abc", 7)
	assert.ErrorIs(t, err, par.ErrRequestNotFound)
}
