package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRegistry(rdb), mr
}

func TestStatic(t *testing.T) {
	s := NewStatic("http://a:8081", " ", "http://b:8081 ")
	got, err := s.Instances(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []Instance{{ID: "http://a:8081", BaseURL: "http://a:8081"}, {ID: "http://b:8081", BaseURL: "http://b:8081"}}, got)

	empty, err := NewStatic().Instances(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisRegistry_RegisterAndList(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, "users", Instance{ID: "a", BaseURL: "http://a"}, time.Minute))
	require.NoError(t, reg.Register(ctx, "users", Instance{ID: "b", BaseURL: "http://b"}, 2*time.Minute))
	require.NoError(t, reg.Register(ctx, "other", Instance{ID: "c", BaseURL: "http://c"}, time.Minute))

	got, err := reg.Instances(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []Instance{{ID: "b", BaseURL: "http://b"}, {ID: "a", BaseURL: "http://a"}}, got)

	require.NoError(t, reg.Deregister(ctx, "users", "a"))
	got, err = reg.Instances(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []Instance{{ID: "b", BaseURL: "http://b"}}, got)
}

func TestRedisRegistry_ExpiredLeasesArePruned(t *testing.T) {
	reg, mr := newRegistry(t)
	ctx := context.Background()
	now := time.Now()
	reg.now = func() time.Time { return now }

	require.NoError(t, reg.Register(ctx, "users", Instance{ID: "a", BaseURL: "http://a"}, time.Second))
	now = now.Add(2 * time.Second)

	got, err := reg.Instances(ctx, "users")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, mr.Exists(instanceKey("users")))
}

func TestRedisRegistry_RejectsIncompleteInstance(t *testing.T) {
	reg, _ := newRegistry(t)
	err := reg.Register(context.Background(), "users", Instance{ID: "a"}, time.Second)
	assert.ErrorIs(t, err, ErrInvalidInstance)
}

func TestRedisRegistry_KeepAliveDeregistersOnCancel(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- reg.KeepAlive(ctx, "users", Instance{ID: "a", BaseURL: "http://a"}, 300*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		got, err := reg.Instances(context.Background(), "users")
		return err == nil && len(got) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	got, err := reg.Instances(context.Background(), "users")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisRegistry_RedisDown(t *testing.T) {
	reg, mr := newRegistry(t)
	mr.Close()
	_, err := reg.Instances(context.Background(), "users")
	assert.Error(t, err)
}

func TestRedisRegistry_FreshestLeaseFirst(t *testing.T) {
	reg, _ := newRegistry(t)
	ctx := context.Background()
	now := time.Now()
	reg.now = func() time.Time { return now }

	// "stale" stopped renewing; "live" renewed 20s later
	require.NoError(t, reg.Register(ctx, "users", Instance{ID: "stale", BaseURL: "http://stale"}, 30*time.Second))
	now = now.Add(20 * time.Second)
	require.NoError(t, reg.Register(ctx, "users", Instance{ID: "live", BaseURL: "http://live"}, 30*time.Second))

	got, err := reg.Instances(ctx, "users")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "live", got[0].ID)
}
