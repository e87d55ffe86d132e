package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/secchiware/secchiware/pkg/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return New(client)
}

func TestRedisGetSet(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t)

	_, err := b.Get(ctx, "missing")
	assert.ErrorIs(t, err, broker.ErrNotFound)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, broker.ErrNotFound)
}

func TestRedisAcquireRelease(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t)

	token, err := b.Acquire(ctx, "environment:1.2.3.4:4900", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = b.Acquire(ctx, "environment:1.2.3.4:4900", time.Second)
	assert.ErrorIs(t, err, broker.ErrLockHeld)

	require.NoError(t, b.Release(ctx, "environment:1.2.3.4:4900", token))

	_, err = b.Acquire(ctx, "environment:1.2.3.4:4900", time.Second)
	assert.NoError(t, err)
}

func TestRedisReleaseWrongTokenIsFencedOff(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t)

	_, err := b.Acquire(ctx, "lock", time.Second)
	require.NoError(t, err)

	err = b.Release(ctx, "lock", "forged-token")
	assert.ErrorIs(t, err, broker.ErrLockLost)

	// the real holder can still release it afterwards
	token, err := b.Get(ctx, "lock:lock")
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx, "lock", string(token)))
}

func TestRedisIncr(t *testing.T) {
	ctx := context.Background()
	b := newTestBroker(t)

	n, err := b.Incr(ctx, "nonce:Node:2024-01-01T00:00:00Z", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.Incr(ctx, "nonce:Node:2024-01-01T00:00:00Z", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	b := New(client, WithKeyPrefix("secchiware"))

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	assert.True(t, mr.Exists("secchiware:k"))
}
