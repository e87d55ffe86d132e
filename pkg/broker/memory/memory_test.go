package memory

import (
	"context"
	"testing"
	"time"

	"github.com/secchiware/secchiware/pkg/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	b := New()

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

func TestSetExpiry(t *testing.T) {
	ctx := context.Background()
	b := New()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, broker.ErrNotFound)
}

func TestAcquireRelease(t *testing.T) {
	ctx := context.Background()
	b := New()

	token, err := b.Acquire(ctx, "lock:1.2.3.4:4900", time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = b.Acquire(ctx, "lock:1.2.3.4:4900", time.Second)
	assert.ErrorIs(t, err, broker.ErrLockHeld)

	require.NoError(t, b.Release(ctx, "lock:1.2.3.4:4900", token))

	token2, err := b.Acquire(ctx, "lock:1.2.3.4:4900", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestReleaseWrongToken(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.Acquire(ctx, "lock", time.Second)
	require.NoError(t, err)

	err = b.Release(ctx, "lock", "not-the-token")
	assert.ErrorIs(t, err, broker.ErrLockLost)
}

func TestAcquireExpiresNaturally(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.Acquire(ctx, "lock", 10*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = b.Acquire(ctx, "lock", time.Second)
	assert.NoError(t, err)
}

func TestIncr(t *testing.T) {
	ctx := context.Background()
	b := New()

	n, err := b.Incr(ctx, "nonce:Node:2024-01-01T00:00:00Z", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = b.Incr(ctx, "nonce:Node:2024-01-01T00:00:00Z", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIncrExpiryResets(t *testing.T) {
	ctx := context.Background()
	b := New()

	_, err := b.Incr(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	n, err := b.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
