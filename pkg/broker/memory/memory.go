// Package memory implements broker.Broker as an in-process store
// guarded by a single sync.Mutex. It backs secchiware-c2 when the broker
// type is "memory" (or unset) and unit tests that don't need a real Redis.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/secchiware/secchiware/pkg/broker"
)

type entry struct {
	value  []byte
	expiry time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

type lock struct {
	token  string
	expiry time.Time
}

// Broker is an in-memory implementation of broker.Broker.
type Broker struct {
	mu      sync.Mutex
	values  map[string]entry
	locks   map[string]lock
	counter map[string]entry // entry.value holds the count as 8 little-endian bytes; see encodeInt64/decodeInt64
}

// New creates an empty in-memory broker.
func New() *Broker {
	return &Broker{
		values:  make(map[string]entry),
		locks:   make(map[string]lock),
		counter: make(map[string]entry),
	}
}

func (b *Broker) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.values[key]
	if !ok || e.expired(time.Now()) {
		delete(b.values, key)
		return nil, broker.ErrNotFound
	}
	return e.value, nil
}

func (b *Broker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiry = time.Now().Add(ttl)
	}
	b.values[key] = e
	return nil
}

func (b *Broker) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}

func (b *Broker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if l, ok := b.locks[name]; ok && now.Before(l.expiry) {
		return "", broker.ErrLockHeld
	}

	token := newToken()
	b.locks[name] = lock{token: token, expiry: now.Add(ttl)}
	return token, nil
}

func (b *Broker) Release(ctx context.Context, name, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[name]
	if !ok || l.token != token || time.Now().After(l.expiry) {
		return broker.ErrLockLost
	}
	delete(b.locks, name)
	return nil
}

func (b *Broker) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	e, ok := b.counter[key]
	if !ok || e.expired(now) {
		e = entry{value: encodeInt64(1)}
		if ttl > 0 {
			e.expiry = now.Add(ttl)
		}
		b.counter[key] = e
		return 1, nil
	}

	n := decodeInt64(e.value) + 1
	e.value = encodeInt64(n)
	b.counter[key] = e
	return n, nil
}

func newToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func encodeInt64(n int64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(n >> (8 * i))
	}
	return buf
}

func decodeInt64(b []byte) int64 {
	var n int64
	for i := 0; i < 8 && i < len(b); i++ {
		n |= int64(b[i]) << (8 * i)
	}
	return n
}
