// Package broker defines the shared cache/lock abstraction the C2
// depends on for its active-node table, distributed mutexes, and
// replay-prevention counters (spec.md §4.5). Any store offering these
// four primitives atomically satisfies the contract; pkg/broker/memory
// and pkg/broker/redis are the two implementations shipped here.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("broker: key not found")

// ErrLockHeld is returned by Acquire when the named mutex is already
// held by another token.
var ErrLockHeld = errors.New("broker: lock already held")

// ErrLockLost is returned by Release when the caller's token no longer
// matches the current holder (the lock expired and was re-acquired by
// someone else).
var ErrLockLost = errors.New("broker: lock token mismatch")

// Broker is the cache/lock abstraction of spec.md §4.5: get/set for
// active-node entries, acquire/release for named mutexes with fencing
// tokens, and incr for replay-prevention nonce counters.
type Broker interface {
	// Get returns the raw value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given time-to-live. A zero ttl
	// means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. It is not an error if key does not exist.
	Delete(ctx context.Context, key string) error

	// Acquire attempts to take the named mutex, returning a fencing
	// token on success. Returns ErrLockHeld if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, err error)

	// Release gives up the named mutex. Returns ErrLockLost if token
	// does not match the current holder (already expired and
	// re-acquired, or never held).
	Release(ctx context.Context, name, token string) error

	// Incr atomically increments the counter at key, setting ttl only
	// if this call created the key, and returns the resulting value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
