// Package activetable implements the C2's active-node table of
// spec.md §4.4: a broker-resident map from (ip, port) to the session
// currently open for that endpoint. It is the single source of truth
// for "is this node reachable now?", kept distinct from the relational
// history in pkg/c2/store.
package activetable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/broker"
	"github.com/secchiware/secchiware/pkg/c2/store"
)

// indexKey names the broker entry holding the set of endpoints
// currently present in the table. The broker contract (§4.5) offers no
// native key enumeration primitive, so the table maintains this index
// itself to support the GET /environments listing endpoint.
const indexKey = "active-node:index"

const indexLockTTL = 5 * time.Second

// Entry is the value stored per (ip, port).
type Entry struct {
	SessionID    string             `json:"session_id"`
	SessionStart time.Time          `json:"session_start"`
	Platform     store.PlatformInfo `json:"platform"`
	// KeyID is the keyId that registered this endpoint, so a later
	// DELETE can be checked against the identity that opened it.
	KeyID string `json:"key_id"`
}

// Table wraps a broker.Broker with the (ip, port) keying and per-key
// locking spec.md §4.4 requires: POST and DELETE /environments each
// take the named mutex for the endpoint before reading or writing it.
type Table struct {
	brk      broker.Broker
	lockTTL  time.Duration
	entryTTL time.Duration
}

// New creates a Table backed by brk. entryTTL bounds how long a stale
// entry survives if its owning node is killed without a liveness sweep
// ever running; lockTTL bounds how long one writer may hold the
// per-endpoint mutex.
func New(brk broker.Broker, entryTTL, lockTTL time.Duration) *Table {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	return &Table{brk: brk, entryTTL: entryTTL, lockTTL: lockTTL}
}

func key(ip string, port int) string {
	return fmt.Sprintf("active-node:%s:%d", ip, port)
}

// Lock acquires the per-(ip, port) mutex, returning a fencing token to
// pass to Unlock. Callers MUST hold this lock around any Get+Set/Delete
// sequence against the same endpoint.
func (t *Table) Lock(ctx context.Context, ip string, port int) (string, error) {
	start := time.Now()
	token, err := t.brk.Acquire(ctx, "lock:"+key(ip, port), t.lockTTL)
	metrics.BrokerLockWaitSeconds.Observe(time.Since(start).Seconds())
	return token, err
}

// Unlock releases a lock acquired by Lock.
func (t *Table) Unlock(ctx context.Context, ip string, port int, token string) error {
	return t.brk.Release(ctx, "lock:"+key(ip, port), token)
}

// Get returns the active entry for (ip, port), or broker.ErrNotFound.
func (t *Table) Get(ctx context.Context, ip string, port int) (*Entry, error) {
	raw, err := t.brk.Get(ctx, key(ip, port))
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("activetable: decode entry: %w", err)
	}
	return &e, nil
}

// Put inserts or replaces the active entry for (ip, port).
func (t *Table) Put(ctx context.Context, ip string, port int, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("activetable: encode entry: %w", err)
	}
	if err := t.brk.Set(ctx, key(ip, port), raw, t.entryTTL); err != nil {
		return err
	}
	return t.addToIndex(ctx, ip, port)
}

// Delete removes the active entry for (ip, port). Not an error if
// absent.
func (t *Table) Delete(ctx context.Context, ip string, port int) error {
	if err := t.brk.Delete(ctx, key(ip, port)); err != nil {
		return err
	}
	return t.removeFromIndex(ctx, ip, port)
}

// Endpoint identifies a node by its registered (ip, port).
type Endpoint struct {
	IP   string
	Port int
}

// List returns every endpoint currently present in the table. Entries
// whose TTL expired between the index read and the per-key lookup are
// silently skipped rather than erroring.
func (t *Table) List(ctx context.Context) ([]Endpoint, error) {
	endpoints, err := t.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	live := endpoints[:0]
	for _, ep := range endpoints {
		if _, err := t.Get(ctx, ep.IP, ep.Port); err != nil {
			if errors.Is(err, broker.ErrNotFound) {
				continue
			}
			return nil, err
		}
		live = append(live, ep)
	}
	return live, nil
}

func (t *Table) readIndex(ctx context.Context) ([]Endpoint, error) {
	raw, err := t.brk.Get(ctx, indexKey)
	if errors.Is(err, broker.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var endpoints []Endpoint
	if err := json.Unmarshal(raw, &endpoints); err != nil {
		return nil, fmt.Errorf("activetable: decode index: %w", err)
	}
	return endpoints, nil
}

func (t *Table) addToIndex(ctx context.Context, ip string, port int) error {
	token, err := t.brk.Acquire(ctx, "lock:"+indexKey, indexLockTTL)
	if err != nil {
		return err
	}
	defer t.brk.Release(ctx, "lock:"+indexKey, token)

	endpoints, err := t.readIndex(ctx)
	if err != nil {
		return err
	}
	for _, ep := range endpoints {
		if ep.IP == ip && ep.Port == port {
			return nil
		}
	}
	endpoints = append(endpoints, Endpoint{IP: ip, Port: port})
	return t.writeIndex(ctx, endpoints)
}

func (t *Table) removeFromIndex(ctx context.Context, ip string, port int) error {
	token, err := t.brk.Acquire(ctx, "lock:"+indexKey, indexLockTTL)
	if err != nil {
		return err
	}
	defer t.brk.Release(ctx, "lock:"+indexKey, token)

	endpoints, err := t.readIndex(ctx)
	if err != nil {
		return err
	}
	out := endpoints[:0]
	for _, ep := range endpoints {
		if ep.IP == ip && ep.Port == port {
			continue
		}
		out = append(out, ep)
	}
	return t.writeIndex(ctx, out)
}

func (t *Table) writeIndex(ctx context.Context, endpoints []Endpoint) error {
	raw, err := json.Marshal(endpoints)
	if err != nil {
		return fmt.Errorf("activetable: encode index: %w", err)
	}
	return t.brk.Set(ctx, indexKey, raw, 0)
}
