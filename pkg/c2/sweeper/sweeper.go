// Package sweeper implements the C2's background liveness prober of
// spec.md §4.4: periodically probes each active-node-table entry and,
// on sustained failure, closes its Session and removes the entry.
package sweeper

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/secchiware/secchiware/internal/logger"
	"github.com/secchiware/secchiware/internal/metrics"
	"github.com/secchiware/secchiware/pkg/c2/activetable"
	"github.com/secchiware/secchiware/pkg/c2/store"
	"github.com/secchiware/secchiware/pkg/signing"
)

// maxConcurrentProbes bounds how many nodes are probed at once, so a
// table with thousands of entries doesn't open thousands of sockets in
// the same tick.
const maxConcurrentProbes = 16

// attempts/backoff per spec.md §7's "recommended: 3 attempts,
// exponential 1->2->4s" retry policy for liveness probing.
const probeAttempts = 3

var probeBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Sweeper periodically probes every active entry with a signed
// GET /test_sets, closing the Session and removing the entry on
// sustained failure. Idempotent and safe to run on multiple C2
// workers: each closure goes through the same per-(ip,port) broker
// lock POST/DELETE /environments use.
type Sweeper struct {
	Table    *activetable.Table
	Sessions store.SessionStore
	Logger   logger.Logger

	KeyID  string
	Secret []byte

	Period time.Duration
	HTTP   *http.Client
}

// New creates a Sweeper. period <= 0 defaults to 30s.
func New(tbl *activetable.Table, sessions store.SessionStore, keyID string, secret []byte, period time.Duration, log logger.Logger) *Sweeper {
	if period <= 0 {
		period = 30 * time.Second
	}
	return &Sweeper{
		Table:    tbl,
		Sessions: sessions,
		Logger:   log,
		KeyID:    keyID,
		Secret:   secret,
		Period:   period,
		HTTP:     &http.Client{Timeout: 5 * time.Second},
	}
}

// Run blocks, sweeping every Period until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	endpoints, err := s.Table.List(ctx)
	if err != nil {
		s.Logger.Error("sweeper: list active endpoints", logger.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			if s.probe(gctx, ep.IP, ep.Port) {
				return nil
			}
			s.closeStale(ctx, ep.IP, ep.Port)
			return nil
		})
	}
	g.Wait()
}

// probe attempts a cheap signed GET /test_sets against the node,
// retrying with exponential backoff, and reports whether the node
// responded successfully within probeAttempts tries.
func (s *Sweeper) probe(ctx context.Context, ip string, port int) bool {
	url := "http://" + ip + ":" + strconv.Itoa(port) + "/test_sets"

	for attempt := 0; attempt < probeAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			signing.SignHTTPRequest(req, s.KeyID, s.Secret, nil, nil)
			resp, err := s.HTTP.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return true
				}
			}
		}

		if attempt < probeAttempts-1 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(probeBackoff[attempt]):
			}
		}
	}
	return false
}

func (s *Sweeper) closeStale(ctx context.Context, ip string, port int) {
	token, err := s.Table.Lock(ctx, ip, port)
	if err != nil {
		// Another worker is already handling this endpoint.
		return
	}
	defer s.Table.Unlock(ctx, ip, port, token)

	entry, err := s.Table.Get(ctx, ip, port)
	if err != nil {
		return
	}

	if err := s.Sessions.Close(ctx, entry.SessionID, time.Now().UTC()); err != nil {
		s.Logger.Error("sweeper: close stale session", logger.String("session_id", entry.SessionID), logger.Error(err))
	}
	if err := s.Table.Delete(ctx, ip, port); err != nil {
		s.Logger.Error("sweeper: remove stale entry", logger.Error(err))
		return
	}

	metrics.SessionsClosed.WithLabelValues("liveness").Inc()
	if endpoints, err := s.Table.List(ctx); err == nil {
		metrics.ActiveNodes.Set(float64(len(endpoints)))
	}

	s.Logger.Info("sweeper: closed unreachable node", logger.String("ip", ip), logger.String("port", strconv.Itoa(port)))
}
