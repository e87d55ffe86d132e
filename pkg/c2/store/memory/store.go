// Package memory implements store.Store with in-process maps, used by
// secchiware-c2 when no database host is configured and by the C2's
// own unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secchiware/secchiware/pkg/c2/store"
)

// Store implements store.Store with in-memory, mutex-guarded maps.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*store.Session
	executions map[string]*store.Execution
	reports    map[string]*store.Report
	// reportOrder preserves per-execution insertion order, since a Go
	// map iteration order is not stable.
	reportOrder map[string][]string

	sessionStore   *sessionStore
	executionStore *executionStore
	reportStore    *reportStore
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		sessions:    make(map[string]*store.Session),
		executions:  make(map[string]*store.Execution),
		reports:     make(map[string]*store.Report),
		reportOrder: make(map[string][]string),
	}
	s.sessionStore = &sessionStore{store: s}
	s.executionStore = &executionStore{store: s}
	s.reportStore = &reportStore{store: s}
	return s
}

func (s *Store) Sessions() store.SessionStore     { return s.sessionStore }
func (s *Store) Executions() store.ExecutionStore { return s.executionStore }
func (s *Store) Reports() store.ReportStore       { return s.reportStore }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the memory store.
func (s *Store) Ping(ctx context.Context) error { return nil }

type sessionStore struct{ store *Store }

func (s *sessionStore) Create(ctx context.Context, session *store.Session) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	for _, existing := range s.store.sessions {
		if existing.Active() && existing.EnvIP == session.EnvIP && existing.EnvPort == session.EnvPort {
			return store.ErrActiveSessionConflict
		}
	}

	sessionCopy := *session
	s.store.sessions[session.ID] = &sessionCopy
	return nil
}

func (s *sessionStore) Get(ctx context.Context, id string) (*store.Session, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	session, ok := s.store.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

func (s *sessionStore) Close(ctx context.Context, id string, endedAt time.Time) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	session, ok := s.store.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	end := endedAt
	session.SessionEnd = &end
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	session, ok := s.store.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if session.Active() {
		return store.ErrSessionActive
	}

	var doomedExecutions []string
	for execID, exec := range s.store.executions {
		if exec.SessionID == id {
			doomedExecutions = append(doomedExecutions, execID)
		}
	}
	for _, execID := range doomedExecutions {
		for _, reportID := range s.store.reportOrder[execID] {
			delete(s.store.reports, reportID)
		}
		delete(s.store.reportOrder, execID)
		delete(s.store.executions, execID)
	}
	delete(s.store.sessions, id)
	return nil
}

func (s *sessionStore) List(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var matched []*store.Session
	for _, session := range s.store.sessions {
		if !sessionMatches(session, filter) {
			continue
		}
		sessionCopy := *session
		matched = append(matched, &sessionCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].SessionStart.Before(matched[j].SessionStart)
		if filter.Arrange == store.Descending {
			return !less
		}
		return less
	})

	return paginateSessions(matched, filter.Limit, filter.Offset), nil
}

func sessionMatches(session *store.Session, filter store.SessionFilter) bool {
	if len(filter.IDs) > 0 && !containsString(filter.IDs, session.ID) {
		return false
	}
	if len(filter.IPs) > 0 && !containsString(filter.IPs, session.EnvIP) {
		return false
	}
	if len(filter.Ports) > 0 && !containsInt(filter.Ports, session.EnvPort) {
		return false
	}
	if len(filter.SystemNames) > 0 && !containsString(filter.SystemNames, session.Platform.OSSystem) {
		return false
	}
	if filter.ActiveOnly && !session.Active() {
		return false
	}
	if filter.StartAfter != nil && session.SessionStart.Before(*filter.StartAfter) {
		return false
	}
	if filter.StartBefore != nil && session.SessionStart.After(*filter.StartBefore) {
		return false
	}
	return true
}

func paginateSessions(sessions []*store.Session, limit, offset int) []*store.Session {
	if offset >= len(sessions) {
		return []*store.Session{}
	}
	sessions = sessions[offset:]
	if limit > 0 && limit < len(sessions) {
		sessions = sessions[:limit]
	}
	return sessions
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type executionStore struct{ store *Store }

func (e *executionStore) Create(ctx context.Context, execution *store.Execution) error {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()

	if _, ok := e.store.sessions[execution.SessionID]; !ok {
		return store.ErrNotFound
	}

	execCopy := *execution
	e.store.executions[execution.ID] = &execCopy
	return nil
}

func (e *executionStore) Get(ctx context.Context, id string) (*store.Execution, error) {
	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	exec, ok := e.store.executions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	execCopy := *exec
	return &execCopy, nil
}

func (e *executionStore) List(ctx context.Context, filter store.ExecutionFilter) ([]*store.Execution, error) {
	e.store.mu.RLock()
	defer e.store.mu.RUnlock()

	var matched []*store.Execution
	for _, exec := range e.store.executions {
		if !executionMatches(exec, filter) {
			continue
		}
		execCopy := *exec
		matched = append(matched, &execCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		less := matched[i].TimestampRegistered.Before(matched[j].TimestampRegistered)
		if filter.Arrange == store.Descending {
			return !less
		}
		return less
	})

	if filter.Offset >= len(matched) {
		return []*store.Execution{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func executionMatches(exec *store.Execution, filter store.ExecutionFilter) bool {
	if len(filter.IDs) > 0 && !containsString(filter.IDs, exec.ID) {
		return false
	}
	if len(filter.SessionIDs) > 0 && !containsString(filter.SessionIDs, exec.SessionID) {
		return false
	}
	if filter.RegisteredAfter != nil && exec.TimestampRegistered.Before(*filter.RegisteredAfter) {
		return false
	}
	if filter.RegisteredBefore != nil && exec.TimestampRegistered.After(*filter.RegisteredBefore) {
		return false
	}
	return true
}

type reportStore struct{ store *Store }

func (r *reportStore) Create(ctx context.Context, report *store.Report) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.executions[report.ExecutionID]; !ok {
		return store.ErrNotFound
	}

	reportCopy := *report
	r.store.reports[report.ID] = &reportCopy
	r.store.reportOrder[report.ExecutionID] = append(r.store.reportOrder[report.ExecutionID], report.ID)
	return nil
}

func (r *reportStore) ListByExecution(ctx context.Context, executionID string) ([]*store.Report, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := r.store.reportOrder[executionID]
	out := make([]*store.Report, 0, len(ids))
	for _, id := range ids {
		reportCopy := *r.store.reports[id]
		out = append(out, &reportCopy)
	}
	return out, nil
}
