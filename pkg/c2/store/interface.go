package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup by ID finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrActiveSessionConflict is returned by CreateSession when an active
// session already exists for the (ip, port) tuple (I1).
var ErrActiveSessionConflict = errors.New("store: an active session already exists for this (ip, port)")

// ErrSessionActive is returned by DeleteSession when the session has
// not been closed yet; an active session must not be deletable.
var ErrSessionActive = errors.New("store: session is still active")

// SessionStore persists Session rows.
type SessionStore interface {
	// Create inserts a new, active session. Returns ErrActiveSessionConflict
	// if one is already active for session.EnvIP/session.EnvPort.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*Session, error)

	// Close sets session_end = endedAt on the session, making it inactive.
	Close(ctx context.Context, id string, endedAt time.Time) error

	// Delete removes a session and cascades to its executions and
	// reports. Returns ErrSessionActive if the session is still active.
	Delete(ctx context.Context, id string) error

	// List returns sessions matching filter in ascending order (oldest
	// session start first by default) unless filter.Arrange is Descending.
	List(ctx context.Context, filter SessionFilter) ([]*Session, error)
}

// ExecutionStore persists Execution rows.
type ExecutionStore interface {
	// Create inserts a new execution belonging to sessionID.
	Create(ctx context.Context, execution *Execution) error

	// Get retrieves an execution by ID.
	Get(ctx context.Context, id string) (*Execution, error)

	// List returns executions matching filter.
	List(ctx context.Context, filter ExecutionFilter) ([]*Execution, error)
}

// ReportStore persists Report rows.
type ReportStore interface {
	// Create inserts a new report belonging to executionID.
	Create(ctx context.Context, report *Report) error

	// ListByExecution returns every report belonging to executionID, in
	// the order they were recorded.
	ListByExecution(ctx context.Context, executionID string) ([]*Report, error)
}

// Store combines all three persistence interfaces behind one handle,
// plus lifecycle operations analogous to the teacher's storage.Store.
type Store interface {
	Sessions() SessionStore
	Executions() ExecutionStore
	Reports() ReportStore

	Close() error
	Ping(ctx context.Context) error
}
