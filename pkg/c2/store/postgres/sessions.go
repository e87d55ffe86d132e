package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/secchiware/secchiware/pkg/c2/store"
)

// SessionStore implements store.SessionStore for PostgreSQL.
type SessionStore struct {
	db *pgxpool.Pool
}

func (s *SessionStore) Create(ctx context.Context, session *store.Session) error {
	platform, err := json.Marshal(session.Platform)
	if err != nil {
		return fmt.Errorf("failed to marshal platform info: %w", err)
	}

	query := `
		INSERT INTO session (id, session_start, session_end, env_ip, env_port, platform)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.Exec(ctx, query,
		session.ID,
		session.SessionStart,
		session.SessionEnd,
		session.EnvIP,
		session.EnvPort,
		platform,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrActiveSessionConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*store.Session, error) {
	query := `
		SELECT id, session_start, session_end, env_ip, env_port, platform
		FROM session
		WHERE id = $1
	`

	session, platform, err := scanSessionRow(s.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if err := json.Unmarshal(platform, &session.Platform); err != nil {
		return nil, fmt.Errorf("failed to unmarshal platform info: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Close(ctx context.Context, id string, endedAt time.Time) error {
	query := `UPDATE session SET session_end = $1 WHERE id = $2`

	result, err := s.db.Exec(ctx, query, endedAt, id)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM session WHERE id = $1 AND session_end IS NOT NULL`

	result, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return store.ErrSessionActive
		}
		return store.ErrNotFound
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context, filter store.SessionFilter) ([]*store.Session, error) {
	query, args := buildSessionListQuery(filter)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*store.Session
	for rows.Next() {
		session, platform, err := scanSessionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if err := json.Unmarshal(platform, &session.Platform); err != nil {
			return nil, fmt.Errorf("failed to unmarshal platform info: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSessionRow(row rowScanner) (*store.Session, []byte, error) {
	var session store.Session
	var platform []byte
	err := row.Scan(
		&session.ID,
		&session.SessionStart,
		&session.SessionEnd,
		&session.EnvIP,
		&session.EnvPort,
		&platform,
	)
	return &session, platform, err
}

// buildSessionListQuery assembles a parameterized SELECT from filter.
// order_by is restricted to a fixed column allowlist by the caller
// (pkg/c2/query) before it ever reaches here.
func buildSessionListQuery(filter store.SessionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY(%s)", arg(filter.IDs)))
	}
	if len(filter.IPs) > 0 {
		conditions = append(conditions, fmt.Sprintf("env_ip = ANY(%s)", arg(filter.IPs)))
	}
	if len(filter.Ports) > 0 {
		conditions = append(conditions, fmt.Sprintf("env_port = ANY(%s)", arg(filter.Ports)))
	}
	if len(filter.SystemNames) > 0 {
		conditions = append(conditions, fmt.Sprintf("platform->>'os_system' = ANY(%s)", arg(filter.SystemNames)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "session_end IS NULL")
	}
	if filter.StartAfter != nil {
		conditions = append(conditions, fmt.Sprintf("session_start > %s", arg(*filter.StartAfter)))
	}
	if filter.StartBefore != nil {
		conditions = append(conditions, fmt.Sprintf("session_start < %s", arg(*filter.StartBefore)))
	}

	query := "SELECT id, session_start, session_end, env_ip, env_port, platform FROM session"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "session_start"
	if filter.OrderBy != "" {
		orderBy = filter.OrderBy
	}
	direction := "ASC"
	if filter.Arrange == store.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %s", arg(filter.Limit))
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %s", arg(filter.Offset))
	}

	return query, args
}

// postgresUniqueViolation is the SQLSTATE for "unique_violation".
const postgresUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == postgresUniqueViolation
	}
	return false
}
