// Package postgres implements store.Store against PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/secchiware/secchiware/pkg/c2/store"
)

// Store implements store.Store backed by a pgxpool connection pool.
type Store struct {
	pool       *pgxpool.Pool
	sessions   *SessionStore
	executions *ExecutionStore
	reports    *ReportStore
}

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewStore opens a connection pool and pings it before returning.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	s.sessions = &SessionStore{db: pool}
	s.executions = &ExecutionStore{db: pool}
	s.reports = &ReportStore{db: pool}
	return s, nil
}

func (s *Store) Sessions() store.SessionStore     { return s.sessions }
func (s *Store) Executions() store.ExecutionStore { return s.executions }
func (s *Store) Reports() store.ReportStore       { return s.reports }

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
