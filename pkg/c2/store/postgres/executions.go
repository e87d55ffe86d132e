package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/secchiware/secchiware/pkg/c2/store"
)

// ExecutionStore implements store.ExecutionStore for PostgreSQL.
type ExecutionStore struct {
	db *pgxpool.Pool
}

func (e *ExecutionStore) Create(ctx context.Context, execution *store.Execution) error {
	query := `
		INSERT INTO execution (id, fk_session, timestamp_registered)
		VALUES ($1, $2, $3)
	`
	_, err := e.db.Exec(ctx, query, execution.ID, execution.SessionID, execution.TimestampRegistered)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

func (e *ExecutionStore) Get(ctx context.Context, id string) (*store.Execution, error) {
	query := `SELECT id, fk_session, timestamp_registered FROM execution WHERE id = $1`

	var execution store.Execution
	err := e.db.QueryRow(ctx, query, id).Scan(&execution.ID, &execution.SessionID, &execution.TimestampRegistered)
	if err == pgx.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return &execution, nil
}

func (e *ExecutionStore) List(ctx context.Context, filter store.ExecutionFilter) ([]*store.Execution, error) {
	query, args := buildExecutionListQuery(filter)

	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var executions []*store.Execution
	for rows.Next() {
		var execution store.Execution
		if err := rows.Scan(&execution.ID, &execution.SessionID, &execution.TimestampRegistered); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		executions = append(executions, &execution)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func buildExecutionListQuery(filter store.ExecutionFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.IDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY(%s)", arg(filter.IDs)))
	}
	if len(filter.SessionIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("fk_session = ANY(%s)", arg(filter.SessionIDs)))
	}
	if filter.RegisteredAfter != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp_registered > %s", arg(*filter.RegisteredAfter)))
	}
	if filter.RegisteredBefore != nil {
		conditions = append(conditions, fmt.Sprintf("timestamp_registered < %s", arg(*filter.RegisteredBefore)))
	}

	query := "SELECT id, fk_session, timestamp_registered FROM execution"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy := "timestamp_registered"
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
