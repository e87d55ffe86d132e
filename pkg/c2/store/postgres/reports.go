package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/secchiware/secchiware/pkg/c2/store"
)

// ReportStore implements store.ReportStore for PostgreSQL.
type ReportStore struct {
	db *pgxpool.Pool
}

func (r *ReportStore) Create(ctx context.Context, report *store.Report) error {
	additionalInfo, err := json.Marshal(report.AdditionalInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal additional_info: %w", err)
	}

	query := `
		INSERT INTO report (id, fk_execution, test_name, test_description, result_code, timestamp_start, timestamp_end, additional_info)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.Exec(ctx, query,
		report.ID,
		report.ExecutionID,
		report.TestName,
		report.TestDescription,
		report.ResultCode,
		report.TimestampStart,
		report.TimestampEnd,
		additionalInfo,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

func (r *ReportStore) ListByExecution(ctx context.Context, executionID string) ([]*store.Report, error) {
	query := `
		SELECT id, fk_execution, test_name, test_description, result_code, timestamp_start, timestamp_end, additional_info
		FROM report
		WHERE fk_execution = $1
		ORDER BY timestamp_start ASC
	`

	rows, err := r.db.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*store.Report
	for rows.Next() {
		var report store.Report
		var additionalInfo []byte
		if err := rows.Scan(
			&report.ID,
			&report.ExecutionID,
			&report.TestName,
			&report.TestDescription,
			&report.ResultCode,
			&report.TimestampStart,
			&report.TimestampEnd,
			&additionalInfo,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if additionalInfo != nil {
			if err := json.Unmarshal(additionalInfo, &report.AdditionalInfo); err != nil {
				return nil, fmt.Errorf("failed to unmarshal additional_info: %w", err)
			}
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return reports, nil
}
