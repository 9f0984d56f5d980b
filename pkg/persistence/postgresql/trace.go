package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/herald/pkg/models"
	"github.com/dukex/herald/pkg/persistence"
)

// TraceRepository appends request traces. Traces are never updated.
type TraceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository(db *sql.DB, logger *slog.Logger) *TraceRepository {
	return &TraceRepository{db: db, logger: logger}
}

// CreateRequestTrace inserts records in one transaction.
func (r *TraceRepository) CreateRequestTrace(ctx context.Context, records []models.TraceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO request_traces (id, request_id, transaction_id, organization_id, environment_id,
			user_id, event_type, status, message, raw_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trace insert: %w", err)
	}

	defer func() {
		_ = stmt.Close()
	}()

	for _, record := range records {
		var rawData []byte

		if record.RawData != nil {
			rawData, err = marshalJSON(record.RawData)
			if err != nil {
				return persistence.NewRecordError("CreateRequestTrace", "trace", record.RequestID, err)
			}
		}

		_, err = stmt.ExecContext(ctx,
			record.ID,
			record.RequestID,
			record.TransactionID,
			record.OrganizationID,
			record.EnvironmentID,
			record.UserID,
			string(record.EventType),
			string(record.Status),
			record.Message,
			rawData,
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trace %s: %w", record.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit traces: %w", err)
	}

	return nil
}

// RequestTraces returns the traces of a request in creation order.
func (r *TraceRepository) RequestTraces(ctx context.Context, requestID string) ([]models.TraceRecord, error) {
	query := `
		SELECT
			id
		  , request_id
		  , COALESCE(transaction_id, '')
		  , COALESCE(organization_id, '')
		  , COALESCE(environment_id, '')
		  , COALESCE(user_id, '')
		  , event_type
		  , status
		  , COALESCE(message, '')
		  , raw_data
		  , created_at
		FROM request_traces
		WHERE request_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query request traces: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	records := make([]models.TraceRecord, 0)

	for rows.Next() {
		var (
			record  models.TraceRecord
			rawData []byte
		)

		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.TransactionID,
			&record.OrganizationID,
			&record.EnvironmentID,
			&record.UserID,
			&record.EventType,
			&record.Status,
			&record.Message,
			&rawData,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request trace: %w", err)
		}

		if err := unmarshalJSON(rawData, &record.RawData); err != nil {
			return nil, persistence.NewRecordError("RequestTraces", "trace", record.ID, err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating request traces: %w", err)
	}

	return records, nil
}
