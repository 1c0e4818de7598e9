package cockroach

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"callmesh-backend/internal/domain"
)

// CallHistoryRepository handles persisted call records
type CallHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewCallHistoryRepository creates a new call history repository
func NewCallHistoryRepository(pool *pgxpool.Pool) *CallHistoryRepository {
	return &CallHistoryRepository{pool: pool}
}

// Create inserts a new call record
func (r *CallHistoryRepository) Create(ctx context.Context, record *domain.CallRecord) error {
	query := `
		INSERT INTO call_records (
			call_id, caller_id, callee_id, kind, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		record.CallID,
		record.CallerID,
		record.CalleeID,
		record.Kind,
		record.Status,
		record.StartedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create call record: %w", err)
	}

	return nil
}

// UpdateStatus updates a call record's status
func (r *CallHistoryRepository) UpdateStatus(ctx context.Context, callID uuid.UUID, status string) error {
	query := `
		UPDATE call_records
		SET status = $2
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID, status)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	return nil
}

// End marks a call record as ended with the given duration in seconds
func (r *CallHistoryRepository) End(ctx context.Context, callID uuid.UUID, duration int) error {
	query := `
		UPDATE call_records
		SET status = 'ended',
		    ended_at = NOW(),
		    duration = $2
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID, duration)
	if err != nil {
		return fmt.Errorf("failed to end call record: %w", err)
	}

	return nil
}

// GetByID retrieves a call record by ID
func (r *CallHistoryRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.CallRecord, error) {
	query := `
		SELECT call_id, caller_id, callee_id, kind, status,
		       started_at, ended_at, duration
		FROM call_records
		WHERE call_id = $1
	`

	record := &domain.CallRecord{}
	err := r.pool.QueryRow(ctx, query, callID).Scan(
		&record.CallID,
		&record.CallerID,
		&record.CalleeID,
		&record.Kind,
		&record.Status,
		&record.StartedAt,
		&record.EndedAt,
		&record.Duration,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("call record not found")
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}

	return record, nil
}

// GetUserCalls retrieves call records a user participated in, newest first
func (r *CallHistoryRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.CallRecord, error) {
	query := `
		SELECT call_id, caller_id, callee_id, kind, status,
		       started_at, ended_at, duration
		FROM call_records
		WHERE caller_id = $1 OR callee_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	var records []*domain.CallRecord
	for rows.Next() {
		record := &domain.CallRecord{}
		err := rows.Scan(
			&record.CallID,
			&record.CallerID,
			&record.CalleeID,
			&record.Kind,
			&record.Status,
			&record.StartedAt,
			&record.EndedAt,
			&record.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}
