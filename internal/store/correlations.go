package store

import (
	"context"
	"database/sql"
	"fmt"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// CreateCorrelation appends one execution record. The correlation id is
// the idempotency key: re-creating an existing id is a no-op so a
// crashed dispatch can be retried safely.
func (s *LocalStore) CreateCorrelation(ctx context.Context, corr *types.ServiceCorrelation) error {
	if corr == nil || corr.CorrelationID == "" {
		return fmt.Errorf("correlation requires a non-empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Creating correlation %s (%s/%s)", corr.CorrelationID, corr.ServiceType, corr.ActionType)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO service_correlations
		 (correlation_id, service_type, handler_name, action_type, status, created_at, updated_at, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		corr.CorrelationID, corr.ServiceType, corr.HandlerName, corr.ActionType, string(corr.Status),
		corr.CreatedAt.UTC().Format(timeLayout),
		corr.UpdatedAt.UTC().Format(timeLayout),
		corr.Timestamp.UTC().Format(timeLayout),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to create correlation %s: %v", corr.CorrelationID, err)
		return fmt.Errorf("failed to create correlation: %w", err)
	}
	return nil
}

// UpdateCorrelation moves a correlation out of pending. The pending
// guard makes the transition happen exactly once even under retries.
func (s *LocalStore) UpdateCorrelation(ctx context.Context, correlationID string, update types.CorrelationUpdate, clock types.Clock) error {
	if correlationID == "" {
		return fmt.Errorf("correlation id required")
	}
	if clock == nil {
		clock = types.SystemClock{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE service_correlations SET status = ?, updated_at = ?
		 WHERE correlation_id = ? AND status = ?`,
		string(update.Status), clock.Now().UTC().Format(timeLayout),
		correlationID, string(types.CorrelationPending),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to update correlation %s: %v", correlationID, err)
		return fmt.Errorf("failed to update correlation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logging.StoreDebug("Correlation %s already terminal, update skipped", correlationID)
	}
	return nil
}

// GetCorrelation fetches one correlation record. Returns nil when absent.
func (s *LocalStore) GetCorrelation(ctx context.Context, correlationID string) (*types.ServiceCorrelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT correlation_id, service_type, handler_name, action_type, status, created_at, updated_at, timestamp
		 FROM service_correlations WHERE correlation_id = ?`,
		correlationID,
	)

	var corr types.ServiceCorrelation
	var status, createdAt, updatedAt, timestamp string
	if err := row.Scan(&corr.CorrelationID, &corr.ServiceType, &corr.HandlerName, &corr.ActionType,
		&status, &createdAt, &updatedAt, &timestamp); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read correlation %s: %w", correlationID, err)
	}

	corr.Status = types.CorrelationStatus(status)
	if t, err := parseTime(createdAt); err == nil {
		corr.CreatedAt = t
	}
	if t, err := parseTime(updatedAt); err == nil {
		corr.UpdatedAt = t
	}
	if t, err := parseTime(timestamp); err == nil {
		corr.Timestamp = t
	}
	return &corr, nil
}

var _ types.CorrelationLog = (*LocalStore)(nil)
