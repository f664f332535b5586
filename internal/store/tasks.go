package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// AddTask persists a new task.
func (s *LocalStore) AddTask(ctx context.Context, task *types.Task) error {
	if task == nil || task.TaskID == "" {
		return fmt.Errorf("task requires a non-empty id")
	}

	ctxJSON, err := json.Marshal(task.Context)
	if err != nil {
		return fmt.Errorf("failed to encode task context: %w", err)
	}
	var outcomeJSON any
	if task.Outcome != nil {
		data, err := json.Marshal(task.Outcome)
		if err != nil {
			return fmt.Errorf("failed to encode task outcome: %w", err)
		}
		outcomeJSON = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Adding task %s (status=%s)", task.TaskID, task.Status)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (task_id, description, status, priority, created_at, updated_at, context_json, outcome_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskID, task.Description, string(task.Status), task.Priority,
		task.CreatedAt.UTC().Format(timeLayout), task.UpdatedAt.UTC().Format(timeLayout),
		string(ctxJSON), outcomeJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to add task %s: %v", task.TaskID, err)
		return fmt.Errorf("failed to add task: %w", err)
	}
	return nil
}

// GetTask loads one task. Returns nil when absent; malformed rows are
// reconstructed defensively, never surfaced as errors.
func (s *LocalStore) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, description, status, priority, created_at, updated_at, context_json, outcome_json, retry_count
		 FROM tasks WHERE task_id = ?`, taskID)

	var tr taskRow
	if err := row.Scan(&tr.TaskID, &tr.Description, &tr.Status, &tr.Priority,
		&tr.CreatedAt, &tr.UpdatedAt, &tr.ContextJSON, &tr.OutcomeJSON, &tr.RetryCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task %s: %w", taskID, err)
	}

	task := mapRowToTask(tr)
	return &task, nil
}

// UpdateTaskStatus transitions a task, optionally recording an outcome.
func (s *LocalStore) UpdateTaskStatus(ctx context.Context, taskID string, status types.TaskStatus, outcome *types.TaskOutcome, clock types.Clock) error {
	if clock == nil {
		clock = types.SystemClock{}
	}

	var outcomeJSON any
	if outcome != nil {
		data, err := json.Marshal(outcome)
		if err != nil {
			return fmt.Errorf("failed to encode task outcome: %w", err)
		}
		outcomeJSON = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Updating task %s -> %s", taskID, status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ?, outcome_json = COALESCE(?, outcome_json)
		 WHERE task_id = ?`,
		string(status), clock.Now().UTC().Format(timeLayout), outcomeJSON, taskID)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to update task %s: %v", taskID, err)
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s not found", taskID)
	}
	return nil
}

// TasksByStatus lists tasks in a given status, oldest first.
func (s *LocalStore) TasksByStatus(ctx context.Context, status types.TaskStatus) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, description, status, priority, created_at, updated_at, context_json, outcome_json, retry_count
		 FROM tasks WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var tr taskRow
		if err := rows.Scan(&tr.TaskID, &tr.Description, &tr.Status, &tr.Priority,
			&tr.CreatedAt, &tr.UpdatedAt, &tr.ContextJSON, &tr.OutcomeJSON, &tr.RetryCount); err != nil {
			logging.Get(logging.CategoryStore).Warnf("Task row scan failed: %v", err)
			continue
		}
		tasks = append(tasks, mapRowToTask(tr))
	}
	return tasks, rows.Err()
}
