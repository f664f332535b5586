package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cortex/internal/logging"
	"cortex/internal/types"
)

const thoughtColumns = `thought_id, source_task_id, parent_thought_id, content, status, round_number, depth,
	created_at, updated_at, context_json, ponder_notes_json, final_action_json`

// AddThought persists a new thought. The owning task must exist.
func (s *LocalStore) AddThought(ctx context.Context, thought *types.Thought) error {
	if thought == nil || thought.ThoughtID == "" {
		return fmt.Errorf("thought requires a non-empty id")
	}
	if thought.SourceTaskID == "" {
		return fmt.Errorf("thought %s requires a source task id", thought.ThoughtID)
	}

	var ctxJSON, notesJSON, actionJSON any
	if thought.Context != nil {
		data, err := json.Marshal(thought.Context)
		if err != nil {
			return fmt.Errorf("failed to encode thought context: %w", err)
		}
		ctxJSON = string(data)
	}
	if len(thought.PonderNotes) > 0 {
		data, err := json.Marshal(thought.PonderNotes)
		if err != nil {
			return fmt.Errorf("failed to encode ponder notes: %w", err)
		}
		notesJSON = string(data)
	}
	if thought.FinalAction != nil {
		data, err := json.Marshal(thought.FinalAction)
		if err != nil {
			return fmt.Errorf("failed to encode final action: %w", err)
		}
		actionJSON = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Adding thought %s (task=%s round=%d depth=%d)",
		thought.ThoughtID, thought.SourceTaskID, thought.RoundNumber, thought.Depth)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thoughts (`+thoughtColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		thought.ThoughtID, thought.SourceTaskID, nullable(thought.ParentThoughtID),
		thought.Content, string(thought.Status), thought.RoundNumber, thought.Depth,
		thought.CreatedAt.UTC().Format(timeLayout), thought.UpdatedAt.UTC().Format(timeLayout),
		ctxJSON, notesJSON, actionJSON,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to add thought %s: %v", thought.ThoughtID, err)
		return fmt.Errorf("failed to add thought: %w", err)
	}
	return nil
}

// GetThought loads one thought. Returns nil when absent.
func (s *LocalStore) GetThought(ctx context.Context, thoughtID string) (*types.Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE thought_id = ?`, thoughtID)

	var tr thoughtRow
	if err := row.Scan(&tr.ThoughtID, &tr.SourceTaskID, &tr.ParentThoughtID, &tr.Content, &tr.Status,
		&tr.RoundNumber, &tr.Depth, &tr.CreatedAt, &tr.UpdatedAt,
		&tr.ContextJSON, &tr.PonderNotesJSON, &tr.FinalActionJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read thought %s: %w", thoughtID, err)
	}

	thought := mapRowToThought(tr)
	return &thought, nil
}

// UpdateThoughtStatus writes a thought's status and, when given, the
// final action that produced the transition. Dispatch issues at most
// one terminal write per thought; retry policy lives upstream.
func (s *LocalStore) UpdateThoughtStatus(ctx context.Context, thoughtID string, status types.ThoughtStatus, finalAction *types.FinalAction) error {
	var actionJSON any
	if finalAction != nil {
		data, err := json.Marshal(finalAction)
		if err != nil {
			return fmt.Errorf("failed to encode final action: %w", err)
		}
		actionJSON = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Updating thought %s -> %s", thoughtID, status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE thoughts SET status = ?, updated_at = ?, final_action_json = COALESCE(?, final_action_json)
		 WHERE thought_id = ?`,
		string(status), types.SystemClock{}.Now().Format(timeLayout), actionJSON, thoughtID)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to update thought %s: %v", thoughtID, err)
		return fmt.Errorf("failed to update thought status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("thought %s not found", thoughtID)
	}
	return nil
}

// ThoughtsByTask lists all thoughts of a task, oldest first.
func (s *LocalStore) ThoughtsByTask(ctx context.Context, taskID string) ([]types.Thought, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+thoughtColumns+` FROM thoughts WHERE source_task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thoughts: %w", err)
	}
	defer rows.Close()

	var thoughts []types.Thought
	for rows.Next() {
		var tr thoughtRow
		if err := rows.Scan(&tr.ThoughtID, &tr.SourceTaskID, &tr.ParentThoughtID, &tr.Content, &tr.Status,
			&tr.RoundNumber, &tr.Depth, &tr.CreatedAt, &tr.UpdatedAt,
			&tr.ContextJSON, &tr.PonderNotesJSON, &tr.FinalActionJSON); err != nil {
			logging.Get(logging.CategoryStore).Warnf("Thought row scan failed: %v", err)
			continue
		}
		thoughts = append(thoughts, mapRowToThought(tr))
	}
	return thoughts, rows.Err()
}

var _ types.ThoughtStore = (*LocalStore)(nil)
