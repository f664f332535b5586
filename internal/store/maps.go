package store

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Row reconstruction. These functions are total: malformed embedded
// JSON, empty sub-objects, or unknown status strings degrade to safe
// defaults with a logged warning, never an error to the caller. The
// row structs carry the storage-only columns (context_json,
// outcome_json, retry_count, ...); the mapping functions own the
// allow-list of what reaches the domain object.

// taskRow mirrors one row of the tasks table.
type taskRow struct {
	TaskID      string
	Description string
	Status      string
	Priority    int
	CreatedAt   string
	UpdatedAt   string
	ContextJSON sql.NullString
	OutcomeJSON sql.NullString
	RetryCount  int
}

// thoughtRow mirrors one row of the thoughts table.
type thoughtRow struct {
	ThoughtID       string
	SourceTaskID    string
	ParentThoughtID sql.NullString
	Content         string
	Status          string
	RoundNumber     int
	Depth           int
	CreatedAt       string
	UpdatedAt       string
	ContextJSON     sql.NullString
	PonderNotesJSON sql.NullString
	FinalActionJSON sql.NullString
}

// mapRowToTask rebuilds a Task from a stored row.
func mapRowToTask(row taskRow) types.Task {
	task := types.Task{
		TaskID:      row.TaskID,
		Description: row.Description,
		Priority:    row.Priority,
	}

	if t, err := parseTime(row.CreatedAt); err == nil {
		task.CreatedAt = t
	}
	if t, err := parseTime(row.UpdatedAt); err == nil {
		task.UpdatedAt = t
	}

	task.Context = decodeTaskContext(row.TaskID, row.ContextJSON)
	task.Outcome = decodeTaskOutcome(row.TaskID, row.OutcomeJSON)

	status, ok := types.ParseTaskStatus(row.Status)
	if !ok {
		logging.Get(logging.CategoryStore).Warnf(
			"Invalid status value '%s' for task %s. Defaulting to pending.", row.Status, row.TaskID)
		status = types.TaskPending
	}
	task.Status = status

	return task
}

// decodeTaskContext decodes the embedded context, synthesizing a minimal
// default with a fresh correlation id when the column is missing or
// malformed. Only the fields TaskContext expects are carried over, which
// keeps reconstruction resilient to schema drift.
func decodeTaskContext(taskID string, raw sql.NullString) types.TaskContext {
	fallback := func() types.TaskContext {
		return types.TaskContext{CorrelationID: uuid.NewString()}
	}

	if !raw.Valid || raw.String == "" {
		return fallback()
	}

	var ctx map[string]any
	if err := json.Unmarshal([]byte(raw.String), &ctx); err != nil || ctx == nil {
		logging.Get(logging.CategoryStore).Warnf("Failed to decode context_json for task %s: %v", taskID, err)
		return fallback()
	}

	out := types.TaskContext{
		ChannelID:     stringField(ctx, "channel_id"),
		UserID:        stringField(ctx, "user_id"),
		CorrelationID: stringField(ctx, "correlation_id"),
		ParentTaskID:  stringField(ctx, "parent_task_id"),
	}
	if out.CorrelationID == "" {
		out.CorrelationID = uuid.NewString()
	}
	return out
}

// decodeTaskOutcome decodes the optional outcome; empty objects and
// decode failures both degrade to absent.
func decodeTaskOutcome(taskID string, raw sql.NullString) *types.TaskOutcome {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var outcome types.TaskOutcome
	if err := json.Unmarshal([]byte(raw.String), &outcome); err != nil {
		logging.Get(logging.CategoryStore).Warnf("Failed to decode outcome_json for task %s", taskID)
		return nil
	}
	if outcome == (types.TaskOutcome{}) {
		return nil
	}
	return &outcome
}

// mapRowToThought rebuilds a Thought from a stored row.
func mapRowToThought(row thoughtRow) types.Thought {
	thought := types.Thought{
		ThoughtID:       row.ThoughtID,
		SourceTaskID:    row.SourceTaskID,
		ParentThoughtID: row.ParentThoughtID.String,
		Content:         row.Content,
		RoundNumber:     row.RoundNumber,
		Depth:           row.Depth,
	}

	if t, err := parseTime(row.CreatedAt); err == nil {
		thought.CreatedAt = t
	}
	if t, err := parseTime(row.UpdatedAt); err == nil {
		thought.UpdatedAt = t
	}

	thought.Context = decodeThoughtContext(row.ThoughtID, row.ContextJSON)
	thought.PonderNotes = decodePonderNotes(row.ThoughtID, row.PonderNotesJSON)
	thought.FinalAction = decodeFinalAction(row.ThoughtID, row.FinalActionJSON)

	status, ok := types.ParseThoughtStatus(row.Status)
	if !ok {
		logging.Get(logging.CategoryStore).Warnf(
			"Invalid status value '%s' for thought %s. Defaulting to pending.", row.Status, row.ThoughtID)
		status = types.ThoughtPending
	}
	thought.Status = status

	return thought
}

// decodeThoughtContext decodes the embedded context. Unlike tasks, a
// thought context missing its required fields (task_id, correlation_id)
// is absent rather than synthesized: an invalid linkage is worse than
// none.
func decodeThoughtContext(thoughtID string, raw sql.NullString) *types.ThoughtContext {
	if !raw.Valid || raw.String == "" {
		return nil
	}

	var ctx map[string]any
	if err := json.Unmarshal([]byte(raw.String), &ctx); err != nil || len(ctx) == 0 {
		logging.Get(logging.CategoryStore).Warnf("Failed to decode context_json for thought %s: %v", thoughtID, err)
		return nil
	}

	taskID := stringField(ctx, "task_id")
	correlationID := stringField(ctx, "correlation_id")
	if taskID == "" || correlationID == "" {
		return nil
	}

	return &types.ThoughtContext{
		TaskID:          taskID,
		ChannelID:       stringField(ctx, "channel_id"),
		RoundNumber:     intField(ctx, "round_number"),
		Depth:           intField(ctx, "depth"),
		ParentThoughtID: stringField(ctx, "parent_thought_id"),
		CorrelationID:   correlationID,
	}
}

func decodePonderNotes(thoughtID string, raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var notes []string
	if err := json.Unmarshal([]byte(raw.String), &notes); err != nil {
		logging.Get(logging.CategoryStore).Warnf("Failed to decode ponder_notes_json for thought %s", thoughtID)
		return nil
	}
	return notes
}

func decodeFinalAction(thoughtID string, raw sql.NullString) *types.FinalAction {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var action types.FinalAction
	if err := json.Unmarshal([]byte(raw.String), &action); err != nil {
		logging.Get(logging.CategoryStore).Warnf("Failed to decode final_action_json for thought %s", thoughtID)
		return nil
	}
	if action.ActionType == "" && action.ActionParameters == nil && action.Reasoning == "" {
		return nil
	}
	return &action
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
