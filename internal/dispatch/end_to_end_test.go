package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/audit"
	"cortex/internal/store"
	"cortex/internal/types"
)

// Exercises the production wiring: LocalStore as every capability and
// FileSink as the audit trail, the same assembly cmd/cortex builds.
func TestMemorizeAgainstRealStoreAndAuditSink(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.NewLocalStore(filepath.Join(dir, "cortex.db"))
	require.NoError(t, err)
	defer s.Close()

	auditPath := filepath.Join(dir, "audit.jsonl")
	sink, err := audit.NewFileSink(auditPath, nil)
	require.NoError(t, err)
	defer sink.Close()

	now := time.Now().UTC()
	task := &types.Task{
		TaskID:      "task-1",
		Description: "remember something",
		Status:      types.TaskActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Context:     types.TaskContext{CorrelationID: "corr-task"},
	}
	require.NoError(t, s.AddTask(ctx, task))

	thought := &types.Thought{
		ThoughtID:    "th-1",
		SourceTaskID: "task-1",
		Content:      "decide what to remember",
		Status:       types.ThoughtProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
		Context:      &types.ThoughtContext{TaskID: "task-1", CorrelationID: "corr-1"},
	}
	require.NoError(t, s.AddThought(ctx, thought))

	handler := NewMemorizeHandler(Deps{
		Memory:       s,
		Thoughts:     s,
		Correlations: s,
		Audit:        sink,
	})
	result := memorizeResult(map[string]any{
		"id":         "concept/coffee",
		"type":       "concept",
		"scope":      "local",
		"attributes": map[string]any{"content": "dark roast"},
	})

	followUpID, err := handler.Handle(ctx, result, thought,
		types.DispatchContext{SourceTaskID: "task-1", CorrelationID: "corr-disp"})
	require.NoError(t, err)

	// Node is durable.
	node, err := s.GetNode(ctx, "concept/coffee", types.ScopeLocal)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "dark roast", node.Attributes["content"])

	// Thought is terminal with the action snapshot, follow-up persisted.
	stored, err := s.GetThought(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, types.ThoughtCompleted, stored.Status)
	require.NotNil(t, stored.FinalAction)
	assert.Equal(t, "memorize", stored.FinalAction.ActionType)

	followUp, err := s.GetThought(ctx, followUpID)
	require.NoError(t, err)
	require.NotNil(t, followUp)
	assert.Equal(t, "th-1", followUp.ParentThoughtID)
	assert.Contains(t, followUp.Content, "concept/coffee")

	// Correlation closed as completed.
	corr, err := s.GetCorrelation(ctx, "corr-disp")
	require.NoError(t, err)
	require.NotNil(t, corr)
	assert.Equal(t, types.CorrelationCompleted, corr.Status)

	// Audit trail on disk: start then success, both valid JSONL.
	f, err := os.Open(auditPath)
	require.NoError(t, err)
	defer f.Close()

	var outcomes []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e audit.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		outcomes = append(outcomes, e.Outcome)
	}
	assert.Equal(t, []string{audit.OutcomeStart, audit.OutcomeSuccess}, outcomes)
}
