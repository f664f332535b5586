package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cortex/internal/types"
)

func TestMemorizeSuccess(t *testing.T) {
	memory := &MockGraphStore{}
	thoughts := &MockThoughtStore{}
	correlations := &MockCorrelationLog{}
	auditSink := &MockAuditSink{}
	handler := NewMemorizeHandler(testDeps(memory, thoughts, correlations, auditSink))

	thought := testThought()
	result := memorizeResult(map[string]any{
		"id":    "concept/coffee",
		"type":  "concept",
		"scope": "local",
		"attributes": map[string]any{
			"content": "the user prefers dark roast",
		},
	})

	followUpID, err := handler.Handle(context.Background(), result, thought, types.DispatchContext{CorrelationID: "corr-1"})
	require.NoError(t, err)
	require.NotEmpty(t, followUpID)

	// The node reached the graph store.
	require.Len(t, memory.Nodes, 1)
	assert.Equal(t, "concept/coffee", memory.Nodes[0].ID)
	assert.Equal(t, types.NodeTypeConcept, memory.Nodes[0].Type)

	// Exactly one terminal status write, to completed.
	require.Len(t, thoughts.StatusWrites, 1)
	assert.Equal(t, "th-1", thoughts.StatusWrites[0].ThoughtID)
	assert.Equal(t, types.ThoughtCompleted, thoughts.StatusWrites[0].Status)

	// Follow-up names the stored entity and its preview, and never
	// instructs the loop to memorize again.
	require.Len(t, thoughts.Added, 1)
	followUp := thoughts.Added[0]
	assert.Equal(t, followUpID, followUp.ThoughtID)
	assert.Equal(t, "th-1", followUp.ParentThoughtID)
	assert.Equal(t, thought.Depth+1, followUp.Depth)
	assert.Contains(t, followUp.Content, "concept/coffee")
	assert.Contains(t, followUp.Content, "the user prefers dark roast")
	assert.Contains(t, followUp.Content, "Do NOT memorize again")

	// Audit ordering: start before terminal success.
	assert.Equal(t, []string{"start", "success"}, auditSink.Outcomes)

	// Correlation closed exactly once as completed.
	assert.Equal(t, types.CorrelationCompleted, correlations.Updates["corr-1"])
}

func TestMemorizeIdentityScopeFailsClosed(t *testing.T) {
	cases := []struct {
		name string
		node map[string]any
	}{
		{"identity scope", map[string]any{"id": "user/alice", "type": "user", "scope": "identity"}},
		{"identity path", map[string]any{"id": "agent/identity/core", "type": "concept", "scope": "local"}},
		{"agent node type", map[string]any{"id": "self", "type": "agent", "scope": "local"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			memory := &MockGraphStore{}
			thoughts := &MockThoughtStore{}
			auditSink := &MockAuditSink{}
			handler := NewMemorizeHandler(testDeps(memory, thoughts, &MockCorrelationLog{}, auditSink))

			followUpID, err := handler.Handle(context.Background(),
				memorizeResult(tc.node), testThought(), types.DispatchContext{WAAuthorized: false})
			require.NoError(t, err, "missing authorization is a recoverable outcome")
			require.NotEmpty(t, followUpID)

			// Fail closed: no graph write happened.
			assert.Empty(t, memory.Nodes)

			require.Len(t, thoughts.StatusWrites, 1)
			assert.Equal(t, types.ThoughtFailed, thoughts.StatusWrites[0].Status)

			require.Len(t, thoughts.Added, 1)
			assert.Contains(t, thoughts.Added[0].Content, "WA authorization required")

			assert.Equal(t, []string{"start", "failed_wa_required"}, auditSink.Outcomes)
		})
	}
}

func TestMemorizeIdentityScopeAuthorized(t *testing.T) {
	memory := &MockGraphStore{}
	thoughts := &MockThoughtStore{}
	handler := NewMemorizeHandler(testDeps(memory, thoughts, &MockCorrelationLog{}, &MockAuditSink{}))

	result := memorizeResult(map[string]any{"id": "agent/identity/core", "type": "concept", "scope": "identity"})
	_, err := handler.Handle(context.Background(), result, testThought(), types.DispatchContext{WAAuthorized: true})
	require.NoError(t, err)

	require.Len(t, memory.Nodes, 1)
	require.Len(t, thoughts.StatusWrites, 1)
	assert.Equal(t, types.ThoughtCompleted, thoughts.StatusWrites[0].Status)
}

func TestMemorizeInvalidParameters(t *testing.T) {
	memory := &MockGraphStore{}
	thoughts := &MockThoughtStore{}
	auditSink := &MockAuditSink{}
	handler := NewMemorizeHandler(testDeps(memory, thoughts, &MockCorrelationLog{}, auditSink))

	// Missing the node id entirely.
	result := memorizeResult(map[string]any{"type": "concept"})
	followUpID, err := handler.Handle(context.Background(), result, testThought(), types.DispatchContext{})
	require.NoError(t, err, "validation failure is a recoverable outcome")
	require.NotEmpty(t, followUpID)

	assert.Empty(t, memory.Nodes)
	require.Len(t, thoughts.StatusWrites, 1)
	assert.Equal(t, types.ThoughtFailed, thoughts.StatusWrites[0].Status)

	require.Len(t, thoughts.Added, 1)
	assert.Contains(t, thoughts.Added[0].Content, "MEMORIZE action failed")
	assert.Contains(t, thoughts.Added[0].Content, "node id is required")

	assert.Equal(t, []string{"start", "failed"}, auditSink.Outcomes)
}

func TestMemorizeStoreFailureSurfacesReason(t *testing.T) {
	memory := &MockGraphStore{
		WriteFunc: func(ctx context.Context, node *types.GraphNode) types.MemoryOpResult {
			return types.MemoryOpResult{Status: types.MemoryOpFailed, Reason: "disk quota exceeded"}
		},
	}
	thoughts := &MockThoughtStore{}
	auditSink := &MockAuditSink{}
	handler := NewMemorizeHandler(testDeps(memory, thoughts, &MockCorrelationLog{}, auditSink))

	result := memorizeResult(map[string]any{"id": "concept/x", "type": "concept", "scope": "local"})
	followUpID, err := handler.Handle(context.Background(), result, testThought(), types.DispatchContext{})
	require.NoError(t, err, "an effect failure is a recoverable outcome")
	require.NotEmpty(t, followUpID)

	require.Len(t, thoughts.StatusWrites, 1)
	assert.Equal(t, types.ThoughtFailed, thoughts.StatusWrites[0].Status)

	// The store's reason is carried verbatim.
	require.Len(t, thoughts.Added, 1)
	assert.Contains(t, thoughts.Added[0].Content, "disk quota exceeded")

	assert.Equal(t, []string{"start", "failed"}, auditSink.Outcomes)
}

func TestMemorizeUnexpectedErrorIsFatal(t *testing.T) {
	memory := &MockGraphStore{}
	failures := 0
	thoughts := &MockThoughtStore{}
	thoughts.AddFunc = func(ctx context.Context, thought *types.Thought) error {
		// Fail the standard follow-up creation; the direct error
		// follow-up afterwards succeeds.
		failures++
		if failures == 1 {
			return fmt.Errorf("thoughts table locked")
		}
		return nil
	}
	auditSink := &MockAuditSink{}
	handler := NewMemorizeHandler(testDeps(memory, thoughts, &MockCorrelationLog{}, auditSink))

	result := memorizeResult(map[string]any{"id": "concept/x", "type": "concept", "scope": "local"})
	followUpID, err := handler.Handle(context.Background(), result, testThought(), types.DispatchContext{})

	// The fatal variant propagates; it is not converted into a normal
	// return value.
	require.Error(t, err)
	var fatal *FollowUpCreationError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "th-1", fatal.ThoughtID)
	assert.Empty(t, followUpID)

	// The thought was forced to failed through a direct status write
	// after the completed write the standard path issued.
	writes := thoughts.StatusWrites
	require.NotEmpty(t, writes)
	assert.Equal(t, types.ThoughtFailed, writes[len(writes)-1].Status)

	// A distinct error follow-up was still created directly.
	last := thoughts.Added[len(thoughts.Added)-1]
	assert.True(t, strings.Contains(last.Content, "failed with error"), "got %q", last.Content)

	// Audit trail ends with the generic failed outcome.
	assert.Equal(t, "failed", auditSink.Outcomes[len(auditSink.Outcomes)-1])
}

func TestAttributePreviewOrder(t *testing.T) {
	// content wins over name and value, and long values are truncated.
	long := strings.Repeat("x", 250)
	preview := attributePreview(map[string]any{"name": "short", "content": long})
	assert.Len(t, preview, previewLimit)
	assert.True(t, strings.HasPrefix(preview, "xxx"))

	assert.Equal(t, "short", attributePreview(map[string]any{"name": "short", "value": "v"}))
	assert.Equal(t, "v", attributePreview(map[string]any{"value": "v"}))
	assert.Equal(t, "", attributePreview(map[string]any{"other": "ignored"}))
	assert.Equal(t, "", attributePreview(nil))
}

func TestAttributePreviewRuneBoundary(t *testing.T) {
	// 98 ASCII bytes followed by a 3-byte rune straddling the limit:
	// truncation must back off to the rune start, never emit a partial
	// sequence.
	content := strings.Repeat("a", 98) + "日本語"
	preview := attributePreview(map[string]any{"content": content})

	assert.True(t, utf8.ValidString(preview), "preview must stay valid UTF-8, got %q", preview)
	assert.LessOrEqual(t, len(preview), previewLimit)
	assert.Equal(t, strings.Repeat("a", 98), preview)

	// Multi-byte content under the limit passes through untouched.
	assert.Equal(t, "日本語", attributePreview(map[string]any{"content": "日本語"}))
}
