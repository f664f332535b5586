package dispatch

import (
	"context"
	"sync"
	"time"

	"cortex/internal/types"
)

// MockGraphStore implements types.GraphStore for testing.
type MockGraphStore struct {
	mu        sync.Mutex
	WriteFunc func(ctx context.Context, node *types.GraphNode) types.MemoryOpResult
	Nodes     []*types.GraphNode
	Edges     []*types.GraphEdge
}

func (m *MockGraphStore) WriteNode(ctx context.Context, node *types.GraphNode) types.MemoryOpResult {
	m.mu.Lock()
	m.Nodes = append(m.Nodes, node)
	m.mu.Unlock()
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, node)
	}
	return types.MemoryOpResult{Status: types.MemoryOpOK}
}

func (m *MockGraphStore) WriteEdge(ctx context.Context, edge *types.GraphEdge) types.MemoryOpResult {
	m.mu.Lock()
	m.Edges = append(m.Edges, edge)
	m.mu.Unlock()
	return types.MemoryOpResult{Status: types.MemoryOpOK}
}

// MockThoughtStore implements types.ThoughtStore for testing.
type MockThoughtStore struct {
	mu           sync.Mutex
	AddFunc      func(ctx context.Context, thought *types.Thought) error
	UpdateFunc   func(ctx context.Context, thoughtID string, status types.ThoughtStatus, finalAction *types.FinalAction) error
	Added        []*types.Thought
	StatusWrites []StatusWrite
}

// StatusWrite records one UpdateThoughtStatus call.
type StatusWrite struct {
	ThoughtID   string
	Status      types.ThoughtStatus
	FinalAction *types.FinalAction
}

func (m *MockThoughtStore) AddThought(ctx context.Context, thought *types.Thought) error {
	m.mu.Lock()
	m.Added = append(m.Added, thought)
	m.mu.Unlock()
	if m.AddFunc != nil {
		return m.AddFunc(ctx, thought)
	}
	return nil
}

func (m *MockThoughtStore) UpdateThoughtStatus(ctx context.Context, thoughtID string, status types.ThoughtStatus, finalAction *types.FinalAction) error {
	m.mu.Lock()
	m.StatusWrites = append(m.StatusWrites, StatusWrite{ThoughtID: thoughtID, Status: status, FinalAction: finalAction})
	m.mu.Unlock()
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, thoughtID, status, finalAction)
	}
	return nil
}

// MockCorrelationLog implements types.CorrelationLog for testing.
type MockCorrelationLog struct {
	mu      sync.Mutex
	Created []*types.ServiceCorrelation
	Updates map[string]types.CorrelationStatus
}

func (m *MockCorrelationLog) CreateCorrelation(ctx context.Context, corr *types.ServiceCorrelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, corr)
	return nil
}

func (m *MockCorrelationLog) UpdateCorrelation(ctx context.Context, correlationID string, update types.CorrelationUpdate, clock types.Clock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Updates == nil {
		m.Updates = make(map[string]types.CorrelationStatus)
	}
	m.Updates[correlationID] = update.Status
	return nil
}

// MockAuditSink implements types.AuditSink for testing.
type MockAuditSink struct {
	mu       sync.Mutex
	LogFunc  func(ctx context.Context, actionType types.HandlerActionType, dispatch types.DispatchContext, outcome string) error
	Outcomes []string
}

func (m *MockAuditSink) LogEvent(ctx context.Context, actionType types.HandlerActionType, dispatch types.DispatchContext, outcome string) error {
	m.mu.Lock()
	m.Outcomes = append(m.Outcomes, outcome)
	m.mu.Unlock()
	if m.LogFunc != nil {
		return m.LogFunc(ctx, actionType, dispatch, outcome)
	}
	return nil
}

// fixedClock is a deterministic Clock.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func testDeps(memory *MockGraphStore, thoughts *MockThoughtStore, correlations *MockCorrelationLog, audit *MockAuditSink) Deps {
	return Deps{
		Memory:       memory,
		Thoughts:     thoughts,
		Correlations: correlations,
		Audit:        audit,
		Clock:        fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func testThought() *types.Thought {
	return &types.Thought{
		ThoughtID:    "th-1",
		SourceTaskID: "task-1",
		Content:      "decide what to remember",
		Status:       types.ThoughtProcessing,
		RoundNumber:  2,
		Depth:        1,
		Context: &types.ThoughtContext{
			TaskID:        "task-1",
			RoundNumber:   2,
			Depth:         1,
			CorrelationID: "corr-1",
		},
	}
}

func memorizeResult(node map[string]any) *types.ActionSelectionResult {
	return &types.ActionSelectionResult{
		SelectedAction:   types.ActionMemorize,
		ActionParameters: map[string]any{"node": node},
		Rationale:        "worth keeping",
	}
}
