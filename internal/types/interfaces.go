package types

import (
	"context"
	"time"
)

// GraphStore is the graph write capability the core consumes. The store
// owns serialization of conflicting writes to the same node id; callers
// rely on idempotent keys, never on locks.
type GraphStore interface {
	// WriteNode upserts a node. A MemoryOpOK status means the write is
	// durable; anything else is a failure with a human-readable reason.
	WriteNode(ctx context.Context, node *GraphNode) MemoryOpResult
	// WriteEdge upserts a relation between two nodes.
	WriteEdge(ctx context.Context, edge *GraphEdge) MemoryOpResult
}

// CorrelationLog is the append/update capability for execution records.
type CorrelationLog interface {
	CreateCorrelation(ctx context.Context, corr *ServiceCorrelation) error
	UpdateCorrelation(ctx context.Context, correlationID string, update CorrelationUpdate, clock Clock) error
}

// ThoughtStore is the thought lifecycle persistence the dispatch layer
// drives: terminal status writes and follow-up thought creation.
type ThoughtStore interface {
	AddThought(ctx context.Context, thought *Thought) error
	UpdateThoughtStatus(ctx context.Context, thoughtID string, status ThoughtStatus, finalAction *FinalAction) error
}

// AuditSink records handler lifecycle entries. Outcomes are short
// machine-matchable strings ("start", "success", "failed",
// "failed_wa_required").
type AuditSink interface {
	LogEvent(ctx context.Context, actionType HandlerActionType, dispatch DispatchContext, outcome string) error
}

// Clock is the injected time source.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SpanSource supplies the telemetry spans for a consolidation window.
type SpanSource interface {
	SpansInPeriod(ctx context.Context, start, end time.Time) ([]TraceSpanData, error)
}
