// Package types provides shared type definitions used across cortex packages.
// This package exists to break import cycles between store, dispatch, and
// consolidation. Types in this package should be foundational data structures
// with no complex dependencies.
package types

import (
	"time"
)

// =============================================================================
// TASK AND THOUGHT LIFECYCLE
// =============================================================================

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// ParseTaskStatus converts a stored status string into a TaskStatus.
// Unknown values are rejected so callers can apply their own default.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case TaskPending, TaskActive, TaskCompleted, TaskFailed:
		return TaskStatus(s), true
	}
	return TaskPending, false
}

// ThoughtStatus represents the lifecycle state of a thought.
type ThoughtStatus string

const (
	ThoughtPending    ThoughtStatus = "pending"
	ThoughtProcessing ThoughtStatus = "processing"
	ThoughtCompleted  ThoughtStatus = "completed"
	ThoughtFailed     ThoughtStatus = "failed"
)

// ParseThoughtStatus converts a stored status string into a ThoughtStatus.
func ParseThoughtStatus(s string) (ThoughtStatus, bool) {
	switch ThoughtStatus(s) {
	case ThoughtPending, ThoughtProcessing, ThoughtCompleted, ThoughtFailed:
		return ThoughtStatus(s), true
	}
	return ThoughtPending, false
}

// IsTerminal reports whether the status is a terminal state. Terminal
// thoughts are immutable: no component issues a further transition.
func (s ThoughtStatus) IsTerminal() bool {
	return s == ThoughtCompleted || s == ThoughtFailed
}

// TaskContext carries the provenance of a task.
type TaskContext struct {
	ChannelID     string `json:"channel_id,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	ParentTaskID  string `json:"parent_task_id,omitempty"`
}

// TaskOutcome records the terminal result of a task.
type TaskOutcome struct {
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
}

// Task is a unit of externally triggered work. Tasks are never deleted,
// only moved to a terminal status.
type Task struct {
	TaskID      string       `json:"task_id"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    int          `json:"priority"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Context     TaskContext  `json:"context"`
	Outcome     *TaskOutcome `json:"outcome,omitempty"`
}

// ThoughtContext carries the linkage of a thought back to its task.
// TaskID and CorrelationID are required; a context missing either is
// treated as absent by the row reconstructor.
type ThoughtContext struct {
	TaskID          string `json:"task_id"`
	ChannelID       string `json:"channel_id,omitempty"`
	RoundNumber     int    `json:"round_number"`
	Depth           int    `json:"depth"`
	ParentThoughtID string `json:"parent_thought_id,omitempty"`
	CorrelationID   string `json:"correlation_id"`
}

// FinalAction records the action a terminal thought selected.
type FinalAction struct {
	ActionType       string         `json:"action_type"`
	ActionParameters map[string]any `json:"action_parameters,omitempty"`
	Reasoning        string         `json:"reasoning,omitempty"`
}

// Thought is one reasoning/action step belonging to exactly one task.
// Thoughts form a tree via ParentThoughtID.
type Thought struct {
	ThoughtID       string          `json:"thought_id"`
	SourceTaskID    string          `json:"source_task_id"`
	ParentThoughtID string          `json:"parent_thought_id,omitempty"`
	Content         string          `json:"content"`
	Status          ThoughtStatus   `json:"status"`
	RoundNumber     int             `json:"round_number"`
	Depth           int             `json:"depth"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Context         *ThoughtContext `json:"context,omitempty"`
	PonderNotes     []string        `json:"ponder_notes,omitempty"`
	FinalAction     *FinalAction    `json:"final_action,omitempty"`
}

// =============================================================================
// GRAPH MEMORY
// =============================================================================

// NodeType classifies graph memory nodes.
type NodeType string

const (
	NodeTypeAgent        NodeType = "agent"
	NodeTypeUser         NodeType = "user"
	NodeTypeConcept      NodeType = "concept"
	NodeTypeObservation  NodeType = "observation"
	NodeTypeTraceSummary NodeType = "trace_summary"
)

// GraphScope partitions the memory graph. Identity scope is privileged:
// any write requires explicit Wise Authority approval.
type GraphScope string

const (
	ScopeLocal       GraphScope = "local"
	ScopeIdentity    GraphScope = "identity"
	ScopeEnvironment GraphScope = "environment"
	ScopeCommunity   GraphScope = "community"
)

// GraphNode is a persisted memory unit keyed by (id, scope).
type GraphNode struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Scope      GraphScope     `json:"scope"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedBy  string         `json:"updated_by,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// GraphEdge is a typed relation between two graph nodes.
type GraphEdge struct {
	Source       string         `json:"source"`
	Target       string         `json:"target"`
	Relationship string         `json:"relationship"`
	Scope        GraphScope     `json:"scope"`
	Attributes   map[string]any `json:"attributes,omitempty"`
}

// MemoryOpStatus reports the outcome of a graph store operation.
type MemoryOpStatus string

const (
	MemoryOpOK     MemoryOpStatus = "ok"
	MemoryOpDenied MemoryOpStatus = "denied"
	MemoryOpFailed MemoryOpStatus = "failed"
)

// MemoryOpResult is the graph store's answer to a write. Anything other
// than MemoryOpOK is a failure; Reason/Error carry the human-readable
// explanation surfaced to follow-up thoughts verbatim.
type MemoryOpResult struct {
	Status MemoryOpStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// =============================================================================
// SERVICE CORRELATIONS
// =============================================================================

// CorrelationStatus tracks a correlation record's lifecycle. Status moves
// pending -> completed/failed exactly once.
type CorrelationStatus string

const (
	CorrelationPending   CorrelationStatus = "pending"
	CorrelationCompleted CorrelationStatus = "completed"
	CorrelationFailed    CorrelationStatus = "failed"
)

// ServiceCorrelation is one record per handler execution attempt, keyed
// by CorrelationID for idempotent status updates.
type ServiceCorrelation struct {
	CorrelationID string            `json:"correlation_id"`
	ServiceType   string            `json:"service_type"`
	HandlerName   string            `json:"handler_name"`
	ActionType    string            `json:"action_type"`
	Status        CorrelationStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Timestamp     time.Time         `json:"timestamp"`
}

// CorrelationUpdate is the mutable subset of a correlation applied on
// completion.
type CorrelationUpdate struct {
	Status CorrelationStatus `json:"status"`
}

// =============================================================================
// TELEMETRY SPANS
// =============================================================================

// TraceSpanData is one telemetry event describing a unit of processing
// within a trace.
type TraceSpanData struct {
	TraceID       string            `json:"trace_id"`
	SpanID        string            `json:"span_id"`
	ParentSpanID  string            `json:"parent_span_id,omitempty"`
	Name          string            `json:"name,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	TaskID        string            `json:"task_id,omitempty"`
	ThoughtID     string            `json:"thought_id,omitempty"`
	ComponentType string            `json:"component_type,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
	Error         bool              `json:"error,omitempty"`
	LatencyMs     float64           `json:"latency_ms,omitempty"`
	DurationMs    float64           `json:"duration_ms,omitempty"`
}

// Component returns the span's component type, defaulting to "unknown".
func (s *TraceSpanData) Component() string {
	if s.ComponentType == "" {
		return "unknown"
	}
	return s.ComponentType
}

// Latency returns the effective latency sample for the span: LatencyMs
// when set, otherwise DurationMs when positive.
func (s *TraceSpanData) Latency() (float64, bool) {
	if s.LatencyMs > 0 {
		return s.LatencyMs, true
	}
	if s.DurationMs > 0 {
		return s.DurationMs, true
	}
	return 0, false
}

// Tag returns a tag value or the given default when absent.
func (s *TraceSpanData) Tag(key, def string) string {
	if v, ok := s.Tags[key]; ok && v != "" {
		return v
	}
	return def
}

// =============================================================================
// DISPATCH
// =============================================================================

// HandlerActionType names an action a handler can execute.
type HandlerActionType string

const (
	ActionMemorize     HandlerActionType = "memorize"
	ActionRecall       HandlerActionType = "recall"
	ActionForget       HandlerActionType = "forget"
	ActionTaskComplete HandlerActionType = "task_complete"
)

// DispatchContext carries per-invocation authorization and routing info.
// WAAuthorized is the Wise Authority approval flag for identity-scope
// mutations; absence of proof is treated as unauthorized.
type DispatchContext struct {
	ChannelID     string    `json:"channel_id,omitempty"`
	AuthorName    string    `json:"author_name,omitempty"`
	OriginService string    `json:"origin_service,omitempty"`
	HandlerName   string    `json:"handler_name,omitempty"`
	SourceTaskID  string    `json:"source_task_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EventTime     time.Time `json:"event_time,omitempty"`
	WAAuthorized  bool      `json:"wa_authorized"`
}

// ActionSelectionResult is the upstream reasoning loop's decision: a
// declared action type plus the raw parameter payload for the handler
// to validate and convert.
type ActionSelectionResult struct {
	SelectedAction   HandlerActionType `json:"selected_action"`
	ActionParameters map[string]any    `json:"action_parameters"`
	Rationale        string            `json:"rationale,omitempty"`
}
