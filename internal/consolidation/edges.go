package consolidation

import (
	"cortex/internal/types"
)

// Relations emitted from a summary node to implicated traces.
const (
	RelationErrorTask       = "ERROR_TASK"
	RelationHighLatencyTask = "HIGH_LATENCY_TASK"
)

// highLatencyThresholdMs flags traces worth an edge of their own.
const highLatencyThresholdMs = 5000

// maxEdgesPerRelation caps each relation so a bad period cannot flood
// the graph.
const maxEdgesPerRelation = 10

// Edges derives the relational edges for a trace summary: one
// self-referencing edge per errored trace and per high-latency trace,
// capped per relation. Edge construction is pure and independent of the
// summary's own persistence; callers write the edges separately and may
// tolerate partial failure.
func Edges(summary *types.GraphNode, spans []types.TraceSpanData) []types.GraphEdge {
	if summary == nil {
		return nil
	}

	errorTasks := make(map[string]struct{})
	highLatencyTasks := make(map[string]struct{})

	for i := range spans {
		span := &spans[i]
		if span.TraceID == "" {
			continue
		}
		if span.Error {
			errorTasks[span.TraceID] = struct{}{}
		}
		if latency, ok := span.Latency(); ok && latency > highLatencyThresholdMs {
			highLatencyTasks[span.TraceID] = struct{}{}
		}
	}

	var edges []types.GraphEdge
	for i, id := range sortedKeys(errorTasks) {
		if i >= maxEdgesPerRelation {
			break
		}
		edges = append(edges, types.GraphEdge{
			Source:       summary.ID,
			Target:       summary.ID,
			Relationship: RelationErrorTask,
			Scope:        summary.Scope,
			Attributes: map[string]any{
				"task_id":    id,
				"error_type": "trace_error",
			},
		})
	}
	for i, id := range sortedKeys(highLatencyTasks) {
		if i >= maxEdgesPerRelation {
			break
		}
		edges = append(edges, types.GraphEdge{
			Source:       summary.ID,
			Target:       summary.ID,
			Relationship: RelationHighLatencyTask,
			Scope:        summary.Scope,
			Attributes: map[string]any{
				"task_id":          id,
				"latency_category": "high",
			},
		})
	}
	return edges
}
