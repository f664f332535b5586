// Package consolidation compresses windows of raw telemetry spans into
// durable summary nodes in the graph memory store. Consolidating the
// same period twice produces byte-identical summary data under the same
// deterministic id, so re-runs overwrite rather than duplicate.
package consolidation

import (
	"context"
	"sort"
	"time"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// updatedBy is the author stamped on summary nodes.
const updatedBy = "trace_consolidation"

// ThoughtInfo is one handler-attributed thought within a task summary.
type ThoughtInfo struct {
	ThoughtID string `json:"thought_id"`
	Handler   string `json:"handler"`
	Timestamp string `json:"timestamp,omitempty"`
}

// TaskSummary aggregates all spans attributed to one task.
type TaskSummary struct {
	TaskID           string        `json:"task_id"`
	Status           string        `json:"status"`
	Thoughts         []ThoughtInfo `json:"thoughts"`
	StartTime        string        `json:"start_time"`
	EndTime          string        `json:"end_time"`
	HandlersSelected []string      `json:"handlers_selected"`
	TraceIDs         []string      `json:"trace_ids"`
	DurationMs       float64       `json:"duration_ms"`
}

// taskAccumulator is the mutable working state behind a TaskSummary.
type taskAccumulator struct {
	taskID           string
	status           string
	thoughts         []ThoughtInfo
	startTime        time.Time
	endTime          time.Time
	handlersSelected []string
	traceIDs         map[string]struct{}
}

// TraceConsolidator reduces span windows into summary graph nodes.
type TraceConsolidator struct {
	memory types.GraphStore
}

// NewTraceConsolidator wires a consolidator. memory may be nil for
// pure aggregation (the summary is computed but not persisted).
func NewTraceConsolidator(memory types.GraphStore) *TraceConsolidator {
	return &TraceConsolidator{memory: memory}
}

// Consolidate aggregates one period's spans into a summary node and
// persists it. A zero-span window still yields a fully-populated
// zero-valued summary: no activity is a representable result. A store
// failure is logged and reported as not-stored (nil); the period stays
// un-consolidated and is safe to retry in full.
func (c *TraceConsolidator) Consolidate(
	ctx context.Context,
	periodStart, periodEnd time.Time,
	periodLabel string,
	spans []types.TraceSpanData,
) *types.GraphNode {
	timer := logging.StartTimer(logging.CategoryConsolidation, "Consolidate")
	defer timer.Stop()

	if len(spans) == 0 {
		logging.Consolidation("No trace spans for period %s - creating empty summary", periodStart.Format(time.RFC3339))
	} else {
		logging.Consolidation("Consolidating %d trace spans", len(spans))
	}

	tasks := make(map[string]*taskAccumulator)
	uniqueTasks := make(map[string]struct{})
	uniqueThoughts := make(map[string]struct{})
	tasksByStatus := make(map[string]int)
	thoughtsByType := make(map[string]int)
	componentCalls := make(map[string]int)
	componentFailures := make(map[string]int)
	componentLatencies := make(map[string][]float64)
	handlerActions := make(map[string]int)
	errorsByComponent := make(map[string]int)
	guardrailViolations := make(map[string]int)
	dmaDecisions := make(map[string]int)
	totalErrors := 0

	for i := range spans {
		span := &spans[i]
		component := span.Component()

		if span.TaskID != "" {
			uniqueTasks[span.TaskID] = struct{}{}

			acc, ok := tasks[span.TaskID]
			if !ok {
				acc = &taskAccumulator{
					taskID:    span.TaskID,
					status:    "processing",
					startTime: span.Timestamp,
					endTime:   span.Timestamp,
					traceIDs:  make(map[string]struct{}),
				}
				tasks[span.TaskID] = acc
			}
			acc.traceIDs[span.TraceID] = struct{}{}
			if span.Timestamp.Before(acc.startTime) {
				acc.startTime = span.Timestamp
			}
			if span.Timestamp.After(acc.endTime) {
				acc.endTime = span.Timestamp
			}
		}

		if span.ThoughtID != "" {
			uniqueThoughts[span.ThoughtID] = struct{}{}
			thoughtsByType[span.Tag("thought_type", "unknown")]++

			if component == "handler" && span.TaskID != "" {
				action := span.Tag("action_type", "unknown")
				handlerActions[action]++

				acc := tasks[span.TaskID]
				acc.handlersSelected = append(acc.handlersSelected, action)
				acc.thoughts = append(acc.thoughts, ThoughtInfo{
					ThoughtID: span.ThoughtID,
					Handler:   action,
					Timestamp: span.Timestamp.UTC().Format(time.RFC3339Nano),
				})
			}
		}

		if span.TaskID != "" {
			if status := span.Tag("task_status", ""); status != "" {
				tasksByStatus[status]++
				tasks[span.TaskID].status = status
			}
		}

		componentCalls[component]++
		if span.Error {
			componentFailures[component]++
			errorsByComponent[component]++
			totalErrors++
		}
		if latency, ok := span.Latency(); ok {
			componentLatencies[component] = append(componentLatencies[component], latency)
		}

		if component == "guardrail" && span.Tag("violation", "") == "true" {
			guardrailViolations[span.Tag("guardrail_type", "unknown")]++
		}
		if component == "dma" {
			dmaDecisions[span.Tag("dma_type", "unknown")]++
		}
	}

	componentLatencyStats := make(map[string]LatencyStats)
	for component, latencies := range componentLatencies {
		componentLatencyStats[component] = computeLatencyStats(latencies)
	}

	// Per-task durations feed both the task summaries and the global
	// processing-time percentiles.
	taskSummaries := make(map[string]TaskSummary, len(tasks))
	taskProcessingTimes := make([]float64, 0, len(tasks))
	totalProcessingTime := 0.0
	maxTraceDepth := 0
	totalTraceDepth := 0
	for id, acc := range tasks {
		durationMs := float64(acc.endTime.Sub(acc.startTime)) / float64(time.Millisecond)
		taskProcessingTimes = append(taskProcessingTimes, durationMs)
		totalProcessingTime += durationMs

		depth := len(acc.thoughts)
		totalTraceDepth += depth
		if depth > maxTraceDepth {
			maxTraceDepth = depth
		}

		taskSummaries[id] = TaskSummary{
			TaskID:           acc.taskID,
			Status:           acc.status,
			Thoughts:         acc.thoughts,
			StartTime:        acc.startTime.UTC().Format(time.RFC3339Nano),
			EndTime:          acc.endTime.UTC().Format(time.RFC3339Nano),
			HandlersSelected: acc.handlersSelected,
			TraceIDs:         sortedKeys(acc.traceIDs),
			DurationMs:       durationMs,
		}
	}
	taskTimeStats := computeLatencyStats(taskProcessingTimes)

	totalCalls := 0
	for _, n := range componentCalls {
		totalCalls += n
	}
	errorRate := 0.0
	if totalCalls > 0 {
		errorRate = float64(totalErrors) / float64(totalCalls)
	}
	avgThoughtsPerTask := 0.0
	avgTraceDepth := 0.0
	if len(uniqueTasks) > 0 {
		avgThoughtsPerTask = float64(len(uniqueThoughts)) / float64(len(uniqueTasks))
		avgTraceDepth = float64(totalTraceDepth) / float64(len(uniqueTasks))
	}

	summaryID := SummaryID(periodStart)
	attributes := map[string]any{
		"id":                              summaryID,
		"period_start":                    periodStart.UTC().Format(time.RFC3339Nano),
		"period_end":                      periodEnd.UTC().Format(time.RFC3339Nano),
		"period_label":                    periodLabel,
		"total_tasks_processed":           len(uniqueTasks),
		"tasks_by_status":                 tasksByStatus,
		"unique_task_ids":                 sortedKeys(uniqueTasks),
		"task_summaries":                  taskSummaries,
		"total_thoughts_processed":        len(uniqueThoughts),
		"thoughts_by_type":                thoughtsByType,
		"avg_thoughts_per_task":           avgThoughtsPerTask,
		"component_calls":                 componentCalls,
		"component_failures":              componentFailures,
		"component_latency_ms":            componentLatencyStats,
		"dma_decisions":                   dmaDecisions,
		"guardrail_violations":            guardrailViolations,
		"handler_actions":                 handlerActions,
		"avg_task_processing_time_ms":     taskTimeStats.Avg,
		"p50_task_processing_time_ms":     taskTimeStats.P50,
		"p95_task_processing_time_ms":     taskTimeStats.P95,
		"p99_task_processing_time_ms":     taskTimeStats.P99,
		"total_processing_time_ms":        totalProcessingTime,
		"total_errors":                    totalErrors,
		"errors_by_component":             errorsByComponent,
		"error_rate":                      errorRate,
		"max_trace_depth":                 maxTraceDepth,
		"avg_trace_depth":                 avgTraceDepth,
		"source_correlation_count":        len(spans),
		"created_at":                      periodEnd.UTC().Format(time.RFC3339Nano),
		"updated_at":                      periodEnd.UTC().Format(time.RFC3339Nano),
	}

	summaryNode := &types.GraphNode{
		ID:         summaryID,
		Type:       types.NodeTypeTraceSummary,
		Scope:      types.ScopeLocal,
		Attributes: attributes,
		UpdatedBy:  updatedBy,
		UpdatedAt:  periodEnd,
	}

	if c.memory != nil {
		result := c.memory.WriteNode(ctx, summaryNode)
		if result.Status != types.MemoryOpOK {
			logging.Get(logging.CategoryConsolidation).Errorf(
				"Failed to store trace summary %s: %s %s", summaryID, result.Reason, result.Error)
			return nil
		}
	} else {
		logging.Get(logging.CategoryConsolidation).Warnf("No graph store wired - summary %s not stored", summaryID)
	}

	return summaryNode
}

// SummaryID derives the deterministic summary node id from the
// hour-floored period start, so re-consolidation overwrites.
func SummaryID(periodStart time.Time) string {
	return "trace_summary_" + periodStart.UTC().Truncate(time.Hour).Format("20060102_15")
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
