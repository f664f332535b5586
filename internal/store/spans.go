package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// RecordSpan persists one telemetry span. Spans are the raw feed the
// periodic consolidation job compresses into summary nodes.
func (s *LocalStore) RecordSpan(ctx context.Context, span *types.TraceSpanData) error {
	if span == nil || span.SpanID == "" || span.TraceID == "" {
		return fmt.Errorf("span requires trace_id and span_id")
	}

	var tagsJSON any
	if len(span.Tags) > 0 {
		data, err := json.Marshal(span.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode span tags: %w", err)
		}
		tagsJSON = string(data)
	}

	errFlag := 0
	if span.Error {
		errFlag = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO trace_spans
		 (span_id, trace_id, parent_span_id, name, timestamp, task_id, thought_id, component_type, tags_json, error, latency_ms, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		span.SpanID, span.TraceID, nullable(span.ParentSpanID), nullable(span.Name),
		span.Timestamp.UTC().Format(timeLayout),
		nullable(span.TaskID), nullable(span.ThoughtID), nullable(span.ComponentType),
		tagsJSON, errFlag, span.LatencyMs, span.DurationMs,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to record span %s: %v", span.SpanID, err)
		return fmt.Errorf("failed to record span: %w", err)
	}
	return nil
}

// SpansInPeriod returns all spans with start <= timestamp < end, in
// timestamp order.
func (s *LocalStore) SpansInPeriod(ctx context.Context, start, end time.Time) ([]types.TraceSpanData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT span_id, trace_id, parent_span_id, name, timestamp, task_id, thought_id, component_type, tags_json, error, latency_ms, duration_ms
		 FROM trace_spans WHERE timestamp >= ? AND timestamp < ? ORDER BY timestamp ASC`,
		start.UTC().Format(timeLayout), end.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query spans: %w", err)
	}
	defer rows.Close()

	var spans []types.TraceSpanData
	for rows.Next() {
		var span types.TraceSpanData
		var parent, name, taskID, thoughtID, component, tagsJSON sql.NullString
		var timestamp string
		var errFlag int
		if err := rows.Scan(&span.SpanID, &span.TraceID, &parent, &name, &timestamp,
			&taskID, &thoughtID, &component, &tagsJSON, &errFlag, &span.LatencyMs, &span.DurationMs); err != nil {
			logging.Get(logging.CategoryStore).Warnf("Span row scan failed: %v", err)
			continue
		}
		span.ParentSpanID = parent.String
		span.Name = name.String
		span.TaskID = taskID.String
		span.ThoughtID = thoughtID.String
		span.ComponentType = component.String
		span.Error = errFlag != 0
		if t, err := parseTime(timestamp); err == nil {
			span.Timestamp = t
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &span.Tags); err != nil {
				logging.Get(logging.CategoryStore).Warnf("Tag decode failed for span %s: %v", span.SpanID, err)
			}
		}
		spans = append(spans, span)
	}
	return spans, rows.Err()
}

var _ types.SpanSource = (*LocalStore)(nil)
