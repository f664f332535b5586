// Package store provides sqlite-backed persistence for the cortex core:
// graph memory nodes and edges, tasks and thoughts, service correlations,
// and telemetry spans. LocalStore implements the capability interfaces
// the dispatch and consolidation layers consume.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"cortex/internal/logging"
)

// timeLayout is the canonical text encoding for timestamp columns.
const timeLayout = time.RFC3339Nano

// LocalStore is the process-local persistence layer.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore opens (or creates) the sqlite database at path and
// ensures the schema exists.
func NewLocalStore(path string) (*LocalStore, error) {
	logging.StoreDebug("Opening local store at path: %s", path)

	db, err := sql.Open(sqlDriver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent dispatches.
	db.SetMaxOpenConns(1)

	s := &LocalStore{db: db, dbPath: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		logging.Get(logging.CategoryStore).Errorf("Failed to ensure schema: %v", err)
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logging.Store("Local store initialized at %s", path)
	return s, nil
}

// ensureSchema creates all tables if they don't exist.
func (s *LocalStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		priority INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		context_json TEXT,
		outcome_json TEXT,
		retry_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS thoughts (
		thought_id TEXT PRIMARY KEY,
		source_task_id TEXT NOT NULL,
		parent_thought_id TEXT,
		content TEXT NOT NULL,
		status TEXT NOT NULL,
		round_number INTEGER DEFAULT 0,
		depth INTEGER DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		context_json TEXT,
		ponder_notes_json TEXT,
		final_action_json TEXT,
		FOREIGN KEY (source_task_id) REFERENCES tasks(task_id)
	);

	CREATE TABLE IF NOT EXISTS graph_nodes (
		node_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		node_type TEXT NOT NULL,
		attributes_json TEXT,
		updated_by TEXT,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (node_id, scope)
	);

	CREATE TABLE IF NOT EXISTS graph_edges (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		relationship TEXT NOT NULL,
		scope TEXT NOT NULL,
		attributes_json TEXT,
		PRIMARY KEY (source, target, relationship, scope, attributes_json)
	);

	CREATE TABLE IF NOT EXISTS service_correlations (
		correlation_id TEXT PRIMARY KEY,
		service_type TEXT NOT NULL,
		handler_name TEXT NOT NULL,
		action_type TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trace_spans (
		span_id TEXT PRIMARY KEY,
		trace_id TEXT NOT NULL,
		parent_span_id TEXT,
		name TEXT,
		timestamp TEXT NOT NULL,
		task_id TEXT,
		thought_id TEXT,
		component_type TEXT,
		tags_json TEXT,
		error INTEGER DEFAULT 0,
		latency_ms REAL DEFAULT 0,
		duration_ms REAL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_thoughts_task ON thoughts(source_task_id);
	CREATE INDEX IF NOT EXISTS idx_thoughts_status ON thoughts(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_spans_timestamp ON trace_spans(timestamp);
	CREATE INDEX IF NOT EXISTS idx_spans_trace ON trace_spans(trace_id);
	CREATE INDEX IF NOT EXISTS idx_correlations_status ON service_correlations(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// nullable converts an optional string column value.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// parseTime decodes a timestamp column, accepting both the canonical
// layout and plain RFC3339 from older rows.
func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
