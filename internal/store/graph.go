package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// WriteNode upserts a graph node keyed by (id, scope). Re-writing the
// same id overwrites: node ids are stable dedup keys.
func (s *LocalStore) WriteNode(ctx context.Context, node *types.GraphNode) types.MemoryOpResult {
	timer := logging.StartTimer(logging.CategoryStore, "WriteNode")
	defer timer.Stop()

	if node == nil || node.ID == "" {
		return types.MemoryOpResult{Status: types.MemoryOpFailed, Reason: "graph node requires a non-empty id"}
	}

	attrsJSON, err := json.Marshal(node.Attributes)
	if err != nil {
		return types.MemoryOpResult{
			Status: types.MemoryOpFailed,
			Reason: "failed to encode node attributes",
			Error:  err.Error(),
		}
	}

	scope := node.Scope
	if scope == "" {
		scope = types.ScopeLocal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Writing graph node %s (type=%s scope=%s)", node.ID, node.Type, scope)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO graph_nodes (node_id, scope, node_type, attributes_json, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		node.ID, string(scope), string(node.Type), string(attrsJSON), node.UpdatedBy,
		node.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to write graph node %s: %v", node.ID, err)
		return types.MemoryOpResult{
			Status: types.MemoryOpFailed,
			Reason: fmt.Sprintf("graph write failed for node '%s'", node.ID),
			Error:  err.Error(),
		}
	}

	return types.MemoryOpResult{Status: types.MemoryOpOK}
}

// WriteEdge upserts a graph edge.
func (s *LocalStore) WriteEdge(ctx context.Context, edge *types.GraphEdge) types.MemoryOpResult {
	if edge == nil || edge.Source == "" || edge.Target == "" || edge.Relationship == "" {
		return types.MemoryOpResult{Status: types.MemoryOpFailed, Reason: "graph edge requires source, target and relationship"}
	}

	attrsJSON, err := json.Marshal(edge.Attributes)
	if err != nil {
		return types.MemoryOpResult{
			Status: types.MemoryOpFailed,
			Reason: "failed to encode edge attributes",
			Error:  err.Error(),
		}
	}

	scope := edge.Scope
	if scope == "" {
		scope = types.ScopeLocal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Writing graph edge %s -[%s]-> %s", edge.Source, edge.Relationship, edge.Target)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO graph_edges (source, target, relationship, scope, attributes_json)
		 VALUES (?, ?, ?, ?, ?)`,
		edge.Source, edge.Target, edge.Relationship, string(scope), string(attrsJSON),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Errorf("Failed to write graph edge: %v", err)
		return types.MemoryOpResult{
			Status: types.MemoryOpFailed,
			Reason: fmt.Sprintf("edge write failed for '%s' -> '%s'", edge.Source, edge.Target),
			Error:  err.Error(),
		}
	}

	return types.MemoryOpResult{Status: types.MemoryOpOK}
}

// GetNode fetches one node by id and scope. Returns nil when absent.
func (s *LocalStore) GetNode(ctx context.Context, id string, scope types.GraphScope) (*types.GraphNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT node_id, scope, node_type, attributes_json, updated_by, updated_at
		 FROM graph_nodes WHERE node_id = ? AND scope = ?`,
		id, string(scope),
	)

	var node types.GraphNode
	var scopeStr, typeStr, updatedAt string
	var attrsJSON, updatedBy sql.NullString
	if err := row.Scan(&node.ID, &scopeStr, &typeStr, &attrsJSON, &updatedBy, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read graph node %s: %w", id, err)
	}

	node.Scope = types.GraphScope(scopeStr)
	node.Type = types.NodeType(typeStr)
	node.UpdatedBy = updatedBy.String
	if t, err := parseTime(updatedAt); err == nil {
		node.UpdatedAt = t
	}
	if attrsJSON.Valid && attrsJSON.String != "" {
		if err := json.Unmarshal([]byte(attrsJSON.String), &node.Attributes); err != nil {
			// One corrupted attribute bag should not hide the node itself.
			logging.Get(logging.CategoryStore).Warnf("Attribute decode failed for node %s: %v", id, err)
		}
	}
	return &node, nil
}

var _ types.GraphStore = (*LocalStore)(nil)
