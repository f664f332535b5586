// Package dispatch executes action-selection results against the graph
// memory store. Each handler runs one decision for one thought:
// audit start, validate parameters, enforce the Wise Authority gate for
// identity-scope mutations, perform the effect, transition the thought
// to a terminal status, and chain a follow-up thought carrying the
// outcome forward.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Deps are the injected capabilities a handler needs. All shared
// services are passed explicitly; there are no process-wide singletons.
type Deps struct {
	Memory       types.GraphStore
	Thoughts     types.ThoughtStore
	Correlations types.CorrelationLog
	Audit        types.AuditSink
	Clock        types.Clock
}

// BaseHandler carries the shared machinery of all action handlers.
type BaseHandler struct {
	deps Deps
	name string
}

// NewBaseHandler wires the shared handler machinery.
func NewBaseHandler(name string, deps Deps) BaseHandler {
	if deps.Clock == nil {
		deps.Clock = types.SystemClock{}
	}
	return BaseHandler{deps: deps, name: name}
}

// auditLog records one audit entry. Audit failures never abort the
// local dispatch path; they are logged and surfaced to the caller only
// through the unexpected-error path when the terminal entry is at risk.
func (h *BaseHandler) auditLog(ctx context.Context, action types.HandlerActionType, dc types.DispatchContext, outcome string) error {
	if h.deps.Audit == nil {
		return nil
	}
	if err := h.deps.Audit.LogEvent(ctx, action, dc, outcome); err != nil {
		logging.Get(logging.CategoryDispatch).Errorf("Audit log failed (action=%s outcome=%s): %v", action, outcome, err)
		return err
	}
	return nil
}

// beginCorrelation opens the pending execution record for this dispatch.
func (h *BaseHandler) beginCorrelation(ctx context.Context, action types.HandlerActionType, dc types.DispatchContext) string {
	if h.deps.Correlations == nil {
		return dc.CorrelationID
	}
	id := dc.CorrelationID
	if id == "" {
		id = uuid.NewString()
	}
	now := h.deps.Clock.Now()
	corr := &types.ServiceCorrelation{
		CorrelationID: id,
		ServiceType:   "handler",
		HandlerName:   h.name,
		ActionType:    string(action),
		Status:        types.CorrelationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Timestamp:     now,
	}
	if err := h.deps.Correlations.CreateCorrelation(ctx, corr); err != nil {
		// Correlation records are telemetry; a failed append must not
		// block the action itself.
		logging.Get(logging.CategoryDispatch).Warnf("Failed to create correlation %s: %v", id, err)
	}
	return id
}

// finishCorrelation closes the execution record exactly once.
func (h *BaseHandler) finishCorrelation(ctx context.Context, correlationID string, ok bool) {
	if h.deps.Correlations == nil || correlationID == "" {
		return
	}
	status := types.CorrelationCompleted
	if !ok {
		status = types.CorrelationFailed
	}
	if err := h.deps.Correlations.UpdateCorrelation(ctx, correlationID, types.CorrelationUpdate{Status: status}, h.deps.Clock); err != nil {
		logging.Get(logging.CategoryDispatch).Warnf("Failed to update correlation %s: %v", correlationID, err)
	}
}

// convertParams decodes the raw action parameters into the handler's
// typed shape. The round-trip through JSON gives one uniform decode
// path for payloads arriving as generic maps.
func convertParams(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("parameters are not serializable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// finalActionFor snapshots the action decision onto the thought row.
func finalActionFor(result *types.ActionSelectionResult) *types.FinalAction {
	if result == nil {
		return nil
	}
	return &types.FinalAction{
		ActionType:       string(result.SelectedAction),
		ActionParameters: result.ActionParameters,
		Reasoning:        result.Rationale,
	}
}
