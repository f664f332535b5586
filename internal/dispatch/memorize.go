package dispatch

import (
	"context"
	"fmt"
	"strings"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// identityPathPrefix marks node ids that live under the agent's
// identity subtree regardless of their declared scope.
const identityPathPrefix = "agent/identity"

// MemorizeParams is the typed parameter shape of a memorize action.
type MemorizeParams struct {
	Node types.GraphNode `json:"node"`
}

// validate checks the converted parameters for the required fields.
func (p *MemorizeParams) validate() error {
	if p.Node.ID == "" {
		return fmt.Errorf("node id is required")
	}
	if p.Node.Type == "" {
		return fmt.Errorf("node type is required")
	}
	return nil
}

// MemorizeHandler executes memorize actions: it writes one graph node
// on behalf of the reasoning loop, gated by Wise Authority approval for
// identity-scope mutations.
type MemorizeHandler struct {
	BaseHandler
}

// NewMemorizeHandler wires a memorize handler with its capabilities.
func NewMemorizeHandler(deps Deps) *MemorizeHandler {
	return &MemorizeHandler{BaseHandler: NewBaseHandler("MemorizeHandler", deps)}
}

// isIdentityNode reports whether the mutation addresses protected
// identity scope: declared IDENTITY scope, an identity path id, or the
// agent node type.
func isIdentityNode(node *types.GraphNode) bool {
	return node.Scope == types.ScopeIdentity ||
		strings.HasPrefix(node.ID, identityPathPrefix) ||
		node.Type == types.NodeTypeAgent
}

// Handle executes one memorize decision for one thought and returns the
// follow-up thought id. Validation failures, missing WA authorization,
// and store-reported failures are recovered locally: the thought ends
// failed and the follow-up names the problem. A non-nil error is
// returned only for the fatal path, after the thought has been forced
// to failed through a direct status write.
func (h *MemorizeHandler) Handle(
	ctx context.Context,
	result *types.ActionSelectionResult,
	thought *types.Thought,
	dc types.DispatchContext,
) (string, error) {
	if dc.HandlerName == "" {
		dc.HandlerName = h.name
	}

	// Audit the attempt before any mutation.
	if err := h.auditLog(ctx, types.ActionMemorize, dc, "start"); err != nil {
		logging.Get(logging.CategoryDispatch).Warnf("Start audit failed for thought %s, continuing: %v", thought.ThoughtID, err)
	}
	correlationID := h.beginCorrelation(ctx, types.ActionMemorize, dc)

	// Validate and convert parameters.
	var params MemorizeParams
	err := convertParams(result.ActionParameters, &params)
	if err == nil {
		err = params.validate()
	}
	if err != nil {
		return h.recoverValidation(ctx, err, result, thought, dc, correlationID)
	}

	return h.execute(ctx, &params, result, thought, dc, correlationID)
}

// recoverValidation handles the non-fatal parameter failure path.
func (h *MemorizeHandler) recoverValidation(
	ctx context.Context,
	cause error,
	result *types.ActionSelectionResult,
	thought *types.Thought,
	dc types.DispatchContext,
	correlationID string,
) (string, error) {
	verr := &ParameterValidationError{Action: string(types.ActionMemorize), Cause: cause}
	logging.Get(logging.CategoryDispatch).Warnf("Thought %s: %v", thought.ThoughtID, verr)
	_ = h.auditLog(ctx, types.ActionMemorize, dc, "failed")

	followUpID, err := h.completeThoughtAndCreateFollowUp(ctx, thought, types.ThoughtFailed, result,
		fmt.Sprintf("MEMORIZE action failed: %v", verr))
	if err != nil {
		h.finishCorrelation(ctx, correlationID, false)
		return "", h.fatal(ctx, thought, result, dc, err)
	}

	h.finishCorrelation(ctx, correlationID, false)
	return followUpID, nil
}

// execute runs the authorization gate, the effect, and the terminal
// bookkeeping.
func (h *MemorizeHandler) execute(
	ctx context.Context,
	params *MemorizeParams,
	result *types.ActionSelectionResult,
	thought *types.Thought,
	dc types.DispatchContext,
	correlationID string,
) (string, error) {
	node := params.Node

	// Fail closed: identity mutations happen only with explicit Wise
	// Authority approval, and the rejection performs no mutation.
	if isIdentityNode(&node) && !dc.WAAuthorized {
		logging.Get(logging.CategoryDispatch).Warnf(
			"WA authorization required for memorize to identity graph. Thought %s denied.", thought.ThoughtID)
		_ = h.auditLog(ctx, types.ActionMemorize, dc, "failed_wa_required")

		followUpID, err := h.completeThoughtAndCreateFollowUp(ctx, thought, types.ThoughtFailed, result,
			"MEMORIZE action failed: WA authorization required for identity changes")
		if err != nil {
			h.finishCorrelation(ctx, correlationID, false)
			return "", h.fatal(ctx, thought, result, dc, err)
		}

		h.finishCorrelation(ctx, correlationID, false)
		return followUpID, nil
	}

	if node.UpdatedBy == "" {
		node.UpdatedBy = h.name
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = h.deps.Clock.Now()
	}

	memResult := h.deps.Memory.WriteNode(ctx, &node)
	success := memResult.Status == types.MemoryOpOK

	var followUpContent string
	status := types.ThoughtFailed
	if success {
		status = types.ThoughtCompleted
		preview := attributePreview(node.Attributes)
		if preview != "" {
			preview = ": " + preview
		}
		followUpContent = fmt.Sprintf(
			"MEMORIZE COMPLETE - stored %s '%s'%s. "+
				"ACTION REQUIRED: Your next action should be TASK_COMPLETE unless further action is needed "+
				"to complete the parent task. Do NOT memorize again - the information is already stored.",
			node.Type, node.ID, preview)
	} else {
		reason := memResult.Reason
		if reason == "" {
			reason = memResult.Error
		}
		if reason == "" {
			reason = "Unknown error"
		}
		followUpContent = fmt.Sprintf("Failed to memorize node '%s': %s", node.ID, reason)
	}

	followUpID, err := h.completeThoughtAndCreateFollowUp(ctx, thought, status, result, followUpContent)
	if err != nil {
		h.finishCorrelation(ctx, correlationID, false)
		return "", h.fatal(ctx, thought, result, dc, err)
	}

	outcome := "success"
	if !success {
		outcome = "failed"
	}
	if err := h.auditLog(ctx, types.ActionMemorize, dc, outcome); err != nil {
		h.finishCorrelation(ctx, correlationID, false)
		return "", h.fatal(ctx, thought, result, dc, fmt.Errorf("terminal audit failed: %w", err))
	}

	h.finishCorrelation(ctx, correlationID, success)
	return followUpID, nil
}

// fatal is the unexpected-error path: the invariant "exactly one
// terminal audit + one status write" can no longer be guaranteed via
// the standard path, so the thought is forced to failed through a
// direct status write (bypassing the follow-up helper, which may itself
// be the failure point), a distinct error follow-up is created, and the
// error propagates for a supervisor to observe.
func (h *MemorizeHandler) fatal(
	ctx context.Context,
	thought *types.Thought,
	result *types.ActionSelectionResult,
	dc types.DispatchContext,
	cause error,
) error {
	logging.Get(logging.CategoryDispatch).Errorf("Unexpected error dispatching thought %s: %v", thought.ThoughtID, cause)
	_ = h.auditLog(ctx, types.ActionMemorize, dc, "failed")

	if err := h.deps.Thoughts.UpdateThoughtStatus(ctx, thought.ThoughtID, types.ThoughtFailed, finalActionFor(result)); err != nil {
		logging.Get(logging.CategoryDispatch).Errorf("Forced status write failed for thought %s: %v", thought.ThoughtID, err)
	}

	errFollowUp := newFollowUpThought(thought, h.deps.Clock, fmt.Sprintf("MEMORIZE action failed with error: %v", cause))
	if err := h.deps.Thoughts.AddThought(ctx, errFollowUp); err != nil {
		logging.Get(logging.CategoryDispatch).Errorf("Error follow-up creation failed for thought %s: %v", thought.ThoughtID, err)
	}

	return &FollowUpCreationError{ThoughtID: thought.ThoughtID, Cause: cause}
}
