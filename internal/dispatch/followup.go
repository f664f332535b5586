package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// newFollowUpThought builds the next reasoning step chained to a parent
// thought. The follow-up is one level deeper in the thought tree and
// starts pending for the upstream scheduler to pick up.
func newFollowUpThought(parent *types.Thought, clock types.Clock, content string) *types.Thought {
	now := clock.Now()
	followUp := &types.Thought{
		ThoughtID:       uuid.NewString(),
		SourceTaskID:    parent.SourceTaskID,
		ParentThoughtID: parent.ThoughtID,
		Content:         content,
		Status:          types.ThoughtPending,
		RoundNumber:     parent.RoundNumber,
		Depth:           parent.Depth + 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if parent.Context != nil {
		ctx := *parent.Context
		ctx.ParentThoughtID = parent.ThoughtID
		ctx.Depth = followUp.Depth
		followUp.Context = &ctx
	}
	return followUp
}

// completeThoughtAndCreateFollowUp is the standard terminal path for a
// dispatch: write the thought's terminal status, then persist the
// follow-up carrying the outcome forward. Used by every locally
// recovered outcome; the unexpected-error path deliberately bypasses it
// (see MemorizeHandler.Handle).
func (h *BaseHandler) completeThoughtAndCreateFollowUp(
	ctx context.Context,
	thought *types.Thought,
	status types.ThoughtStatus,
	result *types.ActionSelectionResult,
	followUpContent string,
) (string, error) {
	if err := h.deps.Thoughts.UpdateThoughtStatus(ctx, thought.ThoughtID, status, finalActionFor(result)); err != nil {
		return "", fmt.Errorf("failed to set thought %s to %s: %w", thought.ThoughtID, status, err)
	}

	followUp := newFollowUpThought(thought, h.deps.Clock, followUpContent)
	if err := h.deps.Thoughts.AddThought(ctx, followUp); err != nil {
		return "", fmt.Errorf("failed to create follow-up for thought %s: %w", thought.ThoughtID, err)
	}

	logging.DispatchDebug("Thought %s -> %s, follow-up %s created", thought.ThoughtID, status, followUp.ThoughtID)
	return followUp.ThoughtID, nil
}
