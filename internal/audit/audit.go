// Package audit provides the append-only audit trail for handler
// execution. Entries are structured JSONL events; every dispatch writes
// a "start" entry before any mutation and exactly one terminal entry
// afterwards.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Well-known outcomes. Terminal outcomes for one dispatch are exactly
// one of success/failed/failed_wa_required.
const (
	OutcomeStart      = "start"
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeWARequired = "failed_wa_required"
)

// Event is one audit trail entry.
type Event struct {
	Timestamp     int64  `json:"ts"`      // Unix milliseconds
	ActionType    string `json:"action"`  // Handler action executed
	Outcome       string `json:"outcome"` // start/success/failed/failed_wa_required
	HandlerName   string `json:"handler,omitempty"`
	ChannelID     string `json:"channel,omitempty"`
	SourceTaskID  string `json:"task,omitempty"`
	CorrelationID string `json:"corr,omitempty"`
	WAAuthorized  bool   `json:"wa_authorized"`
}

// FileSink writes audit events as JSON lines to a single append-only
// file. It implements types.AuditSink.
type FileSink struct {
	mu    sync.Mutex
	file  *os.File
	clock types.Clock
}

// NewFileSink opens (or creates) the audit log at path.
func NewFileSink(path string, clock types.Clock) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	if clock == nil {
		clock = types.SystemClock{}
	}
	logging.Get(logging.CategoryAudit).Infof("Audit trail opened at %s", path)
	return &FileSink{file: f, clock: clock}, nil
}

// LogEvent appends one audit entry. The entry is flushed before return
// so the trail survives a crash of the dispatching process.
func (s *FileSink) LogEvent(ctx context.Context, actionType types.HandlerActionType, dispatch types.DispatchContext, outcome string) error {
	event := Event{
		Timestamp:     s.clock.Now().UnixMilli(),
		ActionType:    string(actionType),
		Outcome:       outcome,
		HandlerName:   dispatch.HandlerName,
		ChannelID:     dispatch.ChannelID,
		SourceTaskID:  dispatch.SourceTaskID,
		CorrelationID: dispatch.CorrelationID,
		WAAuthorized:  dispatch.WAAuthorized,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("audit sink closed")
	}
	if _, err := s.file.Write(append(data, '\n')); err != nil {
		logging.Get(logging.CategoryAudit).Errorf("Audit write failed: %v", err)
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return s.file.Sync()
}

// Close closes the underlying file. Further LogEvent calls fail.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

var _ types.AuditSink = (*FileSink)(nil)
