package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cortex/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestFileSinkAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	sink, err := NewFileSink(path, clock)
	if err != nil {
		t.Fatal(err)
	}

	dispatch := types.DispatchContext{
		HandlerName:   "MemorizeHandler",
		ChannelID:     "ch-1",
		SourceTaskID:  "task-1",
		CorrelationID: "corr-1",
		WAAuthorized:  true,
	}
	if err := sink.LogEvent(context.Background(), types.ActionMemorize, dispatch, OutcomeStart); err != nil {
		t.Fatal(err)
	}
	if err := sink.LogEvent(context.Background(), types.ActionMemorize, dispatch, OutcomeSuccess); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		events = append(events, e)
	}

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Outcome != OutcomeStart || events[1].Outcome != OutcomeSuccess {
		t.Errorf("outcomes = %s, %s", events[0].Outcome, events[1].Outcome)
	}
	if events[0].ActionType != "memorize" || events[0].HandlerName != "MemorizeHandler" {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].CorrelationID != "corr-1" || !events[0].WAAuthorized {
		t.Errorf("event = %+v", events[0])
	}
	if events[0].Timestamp != clock.t.UnixMilli() {
		t.Errorf("ts = %d, want %d", events[0].Timestamp, clock.t.UnixMilli())
	}
}

func TestFileSinkAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := sink.LogEvent(context.Background(), types.ActionMemorize, types.DispatchContext{}, OutcomeStart); err != nil {
			t.Fatal(err)
		}
		sink.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2 (reopen must append, not truncate)", lines)
	}
}

func TestFileSinkClosed(t *testing.T) {
	sink, err := NewFileSink(filepath.Join(t.TempDir(), "audit.jsonl"), nil)
	if err != nil {
		t.Fatal(err)
	}
	sink.Close()

	if err := sink.LogEvent(context.Background(), types.ActionMemorize, types.DispatchContext{}, OutcomeStart); err == nil {
		t.Error("logging to a closed sink must fail")
	}
	// Double close is a no-op.
	if err := sink.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
