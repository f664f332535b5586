package types

import "testing"

func TestParseTaskStatus(t *testing.T) {
	if status, ok := ParseTaskStatus("completed"); !ok || status != TaskCompleted {
		t.Errorf("got (%s, %v)", status, ok)
	}
	if status, ok := ParseTaskStatus("running"); ok || status != TaskPending {
		t.Errorf("unknown value must be rejected with pending default, got (%s, %v)", status, ok)
	}
}

func TestParseThoughtStatus(t *testing.T) {
	if status, ok := ParseThoughtStatus("processing"); !ok || status != ThoughtProcessing {
		t.Errorf("got (%s, %v)", status, ok)
	}
	if _, ok := ParseThoughtStatus("PROCESSING"); ok {
		t.Error("status parsing is case sensitive")
	}
}

func TestThoughtStatusIsTerminal(t *testing.T) {
	terminal := map[ThoughtStatus]bool{
		ThoughtPending:    false,
		ThoughtProcessing: false,
		ThoughtCompleted:  true,
		ThoughtFailed:     true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestSpanComponent(t *testing.T) {
	s := &TraceSpanData{}
	if s.Component() != "unknown" {
		t.Errorf("empty component = %q, want unknown", s.Component())
	}
	s.ComponentType = "dma"
	if s.Component() != "dma" {
		t.Errorf("component = %q", s.Component())
	}
}

func TestSpanLatency(t *testing.T) {
	cases := []struct {
		name   string
		span   TraceSpanData
		want   float64
		wantOK bool
	}{
		{"none", TraceSpanData{}, 0, false},
		{"latency only", TraceSpanData{LatencyMs: 120}, 120, true},
		{"duration only", TraceSpanData{DurationMs: 80}, 80, true},
		{"latency wins", TraceSpanData{LatencyMs: 120, DurationMs: 80}, 120, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.span.Latency()
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("Latency() = (%v, %v), want (%v, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestSpanTag(t *testing.T) {
	s := &TraceSpanData{Tags: map[string]string{"action_type": "memorize", "empty": ""}}
	if s.Tag("action_type", "unknown") != "memorize" {
		t.Error("present tag must win")
	}
	if s.Tag("missing", "unknown") != "unknown" {
		t.Error("missing tag must default")
	}
	if s.Tag("empty", "unknown") != "unknown" {
		t.Error("empty tag value must default")
	}
}
