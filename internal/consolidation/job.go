package consolidation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cortex/internal/logging"
	"cortex/internal/types"
)

// Job drives periodic trace consolidation: every period it loads the
// previous full window's spans, consolidates them into a summary node,
// and materializes the derived edges. Edge writes run concurrently and
// tolerate partial failure; the summary's persistence never waits on
// them.
type Job struct {
	consolidator *TraceConsolidator
	memory       types.GraphStore
	spans        types.SpanSource
	clock        types.Clock
	period       time.Duration
	edgeWorkers  int

	stop chan struct{}
	done chan struct{}
}

// NewJob wires a consolidation job.
func NewJob(memory types.GraphStore, spans types.SpanSource, clock types.Clock, period time.Duration, edgeWorkers int) *Job {
	if clock == nil {
		clock = types.SystemClock{}
	}
	if period <= 0 {
		period = time.Hour
	}
	if edgeWorkers <= 0 {
		edgeWorkers = 4
	}
	return &Job{
		consolidator: NewTraceConsolidator(memory),
		memory:       memory,
		spans:        spans,
		clock:        clock,
		period:       period,
		edgeWorkers:  edgeWorkers,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to shut it down.
func (j *Job) Start(ctx context.Context) {
	go j.loop(ctx)
}

// Stop shuts the loop down and waits for it to exit.
func (j *Job) Stop() {
	close(j.stop)
	<-j.done
}

func (j *Job) loop(ctx context.Context) {
	defer close(j.done)

	ticker := time.NewTicker(j.period)
	defer ticker.Stop()

	logging.Consolidation("Consolidation job started (period=%s)", j.period)
	for {
		select {
		case <-j.stop:
			logging.Consolidation("Consolidation job stopped")
			return
		case <-ctx.Done():
			logging.Consolidation("Consolidation job context cancelled")
			return
		case <-ticker.C:
			// Consolidate the window that just closed.
			windowStart := j.clock.Now().Truncate(j.period).Add(-j.period)
			if err := j.RunOnce(ctx, windowStart); err != nil {
				logging.Get(logging.CategoryConsolidation).Errorf("Consolidation run failed: %v", err)
			}
		}
	}
}

// RunOnce consolidates the single window starting at periodStart. The
// run is idempotent: the summary id is derived from the window start,
// so a retry after a crash overwrites rather than duplicates.
func (j *Job) RunOnce(ctx context.Context, periodStart time.Time) error {
	periodStart = periodStart.UTC().Truncate(j.period)
	periodEnd := periodStart.Add(j.period)
	label := fmt.Sprintf("%s to %s", periodStart.Format(time.RFC3339), periodEnd.Format(time.RFC3339))

	spans, err := j.spans.SpansInPeriod(ctx, periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to load spans for %s: %w", label, err)
	}

	summary := j.consolidator.Consolidate(ctx, periodStart, periodEnd, label, spans)
	if summary == nil {
		return fmt.Errorf("trace summary for %s not stored", label)
	}

	j.writeEdges(ctx, summary, spans)
	return nil
}

// writeEdges persists the derived edges with bounded concurrency.
// Individual failures are logged and counted, never fatal: a partially
// edged summary is still a valid summary.
func (j *Job) writeEdges(ctx context.Context, summary *types.GraphNode, spans []types.TraceSpanData) {
	edges := Edges(summary, spans)
	if len(edges) == 0 {
		return
	}

	var failures atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.edgeWorkers)
	for i := range edges {
		edge := edges[i]
		g.Go(func() error {
			if result := j.memory.WriteEdge(gctx, &edge); result.Status != types.MemoryOpOK {
				failures.Add(1)
				logging.Get(logging.CategoryConsolidation).Warnf(
					"Edge write failed (%s -> %s %s): %s %s",
					edge.Source, edge.Target, edge.Relationship, result.Reason, result.Error)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failures.Load(); n > 0 {
		logging.Consolidation("Wrote %d/%d edges for summary %s", int64(len(edges))-n, len(edges), summary.ID)
		return
	}
	logging.ConsolidationDebug("Wrote %d edges for summary %s", len(edges), summary.ID)
}
