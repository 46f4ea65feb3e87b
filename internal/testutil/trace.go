package testutil

import "github.com/roach88/linewalk/internal/walk"

// ExpectedEvents computes the trace a successful run over cfg must produce,
// independently of the engine: for each p in [start..max], Crawl(p) then
// Analyze(p), with seq counting from 0.
//
// Returns an empty, non-nil slice when cfg would be rejected.
func ExpectedEvents(cfg walk.Config) []walk.Event {
	if cfg.StartPosition < 0 || cfg.MaxPosition < cfg.StartPosition {
		return []walk.Event{}
	}

	events := make([]walk.Event, 0, 2*(cfg.Span()+1))
	var seq int64
	for p := cfg.StartPosition; p <= cfg.MaxPosition; p++ {
		events = append(events,
			walk.Event{Phase: walk.PhaseCrawl, Position: p, Seq: seq},
			walk.Event{Phase: walk.PhaseAnalyze, Position: p, Seq: seq + 1},
		)
		seq += 2
	}
	return events
}

// ExpectedResult wraps ExpectedEvents in a BOUND_EXCEEDED result.
// Only meaningful for configs the engine accepts.
func ExpectedResult(cfg walk.Config) walk.Result {
	return walk.Result{
		Config: cfg,
		Events: ExpectedEvents(cfg),
		Reason: walk.ReasonBoundExceeded,
	}
}
