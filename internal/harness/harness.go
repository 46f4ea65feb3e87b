package harness

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/linewalk/internal/store"
	"github.com/roach88/linewalk/internal/testutil"
	"github.com/roach88/linewalk/internal/tracefile"
	"github.com/roach88/linewalk/internal/walk"
)

// Harness is the test execution engine.
// It runs scenarios against a real engine with a fixed run ID and an
// isolated store.
type Harness struct {
	store  *store.Store
	engine *walk.Engine
	ids    walk.RunIDGenerator
	logger *zap.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Run the engine over the scenario config
// 3. Persist the trace and read it back
// 4. Round-trip the stored trace through a trace file
// 5. Replay the stored run under its stored budget
// 6. Validate the expect clause and assertions against the stored trace
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, zap.NewNop())
}

// RunWithLogger is Run with engine logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *zap.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		engine: walk.New(walk.WithLogger(logger), walk.WithMaxSpan(scenario.MaxSpan)),
		ids:    testutil.NewFixedRunID(scenario.runID()),
		logger: logger,
	}

	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	runID := h.ids.Generate()
	produced := h.engine.Begin(scenario.Config)

	if _, err := h.store.SaveResult(ctx, runID, produced, h.engine.MaxSpan()); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	run, stored, err := h.store.ReadResult(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	result := NewResult()
	result.RunID = run.ID
	result.Trace = stored.Events
	result.Reason = stored.Reason
	result.Digest = run.Digest
	if stored.Rejection != nil {
		result.Rejection = stored.Rejection.Code
	}

	if err := checkTraceFile(runID, stored, run.Digest); err != nil {
		result.AddError(err.Error())
	}

	replay, err := h.store.Replay(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to replay run: %w", err)
	}
	if !replay.Deterministic {
		result.AddError("replay: " + replay.Detail)
	}

	if scenario.Expect != nil {
		for _, msg := range checkExpect(scenario.Expect, result) {
			result.AddError(msg)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario evaluated",
		zap.String("scenario", scenario.Name),
		zap.String("run_id", runID),
		zap.Bool("pass", result.Pass),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// checkTraceFile writes the stored result to a trace file in memory, reads
// it back, and requires the same digest.
func checkTraceFile(runID string, stored walk.Result, digest string) error {
	var buf bytes.Buffer
	if err := tracefile.WriteResult(&buf, runID, stored); err != nil {
		return fmt.Errorf("trace file: write: %w", err)
	}

	trace, err := tracefile.ReadAll(&buf)
	if err != nil {
		return fmt.Errorf("trace file: read: %w", err)
	}
	if trace.Digest != digest {
		return fmt.Errorf("trace file: digest %s, store has %s", trace.Digest, digest)
	}
	return nil
}

// checkExpect compares the stored trace with the expect clause.
func checkExpect(expect *ExpectClause, result *Result) []string {
	var errs []string

	if result.Reason != expect.Reason {
		errs = append(errs, fmt.Sprintf("expect: reason %s, got %s", expect.Reason, result.Reason))
	}
	if expect.Rejection != "" && result.Rejection != expect.Rejection {
		errs = append(errs, fmt.Sprintf("expect: rejection %s, got %q", expect.Rejection, result.Rejection))
	}

	if expect.Events == nil {
		return errs
	}

	if len(result.Trace) != len(expect.Events) {
		errs = append(errs, fmt.Sprintf("expect: %d events, got %d", len(expect.Events), len(result.Trace)))
	}

	n := min(len(result.Trace), len(expect.Events))
	for i := 0; i < n; i++ {
		want := walk.Event{
			Phase:    expect.Events[i].Phase,
			Position: expect.Events[i].Position,
			Seq:      int64(i),
		}
		if got := result.Trace[i]; got != want {
			errs = append(errs, fmt.Sprintf("expect: event %d is %s, want %s", i, got, want))
		}
	}

	return errs
}
