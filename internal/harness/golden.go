package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/linewalk/internal/ir"
)

// GoldenDir is the fixture directory, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Start        int64
	Max          int64
	Reason       string
	Rejection    string
	Trace        []any
}

// NewTraceSnapshot builds the snapshot of a scenario run.
func NewTraceSnapshot(scenario *Scenario, result *Result) TraceSnapshot {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = map[string]any{
			"phase":    ev.Phase.String(),
			"position": int64(ev.Position),
			"seq":      ev.Seq,
		}
	}

	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Start:        int64(scenario.Config.StartPosition),
		Max:          int64(scenario.Config.MaxPosition),
		Reason:       string(result.Reason),
		Rejection:    string(result.Rejection),
		Trace:        trace,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"config": map[string]any{
			"start": s.Start,
			"max":   s.Max,
		},
		"reason": s.Reason,
		"trace":  s.Trace,
	}
	if s.Rejection != "" {
		m["rejection"] = s.Rejection
	}
	return m
}

// Marshal returns the canonical JSON bytes written to golden files.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenario, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
