package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linewalk/internal/walk"
)

func pairTrace(positions ...walk.Position) []walk.Event {
	var trace []walk.Event
	for _, p := range positions {
		seq := int64(len(trace))
		trace = append(trace,
			walk.Event{Phase: walk.PhaseCrawl, Position: p, Seq: seq},
			walk.Event{Phase: walk.PhaseAnalyze, Position: p, Seq: seq + 1},
		)
	}
	return trace
}

func resultFor(trace []walk.Event) *Result {
	r := NewResult()
	r.Trace = trace
	r.Reason = walk.ReasonBoundExceeded
	return r
}

func ptr(v int64) *int64 { return &v }

func TestEvaluateAssertions_Pass(t *testing.T) {
	r := resultFor(pairTrace(1, 2, 3))
	assertions := []Assertion{
		{Type: AssertTraceCount, Phase: "crawl", Count: 3},
		{Type: AssertTraceCount, Phase: "analyze", Count: 3},
		{Type: AssertTraceOrder, Phases: []string{"crawl", "analyze"}},
		{Type: AssertAlternation},
		{Type: AssertReason, Reason: "BOUND_EXCEEDED"},
		{Type: AssertLastPosition, Position: ptr(3)},
		{Type: AssertSeqContiguous},
	}

	assert.Empty(t, EvaluateAssertions(r, assertions))
}

func TestEvaluateAssertions_EmptyTrace(t *testing.T) {
	r := resultFor([]walk.Event{})
	r.Reason = walk.ReasonConfigurationRejected

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertAlternation},
		{Type: AssertSeqContiguous},
		{Type: AssertTraceCount, Phase: "crawl", Count: 0},
		{Type: AssertReason, Reason: "CONFIGURATION_REJECTED"},
	})
	assert.Empty(t, errs)
}

func TestAssertTraceCount_Fail(t *testing.T) {
	err := assertTraceCount(pairTrace(1, 2), Assertion{Phase: "crawl", Count: 3})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "crawl appears 3 times", ae.Expected)
	assert.Equal(t, "crawl appears 2 times", ae.Actual)
}

func TestAssertTraceOrder_Fail(t *testing.T) {
	err := assertTraceOrder(pairTrace(1), Assertion{Phases: []string{"analyze"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 0 is crawl, want analyze")

	err = assertTraceOrder(pairTrace(1), Assertion{Phases: []string{"crawl", "analyze", "crawl"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trace has only 2 events")
}

func TestAssertAlternation_Fail(t *testing.T) {
	tests := []struct {
		name  string
		trace []walk.Event
		want  string
	}{
		{
			name: "starts with analyze",
			trace: []walk.Event{
				{Phase: walk.PhaseAnalyze, Position: 1, Seq: 0},
			},
			want: "event 0 is analyze",
		},
		{
			name: "analyze at other position",
			trace: []walk.Event{
				{Phase: walk.PhaseCrawl, Position: 1, Seq: 0},
				{Phase: walk.PhaseAnalyze, Position: 2, Seq: 1},
			},
			want: "analyze at position 2",
		},
		{
			name: "dangling crawl",
			trace: []walk.Event{
				{Phase: walk.PhaseCrawl, Position: 1, Seq: 0},
			},
			want: "trace ends with Crawl(1,#0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertAlternation(tt.trace)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAssertReason_Fail(t *testing.T) {
	err := assertReason(resultFor(pairTrace(1)), Assertion{Reason: "CONFIGURATION_REJECTED"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: BOUND_EXCEEDED")
}

func TestAssertLastPosition_Fail(t *testing.T) {
	err := assertLastPosition(pairTrace(1, 2), Assertion{Position: ptr(3)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last position 2")

	err = assertLastPosition(nil, Assertion{Position: ptr(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty trace")
}

func TestAssertSeqContiguous_Fail(t *testing.T) {
	trace := pairTrace(1, 2)
	trace[2].Seq = 7

	err := assertSeqContiguous(trace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seq 2 at index 2")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertReason,
		Expected: "a",
		Actual:   "b",
		Trace:    pairTrace(4),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: reason")
	assert.Contains(t, msg, "Crawl(4,#0)")
	assert.Contains(t, msg, "Analyze(4,#1)")
}

func TestEvaluateAssertions_PrefixesIndex(t *testing.T) {
	errs := EvaluateAssertions(resultFor(pairTrace(1)), []Assertion{
		{Type: AssertSeqContiguous},
		{Type: AssertLastPosition, Position: ptr(9)},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion[1]:")
	assert.Contains(t, errs[1], "assertion[2]: unknown assertion type: bogus")
}
