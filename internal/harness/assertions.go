package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/linewalk/internal/walk"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []walk.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", ev)
	}

	return buf.String()
}

// EvaluateAssertions checks all assertions against the result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertAlternation:
		return assertAlternation(result.Trace)
	case AssertReason:
		return assertReason(result, a)
	case AssertLastPosition:
		return assertLastPosition(result.Trace, a)
	case AssertSeqContiguous:
		return assertSeqContiguous(result.Trace)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertTraceCount checks that the phase appears exactly Count times.
func assertTraceCount(trace []walk.Event, a Assertion) error {
	phase, err := walk.ParsePhase(a.Phase)
	if err != nil {
		return err
	}

	count := 0
	for _, ev := range trace {
		if ev.Phase == phase {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s appears %d times", a.Phase, a.Count),
			Actual:   fmt.Sprintf("%s appears %d times", a.Phase, count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the trace starts with the listed phases.
func assertTraceOrder(trace []walk.Event, a Assertion) error {
	if len(trace) < len(a.Phases) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("trace starts with %v", a.Phases),
			Actual:   fmt.Sprintf("trace has only %d events", len(trace)),
			Trace:    trace,
		}
	}

	for i, want := range a.Phases {
		if got := trace[i].Phase.String(); got != want {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("trace starts with %v", a.Phases),
				Actual:   fmt.Sprintf("event %d is %s, want %s", i, got, want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertAlternation checks that events alternate crawl, analyze, crawl, ...
// and that each analyze shares its crawl's position.
func assertAlternation(trace []walk.Event) error {
	for i, ev := range trace {
		want := walk.PhaseCrawl
		if i%2 == 1 {
			want = walk.PhaseAnalyze
		}
		if ev.Phase != want {
			return &AssertionError{
				Type:     AssertAlternation,
				Expected: fmt.Sprintf("event %d is %s", i, want),
				Actual:   fmt.Sprintf("event %d is %s", i, ev.Phase),
				Trace:    trace,
			}
		}
		if want == walk.PhaseAnalyze && ev.Position != trace[i-1].Position {
			return &AssertionError{
				Type:     AssertAlternation,
				Expected: fmt.Sprintf("analyze at crawl position %d", trace[i-1].Position),
				Actual:   fmt.Sprintf("analyze at position %d", ev.Position),
				Trace:    trace,
			}
		}
	}

	if len(trace)%2 != 0 {
		return &AssertionError{
			Type:     AssertAlternation,
			Expected: "every crawl followed by an analyze",
			Actual:   fmt.Sprintf("trace ends with %s", trace[len(trace)-1]),
			Trace:    trace,
		}
	}
	return nil
}

// assertReason checks the termination reason.
func assertReason(result *Result, a Assertion) error {
	if string(result.Reason) != a.Reason {
		return &AssertionError{
			Type:     AssertReason,
			Expected: a.Reason,
			Actual:   string(result.Reason),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertLastPosition checks the final event's position.
func assertLastPosition(trace []walk.Event, a Assertion) error {
	if len(trace) == 0 {
		return &AssertionError{
			Type:     AssertLastPosition,
			Expected: fmt.Sprintf("last position %d", *a.Position),
			Actual:   "empty trace",
			Trace:    trace,
		}
	}

	last := trace[len(trace)-1]
	if int64(last.Position) != *a.Position {
		return &AssertionError{
			Type:     AssertLastPosition,
			Expected: fmt.Sprintf("last position %d", *a.Position),
			Actual:   fmt.Sprintf("last position %d", last.Position),
			Trace:    trace,
		}
	}
	return nil
}

// assertSeqContiguous checks that seq runs 0, 1, 2, ... in trace order.
func assertSeqContiguous(trace []walk.Event) error {
	for i, ev := range trace {
		if ev.Seq != int64(i) {
			return &AssertionError{
				Type:     AssertSeqContiguous,
				Expected: fmt.Sprintf("seq %d at index %d", i, i),
				Actual:   fmt.Sprintf("seq %d", ev.Seq),
				Trace:    trace,
			}
		}
	}
	return nil
}
