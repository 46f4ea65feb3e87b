package walk

import (
	"fmt"

	"github.com/roach88/linewalk/internal/ir"
)

// Position is an ordinal index into an abstract ordered sequence of lines.
// Valid positions are non-negative.
type Position int64

// Config is the immutable input of one traversal run.
type Config struct {
	// StartPosition is the first position crawled. Must be >= 0.
	StartPosition Position `json:"start" yaml:"start"`

	// MaxPosition is the inclusive upper bound. A position equal to
	// MaxPosition is still crawled and analyzed.
	MaxPosition Position `json:"max" yaml:"max"`
}

// Span returns MaxPosition - StartPosition.
// Negative when the config is degenerate.
func (c Config) Span() int64 {
	return int64(c.MaxPosition) - int64(c.StartPosition)
}

// String renders the config as "[start..max]".
func (c Config) String() string {
	return fmt.Sprintf("[%d..%d]", c.StartPosition, c.MaxPosition)
}

// Phase tags which of the two cooperating roles produced an event.
type Phase int

const (
	// PhaseCrawl is emitted by the Position Sequencer.
	PhaseCrawl Phase = iota + 1
	// PhaseAnalyze is emitted by the Step Processor.
	PhaseAnalyze
)

// String returns the lowercase phase name used in traces and storage.
func (p Phase) String() string {
	switch p {
	case PhaseCrawl:
		return "crawl"
	case PhaseAnalyze:
		return "analyze"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	switch p {
	case PhaseCrawl, PhaseAnalyze:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("unknown phase: %d", int(p))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePhase parses "crawl" or "analyze".
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "crawl":
		return PhaseCrawl, nil
	case "analyze":
		return PhaseAnalyze, nil
	}
	return 0, fmt.Errorf("unknown phase %q: must be crawl or analyze", s)
}

// Event is one immutable entry of a trace.
type Event struct {
	Phase    Phase    `json:"phase"`
	Position Position `json:"position"`
	Seq      int64    `json:"seq"`
}

// String renders the event as "Crawl(1,#0)".
func (e Event) String() string {
	name := "Crawl"
	if e.Phase == PhaseAnalyze {
		name = "Analyze"
	}
	return fmt.Sprintf("%s(%d,#%d)", name, e.Position, e.Seq)
}

// TerminationReason classifies why a run stopped.
type TerminationReason string

const (
	// ReasonBoundExceeded is normal termination: the position passed MaxPosition.
	ReasonBoundExceeded TerminationReason = "BOUND_EXCEEDED"

	// ReasonConfigurationRejected means the config failed validation
	// before any event was recorded.
	ReasonConfigurationRejected TerminationReason = "CONFIGURATION_REJECTED"
)

// ParseReason parses a stored termination reason.
func ParseReason(s string) (TerminationReason, error) {
	switch r := TerminationReason(s); r {
	case ReasonBoundExceeded, ReasonConfigurationRejected:
		return r, nil
	}
	return "", fmt.Errorf("unknown termination reason %q", s)
}

// Result is the sole output of a traversal run.
//
// Events is never nil. Rejection is set only when Reason is
// ReasonConfigurationRejected.
type Result struct {
	Config    Config            `json:"config"`
	Events    []Event           `json:"events"`
	Reason    TerminationReason `json:"reason"`
	Rejection *ConfigError      `json:"rejection,omitempty"`
}

// Rejected reports whether the run ended with ReasonConfigurationRejected.
func (r Result) Rejected() bool {
	return r.Reason == ReasonConfigurationRejected
}

// Count returns the number of events recorded for phase.
func (r Result) Count(phase Phase) int {
	n := 0
	for _, ev := range r.Events {
		if ev.Phase == phase {
			n++
		}
	}
	return n
}

// Canonical converts the result to plain values for ir.MarshalCanonical.
func (r Result) Canonical() map[string]any {
	events := make([]any, len(r.Events))
	for i, ev := range r.Events {
		events[i] = map[string]any{
			"phase":    ev.Phase.String(),
			"position": int64(ev.Position),
			"seq":      ev.Seq,
		}
	}

	out := map[string]any{
		"config": map[string]any{
			"start": int64(r.Config.StartPosition),
			"max":   int64(r.Config.MaxPosition),
		},
		"events": events,
		"reason": string(r.Reason),
	}
	if r.Rejection != nil {
		out["rejection"] = string(r.Rejection.Code)
	}
	return out
}

// Digest returns the content-addressed digest of the trace.
// Two results are structurally identical exactly when their digests match.
func (r Result) Digest() (string, error) {
	return ir.TraceDigest(r.Canonical())
}
