package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/linewalk/internal/walk"
)

// Scenario defines a conformance test scenario: one traversal config plus
// the trace it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the traversal input.
	Config walk.Config `yaml:"config"`

	// MaxSpan applies a span budget when positive.
	MaxSpan int64 `yaml:"max_span,omitempty"`

	// RunID is an optional fixed run ID. If empty, defaults to
	// "scenario-<name>" for deterministic storage.
	RunID string `yaml:"run_id,omitempty"`

	// Expect is the exact expected outcome. Optional when assertions are
	// given.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate properties of the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the exact expected trace.
type ExpectClause struct {
	// Reason is the expected termination reason.
	Reason walk.TerminationReason `yaml:"reason"`

	// Rejection is the expected rejection code (CONFIGURATION_REJECTED only).
	Rejection walk.ConfigErrorCode `yaml:"rejection,omitempty"`

	// Events is the full expected event list. Seq is the list index.
	// A nil list is not checked; an empty list requires an empty trace.
	Events []ExpectedEvent `yaml:"events"`
}

// ExpectedEvent is one expected trace entry.
type ExpectedEvent struct {
	Phase    walk.Phase    `yaml:"phase"`
	Position walk.Position `yaml:"position"`
}

// Assertion validates a property of the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_count": phase appears exactly Count times
	// - "trace_order": trace starts with Phases
	// - "alternation": crawl/analyze strictly alternate
	// - "reason": run terminated with Reason
	// - "last_position": final event is at Position
	// - "seq_contiguous": seq runs 0..n-1
	Type string `yaml:"type"`

	// Phase is the counted phase (trace_count).
	Phase string `yaml:"phase,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Phases is the expected phase prefix (trace_order).
	Phases []string `yaml:"phases,omitempty"`

	// Reason is the expected termination reason (reason).
	Reason string `yaml:"reason,omitempty"`

	// Position is the expected final position (last_position).
	Position *int64 `yaml:"position,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
	AssertAlternation   = "alternation"
	AssertReason        = "reason"
	AssertLastPosition  = "last_position"
	AssertSeqContiguous = "seq_contiguous"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// runID returns the run ID the scenario is stored under.
func (s *Scenario) runID() string {
	if s.RunID != "" {
		return s.RunID
	}
	return "scenario-" + s.Name
}

// validateScenario checks that required fields are present and valid.
// The config itself is not validated: rejected configs are valid scenarios.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or a non-empty assertions list is required")
	}

	if s.Expect != nil {
		if _, err := walk.ParseReason(string(s.Expect.Reason)); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
		if s.Expect.Rejection != "" && s.Expect.Reason != walk.ReasonConfigurationRejected {
			return fmt.Errorf("expect: rejection requires reason %s", walk.ReasonConfigurationRejected)
		}
	}

	if s.MaxSpan < 0 {
		return fmt.Errorf("max_span must be non-negative")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceCount:
		if _, err := walk.ParsePhase(a.Phase); err != nil {
			return fmt.Errorf("assertions[%d]: trace_count: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Phases) == 0 {
			return fmt.Errorf("assertions[%d]: phases list is required for trace_order", index)
		}
		for _, p := range a.Phases {
			if _, err := walk.ParsePhase(p); err != nil {
				return fmt.Errorf("assertions[%d]: trace_order: %w", index, err)
			}
		}
	case AssertReason:
		if _, err := walk.ParseReason(a.Reason); err != nil {
			return fmt.Errorf("assertions[%d]: reason: %w", index, err)
		}
	case AssertLastPosition:
		if a.Position == nil {
			return fmt.Errorf("assertions[%d]: position is required for last_position", index)
		}
	case AssertAlternation, AssertSeqContiguous:
		// no parameters
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
