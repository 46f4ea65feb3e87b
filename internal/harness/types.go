package harness

import "github.com/roach88/linewalk/internal/walk"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// RunID is the ID the trace was stored under.
	RunID string `json:"run_id"`

	// Trace contains the stored events in seq order.
	Trace []walk.Event `json:"trace"`

	// Reason is the stored termination reason.
	Reason walk.TerminationReason `json:"reason"`

	// Rejection is the rejection code, empty unless Reason is
	// CONFIGURATION_REJECTED.
	Rejection walk.ConfigErrorCode `json:"rejection,omitempty"`

	// Digest is the stored trace digest.
	Digest string `json:"digest"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []walk.Event{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
