package store

import (
	"fmt"

	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/walk"
)

// Run is the stored summary of one traversal. Events are read separately
// with ReadEvents, or together with the summary via ReadResult.
type Run struct {
	ID            string
	CreatedSeq    int64 // assigned by WriteRun; zero before the run is stored
	Config        walk.Config
	ConfigHash    string
	MaxSpan       int64 // span budget of the engine that ran it; 0 for none
	Reason        walk.TerminationReason
	RejectionCode walk.ConfigErrorCode // empty unless Reason is ConfigurationRejected
	RejectionMsg  string
	EventCount    int64
	Digest        string
	EngineVersion string
	TraceVersion  string
}

// NewRun prepares a finished traversal for storage, computing its digests.
// maxSpan is the budget of the engine that produced result (Engine.MaxSpan).
func NewRun(id string, result walk.Result, maxSpan int64) (Run, error) {
	digest, err := result.Digest()
	if err != nil {
		return Run{}, fmt.Errorf("new run %s: %w", id, err)
	}

	run := Run{
		ID:            id,
		Config:        result.Config,
		ConfigHash:    ir.ConfigDigest(int64(result.Config.StartPosition), int64(result.Config.MaxPosition)),
		MaxSpan:       max(maxSpan, 0),
		Reason:        result.Reason,
		EventCount:    int64(len(result.Events)),
		Digest:        digest,
		EngineVersion: ir.EngineVersion,
		TraceVersion:  ir.TraceFormatVersion,
	}
	if result.Rejection != nil {
		run.RejectionCode = result.Rejection.Code
		run.RejectionMsg = result.Rejection.Message
	}
	return run, nil
}

// engine returns an engine with the budget the run was recorded under.
// opts are applied first, so they cannot override the budget.
func (r Run) engine(opts ...walk.EngineOption) *walk.Engine {
	return walk.New(append(opts, walk.WithMaxSpan(r.MaxSpan))...)
}

// result rebuilds the walk.Result a run was stored from.
func (r Run) result(events []walk.Event) walk.Result {
	res := walk.Result{
		Config: r.Config,
		Events: events,
		Reason: r.Reason,
	}
	if r.RejectionCode != "" {
		res.Rejection = &walk.ConfigError{
			Code:    r.RejectionCode,
			Message: r.RejectionMsg,
			Config:  r.Config,
		}
	}
	return res
}
