// Package compiler turns CUE walk plans into traversal configs.
//
// A plan file declares named configs under the top-level "plan" struct:
//
//	plan: header_scan: {
//		start:       1
//		max:         40
//		description: "lines of the file header"
//	}
//
// Compilation uses the CUE Go API directly (not a CLI subprocess). It
// extracts values but does not judge them: a plan whose max is before its
// start compiles, and the engine rejects it when run. ValidatePlan reports
// such plans ahead of time.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/linewalk/internal/walk"
)

// Plan is one named traversal config.
type Plan struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Config      walk.Config `json:"config"`

	// Pos is the position of the plan in its CUE source.
	Pos token.Pos `json:"-"`
}

// planFields are the labels a plan struct may declare.
var planFields = map[string]bool{
	"start":       true,
	"max":         true,
	"description": true,
}

// CompilePlan parses a CUE value into a Plan.
//
// The CUE value should be the plan struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`plan: scan: { start: 1, max: 3 }`)
//	p, err := CompilePlan(v.LookupPath(cue.ParsePath("plan.scan")))
func CompilePlan(v cue.Value) (*Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Plan{Pos: v.Pos()}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		p.Name = labels[len(labels)-1].String()
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   p.Name,
			Message: "plan must be a struct",
			Pos:     v.Pos(),
		}
	}
	for iter.Next() {
		if !planFields[iter.Label()] {
			return nil, &CompileError{
				Field:   iter.Label(),
				Message: "unknown plan field (expected start, max or description)",
				Pos:     iter.Value().Pos(),
			}
		}
	}

	start, err := requiredInt(v, "start")
	if err != nil {
		return nil, err
	}
	maxPos, err := requiredInt(v, "max")
	if err != nil {
		return nil, err
	}
	p.Config = walk.Config{
		StartPosition: walk.Position(start),
		MaxPosition:   walk.Position(maxPos),
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		desc, err := descVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		p.Description = desc
	}

	return p, nil
}

// requiredInt reads a concrete integer field.
func requiredInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	if fv.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s must be an integer, got %s", field, fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// CompileError is a plan compilation failure with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
