package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/linewalk/internal/walk"
)

// Validation error codes (E200-E299)
const (
	ErrPlanNameInvalid    = "E201" // plan name is empty or not a plain label
	ErrPlanNegativeStart  = "E202" // start < 0
	ErrPlanBoundOrder     = "E203" // max < start
	ErrPlanSpanOverflow   = "E204" // span overflows the event counter
	ErrPlanSpanTooLarge   = "E205" // span exceeds the configured budget
	ErrPlanDescriptionWS  = "E206" // description is present but blank
	ErrPlanUnknownProblem = "E299" // rejection code without a plan mapping
)

// ValidationError represents a plan validation error.
type ValidationError struct {
	Plan    string `json:"plan"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: plan %s: %s: %s", e.Code, e.Line, e.Plan, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] plan %s: %s: %s", e.Code, e.Plan, e.Field, e.Message)
}

// ValidatePlan checks a compiled plan the way the engine would, plus the
// span budget when maxSpan > 0. Returns all errors found (does not fail-fast).
func ValidatePlan(p *Plan, maxSpan int64) []ValidationError {
	var errs []ValidationError
	line := 0
	if p.Pos.IsValid() {
		line = p.Pos.Line()
	}
	add := func(field, code, msg string) {
		errs = append(errs, ValidationError{
			Plan:    p.Name,
			Field:   field,
			Message: msg,
			Code:    code,
			Line:    line,
		})
	}

	if p.Name == "" || strings.ContainsAny(p.Name, " \t\n\"") {
		add("name", ErrPlanNameInvalid, fmt.Sprintf("invalid plan name %q", p.Name))
	}

	if p.Description != "" && strings.TrimSpace(p.Description) == "" {
		add("description", ErrPlanDescriptionWS, "description must not be blank")
	}

	if rejection := walk.Validate(p.Config); rejection != nil {
		field, code := rejectionField(rejection.Code)
		add(field, code, rejection.Message)
		return errs
	}

	if maxSpan > 0 {
		if rejection := walk.NewSpanBudget(maxSpan).Check(p.Config); rejection != nil {
			add("max", ErrPlanSpanTooLarge, rejection.Message)
		}
	}

	return errs
}

func rejectionField(code walk.ConfigErrorCode) (field, planCode string) {
	switch code {
	case walk.ErrCodeNegativeStart:
		return "start", ErrPlanNegativeStart
	case walk.ErrCodeBoundBeforeStart:
		return "max", ErrPlanBoundOrder
	case walk.ErrCodeSpanOverflow:
		return "max", ErrPlanSpanOverflow
	case walk.ErrCodeSpanTooLarge:
		return "max", ErrPlanSpanTooLarge
	default:
		return "config", ErrPlanUnknownProblem
	}
}
