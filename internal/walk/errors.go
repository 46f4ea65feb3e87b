package walk

import (
	"errors"
	"fmt"
)

// ConfigError describes why a traversal config was rejected.
//
// A ConfigError is never returned as a fault from Begin. It is attached to
// the Result (Result.Rejection) alongside ReasonConfigurationRejected so
// callers branch on rejection the same way they branch on success.
type ConfigError struct {
	// Code identifies the rejection category.
	Code ConfigErrorCode `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Config is the rejected input.
	Config Config `json:"config"`
}

// ConfigErrorCode categorizes config rejections.
type ConfigErrorCode string

const (
	// ErrCodeNegativeStart indicates StartPosition < 0.
	ErrCodeNegativeStart ConfigErrorCode = "NEGATIVE_START"

	// ErrCodeBoundBeforeStart indicates MaxPosition < StartPosition.
	ErrCodeBoundBeforeStart ConfigErrorCode = "BOUND_BEFORE_START"

	// ErrCodeSpanOverflow indicates the run's event count or final position
	// would not fit in an int64.
	ErrCodeSpanOverflow ConfigErrorCode = "SPAN_OVERFLOW"

	// ErrCodeSpanTooLarge indicates the span exceeds the engine's budget.
	ErrCodeSpanTooLarge ConfigErrorCode = "SPAN_TOO_LARGE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (config=%s)", e.Code, e.Message, e.Config)
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// HasCode returns true if err is or wraps a *ConfigError with the given code.
func HasCode(err error, code ConfigErrorCode) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

func newConfigError(code ConfigErrorCode, cfg Config, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Config:  cfg,
	}
}
