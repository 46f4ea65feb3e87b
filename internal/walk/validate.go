package walk

import "math"

// maxSpan is the largest span whose event count, 2*(span+1), fits in an int64.
const maxSpan = math.MaxInt64/2 - 1

// Validate checks cfg against the engine's invariants without running it.
// Returns nil for a config that Begin would traverse.
//
// Checks run in a fixed order so a config that breaks several rules always
// reports the same code.
func Validate(cfg Config) *ConfigError {
	if cfg.StartPosition < 0 {
		return newConfigError(ErrCodeNegativeStart, cfg,
			"start position %d is negative", cfg.StartPosition)
	}
	if cfg.MaxPosition < cfg.StartPosition {
		return newConfigError(ErrCodeBoundBeforeStart, cfg,
			"max position %d is before start position %d", cfg.MaxPosition, cfg.StartPosition)
	}
	// The sequencer advances to MaxPosition+1 before stopping.
	if cfg.MaxPosition == math.MaxInt64 {
		return newConfigError(ErrCodeSpanOverflow, cfg,
			"max position %d leaves no room for the terminating position", cfg.MaxPosition)
	}
	if cfg.Span() > maxSpan {
		return newConfigError(ErrCodeSpanOverflow, cfg,
			"span %d would overflow the event counter", cfg.Span())
	}
	return nil
}
