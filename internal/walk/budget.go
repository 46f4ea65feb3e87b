package walk

// SpanBudget caps the number of positions a single run may traverse.
//
// Run length is exactly linear in the span (two events per position), so a
// budget on MaxPosition - StartPosition bounds worst-case execution time and
// trace size. A budget is checked once, before the run starts; a config over
// budget is rejected, never truncated.
type SpanBudget struct {
	maxSpan int64
}

// NewSpanBudget creates a budget allowing spans up to maxSpan inclusive.
// A non-positive maxSpan only admits single-position runs.
func NewSpanBudget(maxSpan int64) SpanBudget {
	if maxSpan < 0 {
		maxSpan = 0
	}
	return SpanBudget{maxSpan: maxSpan}
}

// Check returns a SPAN_TOO_LARGE ConfigError if cfg exceeds the budget.
func (b SpanBudget) Check(cfg Config) *ConfigError {
	if cfg.Span() > b.maxSpan {
		return newConfigError(ErrCodeSpanTooLarge, cfg,
			"span %d exceeds budget of %d positions", cfg.Span(), b.maxSpan)
	}
	return nil
}

// MaxSpan returns the budget limit.
func (b SpanBudget) MaxSpan() int64 {
	return b.maxSpan
}
