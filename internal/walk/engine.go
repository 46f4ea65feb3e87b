package walk

import (
	"go.uber.org/zap"
)

// Engine runs traversals. It holds only immutable options, so one Engine
// may serve any number of concurrent Begin calls.
type Engine struct {
	budget   *SpanBudget
	observer func(Event)
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxSpan rejects configs whose span exceeds maxSpan (SPAN_TOO_LARGE).
// A maxSpan of 0 or less removes the budget.
//
// Default: no budget beyond the int64 overflow guard.
func WithMaxSpan(maxSpan int64) EngineOption {
	return func(e *Engine) {
		if maxSpan <= 0 {
			e.budget = nil
			return
		}
		b := NewSpanBudget(maxSpan)
		e.budget = &b
	}
}

// WithObserver registers fn to be called after every recorded event, in
// emission order. Observers see events but cannot alter the trace.
func WithObserver(fn func(Event)) EngineOption {
	return func(e *Engine) {
		e.observer = fn
	}
}

// WithLogger sets the structured logger. Events are logged at debug level,
// termination at info level.
//
// Default: zap.NewNop().
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine with the given options.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxSpan returns the span budget, or 0 when the engine has none.
// Stored runs keep it so a replay applies the same budget.
func (e *Engine) MaxSpan() int64 {
	if e.budget == nil {
		return 0
	}
	return e.budget.MaxSpan()
}

// Begin runs one traversal with a default Engine.
func Begin(cfg Config) Result {
	return New().Begin(cfg)
}

// Begin runs one traversal and returns its trace.
//
// This is the Position Sequencer. It rejects invalid configs before any
// event is recorded, then loops over an explicit phase tag:
//
//   - Crawl at p: if p > MaxPosition, terminate with BoundExceeded;
//     otherwise record Crawl(p) and switch to Analyze.
//   - Analyze at p: the step processor records Analyze(p) and hands back
//     p+1; switch to Crawl.
//
// The bound is inclusive and the bound check lives only in the Crawl arm.
func (e *Engine) Begin(cfg Config) Result {
	if rejection := e.validate(cfg); rejection != nil {
		rec := NewRecorder(0)
		result := rec.Finalize(ReasonConfigurationRejected)
		result.Config = cfg
		result.Rejection = rejection

		e.logger.Info("traversal rejected",
			zap.Int64("start", int64(cfg.StartPosition)),
			zap.Int64("max", int64(cfg.MaxPosition)),
			zap.String("code", string(rejection.Code)),
			zap.String("reason", string(result.Reason)),
		)
		return result
	}

	rec := NewRecorder(eventCapacity(cfg))
	rec.observe = e.observeFunc()
	steps := stepProcessor{rec: rec}

	phase := PhaseCrawl
	pos := cfg.StartPosition

	for {
		switch phase {
		case PhaseCrawl:
			if pos > cfg.MaxPosition {
				result := rec.Finalize(ReasonBoundExceeded)
				result.Config = cfg

				e.logger.Info("traversal complete",
					zap.Int64("start", int64(cfg.StartPosition)),
					zap.Int64("max", int64(cfg.MaxPosition)),
					zap.Int("events", len(result.Events)),
					zap.String("reason", string(result.Reason)),
				)
				return result
			}
			rec.Record(PhaseCrawl, pos)
			phase = PhaseAnalyze

		case PhaseAnalyze:
			pos = steps.process(pos)
			phase = PhaseCrawl
		}
	}
}

// validate applies the invariant checks, then the optional budget.
func (e *Engine) validate(cfg Config) *ConfigError {
	if err := Validate(cfg); err != nil {
		return err
	}
	if e.budget != nil {
		return e.budget.Check(cfg)
	}
	return nil
}

// observeFunc combines debug logging with the caller's observer.
func (e *Engine) observeFunc() func(Event) {
	debug := e.logger.Core().Enabled(zap.DebugLevel)
	if !debug && e.observer == nil {
		return nil
	}
	return func(ev Event) {
		if debug {
			e.logger.Debug("event recorded",
				zap.Stringer("phase", ev.Phase),
				zap.Int64("position", int64(ev.Position)),
				zap.Int64("seq", ev.Seq),
			)
		}
		if e.observer != nil {
			e.observer(ev)
		}
	}
}

// eventCapacity is the exact event count for a valid config, clamped by
// NewRecorder.
func eventCapacity(cfg Config) int {
	span := cfg.Span()
	if span >= maxPrealloc {
		return maxPrealloc
	}
	return int(2 * (span + 1))
}
