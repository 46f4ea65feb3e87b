// Package walk implements the bounded mutual traversal engine.
//
// A traversal alternates two cooperating phases over an ordered sequence of
// positions: the crawl phase (Position Sequencer) decides whether the current
// position is still within the inclusive bound and, if so, hands it to the
// analyze phase (Step Processor), which resumes crawling one position later.
// Every phase transition is appended to a Trace Recorder, and the run ends
// with exactly one TerminationReason.
//
// ARCHITECTURE:
//
// Explicit State Machine:
// The two phases never call each other. A single loop in Engine.Begin holds
// the current phase tag and position, so traversal length is bounded only by
// Config.MaxPosition and never by call-stack depth.
//
//	Idle -> Running(Crawl) <-> Running(Analyze) -> Terminated(reason)
//
// ConfigurationRejected is reached directly from Idle, before any event is
// recorded. BoundExceeded is reached from Running(Crawl) when the position
// passes MaxPosition.
//
// Logical Clock:
// Event sequence numbers come from a per-run Clock starting at 0. Wall-clock
// time is never used for ordering.
//
// Isolation:
// An Engine holds only immutable options. Each Begin call builds its own
// recorder and clock, so concurrent runs share nothing and need no locking.
package walk
