package ir

// Version constants for the trace encoding and engine.
const (
	// TraceFormatVersion is the canonical trace schema version.
	TraceFormatVersion = "1"

	// EngineVersion is the linewalk engine version.
	EngineVersion = "0.1.0"
)
