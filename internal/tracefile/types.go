package tracefile

// Frame type discriminants.
const (
	TypeHeader  = "header"
	TypeEvent   = "event"
	TypeTrailer = "trailer"
)

// Header opens a trace file.
type Header struct {
	Type    string `msgpack:"type"`
	Version string `msgpack:"version"`
	RunID   string `msgpack:"run_id"`
	Start   int64  `msgpack:"start"`
	Max     int64  `msgpack:"max"`
}

// EventFrame carries one trace event.
type EventFrame struct {
	Type     string `msgpack:"type"`
	Seq      int64  `msgpack:"seq"`
	Phase    string `msgpack:"phase"`
	Position int64  `msgpack:"position"`
}

// Trailer closes a trace file.
type Trailer struct {
	Type             string `msgpack:"type"`
	Reason           string `msgpack:"reason"`
	RejectionCode    string `msgpack:"rejection_code,omitempty"`
	RejectionMessage string `msgpack:"rejection_message,omitempty"`
	EventCount       int64  `msgpack:"event_count"`
	Digest           string `msgpack:"digest"`
}

// frameHead is used to peek at the type field without full decode.
type frameHead struct {
	Type string `msgpack:"type"`
}
