// Package ir defines the canonical interchange encoding for traversal traces.
//
// A trace is reduced to plain values (string, int64, bool, []any,
// map[string]any) and serialized as RFC 8785 canonical JSON. The canonical
// bytes are the only input to trace digests, so two runs produce the same
// digest exactly when their configs, events and termination reasons match.
//
// Floats and null are rejected: positions and sequence numbers are integers
// and every field of a trace is always present.
package ir
