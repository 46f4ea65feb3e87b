// Package tracefile reads and writes portable trace files.
//
// A trace file is a stream of length-prefixed msgpack frames: a 4-byte
// big-endian payload length followed by the payload. The stream holds one
// header frame, one frame per event in seq order, and one trailer frame
// carrying the termination reason, event count and trace digest.
package tracefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies trace file errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated frame or a stream without trailer.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorMismatch indicates well-formed frames that disagree with
	// each other: out-of-order frames, a wrong event count or a digest that
	// does not match the events.
	FrameErrorMismatch
)

// String returns the kind name.
func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorMismatch:
		return "mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a trace file decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFrameError reports whether err is or wraps a *FrameError of the given kind.
func IsFrameError(err error, kind FrameErrorKind) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == kind
	}
	return false
}

// FrameDecoder decodes length-prefixed frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream and returns its payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// writeFrame writes payload with its length prefix.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}
