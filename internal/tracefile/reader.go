package tracefile

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/walk"
)

// Trace is a decoded and verified trace file.
type Trace struct {
	RunID   string
	Version string
	Digest  string
	Result  walk.Result
}

// ReadAll decodes a whole trace stream and verifies it.
//
// Verification checks frame order (header, events, trailer), contiguous
// event seq numbers starting at 0, the trailer's event count and the
// trailer's digest against a digest recomputed from the decoded events.
func ReadAll(r io.Reader) (*Trace, error) {
	dec := NewFrameDecoder(r)

	payload, err := dec.ReadFrame()
	if err == io.EOF {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "empty trace file"}
	}
	if err != nil {
		return nil, err
	}

	var header Header
	if err := decodeTyped(payload, TypeHeader, &header); err != nil {
		return nil, err
	}
	if header.Version != ir.TraceFormatVersion {
		return nil, &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("unsupported trace version %q", header.Version),
		}
	}

	trace := &Trace{
		RunID:   header.RunID,
		Version: header.Version,
		Result: walk.Result{
			Config: walk.Config{
				StartPosition: walk.Position(header.Start),
				MaxPosition:   walk.Position(header.Max),
			},
			Events: []walk.Event{},
		},
	}

	for {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return nil, &FrameError{Kind: FrameErrorPartial, Msg: "trace ended without trailer"}
		}
		if err != nil {
			return nil, err
		}

		var head frameHead
		if err := msgpack.Unmarshal(payload, &head); err != nil {
			return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
		}

		switch head.Type {
		case TypeEvent:
			ev, err := decodeEvent(payload, int64(len(trace.Result.Events)))
			if err != nil {
				return nil, err
			}
			trace.Result.Events = append(trace.Result.Events, ev)

		case TypeTrailer:
			var trailer Trailer
			if err := decodeTyped(payload, TypeTrailer, &trailer); err != nil {
				return nil, err
			}
			if err := trace.finish(trailer); err != nil {
				return nil, err
			}
			if _, err := dec.ReadFrame(); !errors.Is(err, io.EOF) {
				return nil, &FrameError{Kind: FrameErrorMismatch, Msg: "data after trailer"}
			}
			return trace, nil

		default:
			return nil, &FrameError{
				Kind: FrameErrorMismatch,
				Msg:  fmt.Sprintf("unexpected frame type %q", head.Type),
			}
		}
	}
}

func decodeTyped(payload []byte, want string, v any) error {
	var head frameHead
	if err := msgpack.Unmarshal(payload, &head); err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
	}
	if head.Type != want {
		return &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("expected %s frame, got %q", want, head.Type),
		}
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode " + want, Err: err}
	}
	return nil
}

func decodeEvent(payload []byte, wantSeq int64) (walk.Event, error) {
	var frame EventFrame
	if err := msgpack.Unmarshal(payload, &frame); err != nil {
		return walk.Event{}, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode event", Err: err}
	}
	phase, err := walk.ParsePhase(frame.Phase)
	if err != nil {
		return walk.Event{}, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode event", Err: err}
	}
	if frame.Seq != wantSeq {
		return walk.Event{}, &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("event seq %d out of order, expected %d", frame.Seq, wantSeq),
		}
	}
	return walk.Event{Phase: phase, Position: walk.Position(frame.Position), Seq: frame.Seq}, nil
}

func (t *Trace) finish(trailer Trailer) error {
	reason, err := walk.ParseReason(trailer.Reason)
	if err != nil {
		return &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode trailer", Err: err}
	}
	t.Result.Reason = reason
	if trailer.RejectionCode != "" {
		t.Result.Rejection = &walk.ConfigError{
			Code:    walk.ConfigErrorCode(trailer.RejectionCode),
			Message: trailer.RejectionMessage,
			Config:  t.Result.Config,
		}
	}

	if trailer.EventCount != int64(len(t.Result.Events)) {
		return &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("trailer counts %d events, file has %d", trailer.EventCount, len(t.Result.Events)),
		}
	}

	digest, err := t.Result.Digest()
	if err != nil {
		return fmt.Errorf("verify trace: %w", err)
	}
	if digest != trailer.Digest {
		return &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("digest %s does not match trailer %s", digest, trailer.Digest),
		}
	}
	t.Digest = digest
	return nil
}
