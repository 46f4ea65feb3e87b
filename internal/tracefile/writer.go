package tracefile

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/walk"
)

// Writer streams a trace to an io.Writer as events are recorded.
//
// The first write error is sticky: later calls are no-ops and Finish
// returns it. This lets WriteEvent serve as a walk observer, which cannot
// return errors.
type Writer struct {
	w       *bufio.Writer
	written int64
	err     error
}

// NewWriter writes the header frame for a run and returns a Writer for its
// events.
func NewWriter(w io.Writer, runID string, cfg walk.Config) (*Writer, error) {
	tw := &Writer{w: bufio.NewWriter(w)}
	tw.encode(Header{
		Type:    TypeHeader,
		Version: ir.TraceFormatVersion,
		RunID:   runID,
		Start:   int64(cfg.StartPosition),
		Max:     int64(cfg.MaxPosition),
	})
	if tw.err != nil {
		return nil, tw.err
	}
	return tw, nil
}

// WriteEvent appends one event frame.
func (tw *Writer) WriteEvent(ev walk.Event) {
	tw.encode(EventFrame{
		Type:     TypeEvent,
		Seq:      ev.Seq,
		Phase:    ev.Phase.String(),
		Position: int64(ev.Position),
	})
	if tw.err == nil {
		tw.written++
	}
}

// Finish writes the trailer for result and flushes the stream. The number of
// events written must equal len(result.Events).
func (tw *Writer) Finish(result walk.Result) error {
	if tw.err != nil {
		return tw.err
	}
	if tw.written != int64(len(result.Events)) {
		return &FrameError{
			Kind: FrameErrorMismatch,
			Msg:  fmt.Sprintf("wrote %d events, result has %d", tw.written, len(result.Events)),
		}
	}

	digest, err := result.Digest()
	if err != nil {
		return fmt.Errorf("finish trace: %w", err)
	}

	trailer := Trailer{
		Type:       TypeTrailer,
		Reason:     string(result.Reason),
		EventCount: tw.written,
		Digest:     digest,
	}
	if result.Rejection != nil {
		trailer.RejectionCode = string(result.Rejection.Code)
		trailer.RejectionMessage = result.Rejection.Message
	}
	tw.encode(trailer)
	if tw.err != nil {
		return tw.err
	}

	if err := tw.w.Flush(); err != nil {
		tw.err = fmt.Errorf("flush trace: %w", err)
	}
	return tw.err
}

func (tw *Writer) encode(v any) {
	if tw.err != nil {
		return
	}
	payload, err := msgpack.Marshal(v)
	if err != nil {
		tw.err = fmt.Errorf("encode frame: %w", err)
		return
	}
	if err := writeFrame(tw.w, payload); err != nil {
		tw.err = err
	}
}

// WriteResult writes a complete trace for an already finished result.
func WriteResult(w io.Writer, runID string, result walk.Result) error {
	tw, err := NewWriter(w, runID, result.Config)
	if err != nil {
		return err
	}
	for _, ev := range result.Events {
		tw.WriteEvent(ev)
	}
	return tw.Finish(result)
}
