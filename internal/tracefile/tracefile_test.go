package tracefile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/linewalk/internal/walk"
)

// encodeFrame encodes a payload with length prefix.
func encodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func encodeValue(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := msgpack.Marshal(v)
	require.NoError(t, err)
	return encodeFrame(payload)
}

func writeTrace(t *testing.T, cfg walk.Config) (*bytes.Buffer, walk.Result) {
	t.Helper()
	result := walk.Begin(cfg)
	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, "run-1", result))
	return &buf, result
}

func TestRoundTrip(t *testing.T) {
	configs := []walk.Config{
		{StartPosition: 1, MaxPosition: 1},
		{StartPosition: 1, MaxPosition: 3},
		{StartPosition: 0, MaxPosition: 0},
		{StartPosition: 5, MaxPosition: 2},
	}
	for _, cfg := range configs {
		t.Run(cfg.String(), func(t *testing.T) {
			buf, want := writeTrace(t, cfg)

			trace, err := ReadAll(buf)
			require.NoError(t, err)

			assert.Equal(t, "run-1", trace.RunID)
			if diff := cmp.Diff(want, trace.Result); diff != "" {
				t.Errorf("ReadAll() mismatch (-want +got):\n%s", diff)
			}
			digest, err := want.Digest()
			require.NoError(t, err)
			assert.Equal(t, digest, trace.Digest)
		})
	}
}

func TestWriter_AsObserver(t *testing.T) {
	cfg := walk.Config{StartPosition: 2, MaxPosition: 6}
	var buf bytes.Buffer

	tw, err := NewWriter(&buf, "run-obs", cfg)
	require.NoError(t, err)

	result := walk.New(walk.WithObserver(tw.WriteEvent)).Begin(cfg)
	require.NoError(t, tw.Finish(result))

	trace, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, result.Events, trace.Result.Events)
	assert.Equal(t, walk.ReasonBoundExceeded, trace.Result.Reason)
}

func TestWriter_FinishCountMismatch(t *testing.T) {
	result := walk.Begin(walk.Config{StartPosition: 1, MaxPosition: 2})
	tw, err := NewWriter(io.Discard, "run-1", result.Config)
	require.NoError(t, err)

	tw.WriteEvent(result.Events[0])
	err = tw.Finish(result)
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

type failingWriter struct{}

func (f *failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriter_StickyError(t *testing.T) {
	cfg := walk.Config{StartPosition: 0, MaxPosition: 10000}
	result := walk.Begin(cfg)

	// bufio defers the failure until its buffer fills or Finish flushes.
	tw, err := NewWriter(&failingWriter{}, "run-1", cfg)
	require.NoError(t, err)
	for _, ev := range result.Events {
		tw.WriteEvent(ev)
	}
	err = tw.Finish(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestReadAll_Empty(t *testing.T) {
	_, err := ReadAll(bytes.NewReader(nil))
	assert.True(t, IsFrameError(err, FrameErrorPartial), "got %v", err)
}

func TestReadAll_Truncated(t *testing.T) {
	buf, _ := writeTrace(t, walk.Config{StartPosition: 1, MaxPosition: 3})
	data := buf.Bytes()

	_, err := ReadAll(bytes.NewReader(data[:len(data)-3]))
	assert.True(t, IsFrameError(err, FrameErrorPartial), "got %v", err)
}

func TestReadAll_MissingTrailer(t *testing.T) {
	var buf bytes.Buffer
	cfg := walk.Config{StartPosition: 1, MaxPosition: 1}
	tw, err := NewWriter(&buf, "run-1", cfg)
	require.NoError(t, err)
	tw.WriteEvent(walk.Event{Phase: walk.PhaseCrawl, Position: 1, Seq: 0})
	require.NoError(t, tw.w.Flush())

	_, err = ReadAll(&buf)
	assert.True(t, IsFrameError(err, FrameErrorPartial), "got %v", err)
}

func TestReadAll_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)

	_, err := ReadAll(bytes.NewReader(prefix[:]))
	assert.True(t, IsFrameError(err, FrameErrorTooLarge), "got %v", err)
}

func TestReadAll_HeaderRequired(t *testing.T) {
	frame := encodeValue(t, EventFrame{Type: TypeEvent, Seq: 0, Phase: "crawl", Position: 1})

	_, err := ReadAll(bytes.NewReader(frame))
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadAll_DigestMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeValue(t, Header{Type: TypeHeader, Version: "1", RunID: "r", Start: 1, Max: 1}))
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 0, Phase: "crawl", Position: 1}))
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 1, Phase: "analyze", Position: 1}))
	buf.Write(encodeValue(t, Trailer{Type: TypeTrailer, Reason: "BOUND_EXCEEDED", EventCount: 2, Digest: "bogus"}))

	_, err := ReadAll(&buf)
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadAll_CountMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeValue(t, Header{Type: TypeHeader, Version: "1", RunID: "r", Start: 1, Max: 1}))
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 0, Phase: "crawl", Position: 1}))
	buf.Write(encodeValue(t, Trailer{Type: TypeTrailer, Reason: "BOUND_EXCEEDED", EventCount: 2, Digest: "x"}))

	_, err := ReadAll(&buf)
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadAll_SeqGap(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeValue(t, Header{Type: TypeHeader, Version: "1", RunID: "r", Start: 1, Max: 1}))
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 1, Phase: "crawl", Position: 1}))

	_, err := ReadAll(&buf)
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadAll_UnknownPhase(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeValue(t, Header{Type: TypeHeader, Version: "1", RunID: "r", Start: 1, Max: 1}))
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 0, Phase: "parse", Position: 1}))

	_, err := ReadAll(&buf)
	assert.True(t, IsFrameError(err, FrameErrorDecode), "got %v", err)
}

func TestReadAll_DataAfterTrailer(t *testing.T) {
	buf, _ := writeTrace(t, walk.Config{StartPosition: 1, MaxPosition: 1})
	buf.Write(encodeValue(t, EventFrame{Type: TypeEvent, Seq: 2, Phase: "crawl", Position: 2}))

	_, err := ReadAll(buf)
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadAll_UnsupportedVersion(t *testing.T) {
	frame := encodeValue(t, Header{Type: TypeHeader, Version: "99", RunID: "r"})

	_, err := ReadAll(bytes.NewReader(frame))
	assert.True(t, IsFrameError(err, FrameErrorMismatch), "got %v", err)
}

func TestReadFrame_CleanEOF(t *testing.T) {
	dec := NewFrameDecoder(bytes.NewReader(nil))
	_, err := dec.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFrameErrorKind_String(t *testing.T) {
	assert.Equal(t, "partial", FrameErrorPartial.String())
	assert.Equal(t, "too_large", FrameErrorTooLarge.String())
	assert.Equal(t, "decode", FrameErrorDecode.String())
	assert.Equal(t, "mismatch", FrameErrorMismatch.String())
}
