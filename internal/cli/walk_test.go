package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linewalk/internal/store"
	"github.com/roach88/linewalk/internal/testutil"
	"github.com/roach88/linewalk/internal/tracefile"
	"github.com/roach88/linewalk/internal/walk"
)

func TestWalk_JSON(t *testing.T) {
	fixedRunIDs(t, "run-1")

	out, _, err := execute(t, "walk", "--start", "1", "--max", "3", "--format", "json")
	require.NoError(t, err)

	resp := decode[WalkOutput](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, walk.ReasonBoundExceeded, resp.Data.Reason)
	assert.Equal(t, testutil.ExpectedEvents(walk.Config{StartPosition: 1, MaxPosition: 3}), resp.Data.Events)
	assert.Nil(t, resp.Data.Span)

	want, err := walk.Begin(walk.Config{StartPosition: 1, MaxPosition: 3}).Digest()
	require.NoError(t, err)
	assert.Equal(t, want, resp.Data.Digest)
}

func TestWalk_RejectedExitsOne(t *testing.T) {
	fixedRunIDs(t, "run-1")

	out, _, err := execute(t, "walk", "--start", "5", "--max", "2", "--format", "json")
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, err.Error(), "BOUND_BEFORE_START")
	assert.True(t, walk.HasCode(err, walk.ErrCodeBoundBeforeStart))

	resp := decode[WalkOutput](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BOUND_BEFORE_START", resp.Error.Code)
	assert.Equal(t, walk.ReasonConfigurationRejected, resp.Data.Reason)
	assert.NotNil(t, resp.Data.Events)
	assert.Empty(t, resp.Data.Events)
}

func TestWalk_SpanBudget(t *testing.T) {
	fixedRunIDs(t, "run-1", "run-2")

	_, _, err := execute(t, "walk", "--start", "0", "--max", "10", "--max-span", "4")
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, err.Error(), "SPAN_TOO_LARGE")
	assert.Contains(t, err.Error(), "raise or disable --max-span")
	assert.True(t, walk.HasCode(err, walk.ErrCodeSpanTooLarge))

	_, _, err = execute(t, "walk", "--start", "0", "--max", "10", "--max-span", "0")
	require.NoError(t, err)
}

func TestWalk_Text(t *testing.T) {
	fixedRunIDs(t, "run-1")

	out, _, err := execute(t, "walk", "--start", "0", "--max", "0")
	require.NoError(t, err)

	assert.Contains(t, out, "run run-1")
	assert.Contains(t, out, "[0..0]")
	assert.Contains(t, out, "BOUND_EXCEEDED")
	assert.Contains(t, out, "#0")
	assert.Contains(t, out, "crawl")
	assert.Contains(t, out, "#1")
	assert.Contains(t, out, "analyze")
}

func TestWalk_LogsCarryRunID(t *testing.T) {
	fixedRunIDs(t, "run-log")

	_, stderr, err := execute(t, "walk", "--start", "1", "--max", "2", "--verbose")
	require.NoError(t, err)

	var entries []map[string]any
	sc := bufio.NewScanner(strings.NewReader(stderr))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}

	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "run-log", e["run_id"])
	}
	last := entries[len(entries)-1]
	assert.Equal(t, "traversal complete", last["message"])
}

func TestWalk_StoresAndWritesTraceFile(t *testing.T) {
	fixedRunIDs(t, "run-db")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "walk.db")
	tracePath := filepath.Join(dir, "run.lwt")

	out, _, err := execute(t, "walk", "--start", "2", "--max", "4",
		"--db", dbPath, "--out", tracePath, "--format", "json")
	require.NoError(t, err)
	resp := decode[WalkOutput](t, out)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, stored, err := st.ReadResult(context.Background(), "run-db")
	require.NoError(t, err)
	assert.Equal(t, resp.Data.Digest, run.Digest)
	assert.Equal(t, resp.Data.Events, stored.Events)

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	trace, err := tracefile.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "run-db", trace.RunID)
	assert.Equal(t, resp.Data.Digest, trace.Digest)
	assert.Equal(t, stored.Events, trace.Result.Events)
}

func TestWalk_StoresSpanBudget(t *testing.T) {
	fixedRunIDs(t, "run-budget", "run-open")
	dbPath := filepath.Join(t.TempDir(), "walk.db")

	_, _, err := execute(t, "walk", "--start", "0", "--max", "5", "--max-span", "3", "--db", dbPath)
	requireExitCode(t, err, ExitFailure)
	_, _, err = execute(t, "walk", "--start", "0", "--max", "5", "--max-span", "0", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	budgeted, err := st.ReadRun(context.Background(), "run-budget")
	require.NoError(t, err)
	assert.Equal(t, int64(3), budgeted.MaxSpan)
	open, err := st.ReadRun(context.Background(), "run-open")
	require.NoError(t, err)
	assert.Equal(t, int64(0), open.MaxSpan)
}

func TestFinishTraceFile_CloseError(t *testing.T) {
	var buf bytes.Buffer
	result := walk.Begin(walk.Config{StartPosition: 1, MaxPosition: 1})
	tw, err := tracefile.NewWriter(&buf, "run-1", result.Config)
	require.NoError(t, err)
	for _, ev := range result.Events {
		tw.WriteEvent(ev)
	}

	err = finishTraceFile(failingCloser{}, tw, result)
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, err.Error(), "failed to close trace file")
}

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("disk full") }

func TestWalk_RejectedRunIsStored(t *testing.T) {
	fixedRunIDs(t, "run-neg")
	dbPath := filepath.Join(t.TempDir(), "walk.db")

	_, _, err := execute(t, "walk", "--start", "-1", "--max", "3", "--db", dbPath)
	requireExitCode(t, err, ExitFailure)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), "run-neg")
	require.NoError(t, err)
	assert.Equal(t, walk.ReasonConfigurationRejected, run.Reason)
	assert.Equal(t, walk.ErrCodeNegativeStart, run.RejectionCode)
}

func TestWalk_FromSourceFile(t *testing.T) {
	fixedRunIDs(t, "run-src")

	out, _, err := execute(t, "walk", "--file", "../source/testdata/crawl.py", "--line", "3", "--format", "json")
	require.NoError(t, err)

	resp := decode[WalkOutput](t, out)
	require.NotNil(t, resp.Data.Span)
	assert.Equal(t, "crawl_from_line", resp.Data.Span.Function)
	assert.Equal(t, walk.Config{StartPosition: 1, MaxPosition: 4}, resp.Data.Config)
	assert.Len(t, resp.Data.Events, 8)
}

func TestWalk_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no range",
			args: []string{"walk"},
			want: "either --start and --max",
		},
		{
			name: "start only",
			args: []string{"walk", "--start", "1"},
			want: "either --start and --max",
		},
		{
			name: "file and start",
			args: []string{"walk", "--file", "../source/testdata/crawl.py", "--line", "2", "--start", "1"},
			want: "--file cannot be combined",
		},
		{
			name: "file without line",
			args: []string{"walk", "--file", "../source/testdata/crawl.py"},
			want: "--line is required",
		},
		{
			name: "unknown extension",
			args: []string{"walk", "--file", "walk.go.txt", "--line", "1"},
			want: "cannot infer language",
		},
		{
			name: "missing file",
			args: []string{"walk", "--file", "nope.py", "--line", "1"},
			want: "failed to read source file",
		},
		{
			name: "line out of range",
			args: []string{"walk", "--file", "../source/testdata/crawl.py", "--line", "99"},
			want: "invalid --file/--line",
		},
		{
			name: "unsupported language",
			args: []string{"walk", "--file", "../source/testdata/crawl.py", "--line", "1", "--lang", "cobol"},
			want: "invalid --file/--line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixedRunIDs(t, "unused")
			_, _, err := execute(t, tt.args...)
			requireExitCode(t, err, ExitCommandError)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
