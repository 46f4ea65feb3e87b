package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/linewalk/internal/walk"
)

// execute runs the root command with args and captures both streams.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// fixedRunIDs makes walk and plan run use the given run IDs.
func fixedRunIDs(t *testing.T, ids ...string) {
	t.Helper()

	prev := runIDs
	runIDs = walk.NewFixedGenerator(ids...)
	t.Cleanup(func() { runIDs = prev })
}

// response decodes a JSON CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
	RunID  string    `json:"run_id"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()

	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

// writePlans writes CUE files into a fresh directory.
func writePlans(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

// requireExitCode asserts err maps to the given exit code.
func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, GetExitCode(err), "error: %v", err)
}
