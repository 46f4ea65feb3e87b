package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/linewalk/internal/store"
	"github.com/roach88/linewalk/internal/walk"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Deterministic bool   `json:"deterministic"`
	StoredDigest  string `json:"stored_digest"`
	ReplayDigest  string `json:"replay_digest"`
	Divergence    int64  `json:"divergence"`
	Detail        string `json:"detail,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run stored configs and verify determinism",
		Long: `Re-run the config of every stored run (or one run with --run) and
verify that the fresh trace has the same digest as the stored one.

Stored events are checked against their stored digest first, so corrupted
rows are reported even when the engine is unchanged. Each run is replayed
under the span budget it was recorded with.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  linewalk replay --db ./linewalk.db
  linewalk replay --db ./linewalk.db --run 0190a3c4-...
  linewalk replay --db ./linewalk.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := opts.logger(cmd)
	defer func() { _ = logger.Sync() }()

	withLogger := walk.WithLogger(logger)

	var replays []store.ReplayResult
	if opts.RunID != "" {
		r, err := st.Replay(ctx, opts.RunID, withLogger)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
				return WrapExitError(ExitCommandError, "run not found", err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", opts.RunID), err)
		}
		replays = []store.ReplayResult{r}
	} else {
		replays, err = st.ReplayAll(ctx, withLogger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to replay runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(replays)),
		TotalRuns:        len(replays),
		AllDeterministic: true,
	}
	for _, r := range replays {
		result.Runs = append(result.Runs, ReplayRunResult{
			RunID:         r.RunID,
			Deterministic: r.Deterministic,
			StoredDigest:  r.StoredDigest,
			ReplayDigest:  r.ReplayDigest,
			Divergence:    r.Divergence,
			Detail:        r.Detail,
		})
		if !r.Deterministic {
			result.AllDeterministic = false
		}
	}

	if f.JSON() {
		if err := outputReplayJSON(f, result); err != nil {
			return err
		}
	} else {
		outputReplayText(f, result)
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	resp := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_NONDETERMINISTIC",
			Message: "determinism verification failed",
		}
	}
	return f.Encode(resp)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, result ReplayResult) {
	w := f.Writer
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	for _, r := range result.Runs {
		fmt.Fprintf(w, "%s %s\n", statusMark(r.Deterministic), r.RunID)
		if !r.Deterministic {
			fmt.Fprintf(w, "  %s\n", r.Detail)
			if r.Divergence >= 0 {
				fmt.Fprintf(w, "  first divergence at seq %d\n", r.Divergence)
			}
		}
		f.VerboseLog("%s stored=%s replay=%s", r.RunID, r.StoredDigest, r.ReplayDigest)
	}

	fmt.Fprintf(w, "\nReplay Summary: %d run(s)", result.TotalRuns)
	if result.AllDeterministic {
		fmt.Fprintln(w, ", all deterministic")
	} else {
		fmt.Fprintln(w, ", determinism verification FAILED")
	}
}
