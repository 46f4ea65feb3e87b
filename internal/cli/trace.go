package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/linewalk/internal/store"
	"github.com/roach88/linewalk/internal/tracefile"
	"github.com/roach88/linewalk/internal/walk"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	File     string
	Phase    string // optional - filter to one phase
	Start    int64  // with Max, list only runs of this config
	Max      int64
}

// TraceResult holds the trace output.
type TraceResult struct {
	RunID  string       `json:"run_id"`
	Source string       `json:"source"` // "db" or "file"
	Digest string       `json:"digest"`
	Stats  TraceStats   `json:"stats"`
	Result walk.Result  `json:"result"`
	Shown  []walk.Event `json:"shown,omitempty"` // events after --phase filtering
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Crawls      int  `json:"crawls"`
	Analyses    int  `json:"analyses"`
	Rejected    bool `json:"rejected"`
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID      string                 `json:"run_id"`
	CreatedSeq int64                  `json:"created_seq"`
	Config     walk.Config            `json:"config"`
	MaxSpan    int64                  `json:"max_span"`
	Reason     walk.TerminationReason `json:"reason"`
	EventCount int64                  `json:"event_count"`
	Digest     string                 `json:"digest"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a stored trace",
		Long: `Show a trace stored in a database or written to a trace file.

Trace files are verified while reading: frame order, contiguous seq numbers,
event count and digest must all match. With --db and no --run, lists the
stored runs in creation order; --start and --max narrow the list to runs
of that config.

Examples:
  linewalk trace --db ./linewalk.db
  linewalk trace --db ./linewalk.db --start 1 --max 40
  linewalk trace --db ./linewalk.db --run 0190a3c4-...
  linewalk trace --file run.lwt --phase analyze
  linewalk trace --file run.lwt --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to show (with --db)")
	cmd.Flags().StringVar(&opts.File, "file", "", "trace file to read")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "show only crawl or analyze events")
	cmd.Flags().Int64Var(&opts.Start, "start", 0, "list runs with this start position (with --max)")
	cmd.Flags().Int64Var(&opts.Max, "max", 0, "list runs with this bound (with --start)")
	cmd.MarkFlagsMutuallyExclusive("db", "file")
	cmd.MarkFlagsOneRequired("db", "file")
	cmd.MarkFlagsRequiredTogether("start", "max")
	cmd.MarkFlagsMutuallyExclusive("run", "start")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd)

	var filter walk.Phase
	if opts.Phase != "" {
		p, err := walk.ParsePhase(opts.Phase)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --phase", err)
		}
		filter = p
	}

	byConfig := cmd.Flags().Changed("start")

	if opts.File != "" {
		if opts.RunID != "" || byConfig {
			return NewExitError(ExitCommandError, "--run, --start and --max apply only to --db")
		}
		return traceFromFile(f, opts.File, filter)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.RunID == "" {
		var cfg *walk.Config
		if byConfig {
			cfg = &walk.Config{StartPosition: walk.Position(opts.Start), MaxPosition: walk.Position(opts.Max)}
		}
		return listRuns(ctx, f, st, cfg)
	}

	run, result, err := st.ReadResult(ctx, opts.RunID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			_ = f.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	return outputTrace(f, buildTraceResult(run.ID, "db", run.Digest, result, filter))
}

// openExistingStore opens a database that must already exist. store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
		return nil, WrapExitError(ExitCommandError, "failed to access database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func traceFromFile(f *OutputFormatter, path string, filter walk.Phase) error {
	file, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace file", err)
	}
	defer file.Close()

	trace, err := tracefile.ReadAll(file)
	if err != nil {
		var fe *tracefile.FrameError
		if errors.As(err, &fe) {
			_ = f.Error(ErrCodeLoadFailed, fmt.Sprintf("invalid trace file (%s): %v", fe.Kind, err), nil)
		}
		return WrapExitError(ExitCommandError, "failed to read trace file", err)
	}

	return outputTrace(f, buildTraceResult(trace.RunID, "file", trace.Digest, trace.Result, filter))
}

func buildTraceResult(runID, src, digest string, result walk.Result, filter walk.Phase) TraceResult {
	tr := TraceResult{
		RunID:  runID,
		Source: src,
		Digest: digest,
		Result: result,
		Stats: TraceStats{
			TotalEvents: len(result.Events),
			Crawls:      result.Count(walk.PhaseCrawl),
			Analyses:    result.Count(walk.PhaseAnalyze),
			Rejected:    result.Rejected(),
		},
	}
	if filter != 0 {
		tr.Shown = []walk.Event{}
		for _, ev := range result.Events {
			if ev.Phase == filter {
				tr.Shown = append(tr.Shown, ev)
			}
		}
	}
	return tr
}

func outputTrace(f *OutputFormatter, tr TraceResult) error {
	if f.JSON() {
		return f.Encode(CLIResponse{Status: "ok", Data: tr, RunID: tr.RunID})
	}

	view := tr.Result
	if tr.Shown != nil {
		view.Events = tr.Shown
	}
	renderTrace(f.Writer, traceView{RunID: tr.RunID, Digest: tr.Digest, Result: view})
	if tr.Shown != nil {
		fmt.Fprintf(f.Writer, "\n%d of %d events shown\n", len(tr.Shown), tr.Stats.TotalEvents)
	}
	return nil
}

// listRuns lists every stored run, or only the runs of cfg when it is set.
func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store, cfg *walk.Config) error {
	var (
		runs []store.Run
		err  error
	)
	if cfg != nil {
		runs, err = st.RunsForConfig(ctx, *cfg)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, RunSummary{
			RunID:      r.ID,
			CreatedSeq: r.CreatedSeq,
			Config:     r.Config,
			MaxSpan:    r.MaxSpan,
			Reason:     r.Reason,
			EventCount: r.EventCount,
			Digest:     r.Digest,
		})
	}

	if f.JSON() {
		return f.Success(map[string]any{"runs": summaries})
	}

	if len(summaries) == 0 {
		if cfg != nil {
			fmt.Fprintf(f.Writer, "No runs found for %s.\n", *cfg)
		} else {
			fmt.Fprintln(f.Writer, "No runs found in database.")
		}
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(f.Writer, "%4d  %s  %s  %s  %d events\n",
			s.CreatedSeq, s.RunID, s.Config, s.Reason, s.EventCount)
	}
	return nil
}
