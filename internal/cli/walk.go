package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/linewalk/internal/logging"
	"github.com/roach88/linewalk/internal/source"
	"github.com/roach88/linewalk/internal/store"
	"github.com/roach88/linewalk/internal/tracefile"
	"github.com/roach88/linewalk/internal/walk"
)

// DefaultMaxSpan is the span budget applied by CLI commands unless
// --max-span overrides it. Zero disables the budget.
const DefaultMaxSpan int64 = 1_000_000

// runIDs generates the IDs of runs started by walk and plan run.
var runIDs walk.RunIDGenerator = walk.UUIDv7Generator{}

// WalkOptions holds flags for the walk command.
type WalkOptions struct {
	*RootOptions
	Start    int64
	Max      int64
	Database string // optional: store the run
	Out      string // optional: write a trace file
	MaxSpan  int64
	File     string // optional: derive the config from a function in this file
	Line     int
	Lang     string
}

// WalkOutput is the JSON payload of a walk.
type WalkOutput struct {
	RunID  string       `json:"run_id"`
	Span   *source.Span `json:"span,omitempty"`
	Digest string       `json:"digest"`
	walk.Result
}

// NewWalkCommand creates the walk command.
func NewWalkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Run one bounded traversal",
		Long: `Run one crawl/analyze traversal from --start to --max inclusive.

With --file and --line, the range is the function enclosing that line,
found by parsing the file with tree-sitter.

Exit codes:
  0 - Traversal completed (BOUND_EXCEEDED)
  1 - Configuration rejected
  2 - Command error (bad flags, unreadable files, etc.)

Examples:
  linewalk walk --start 1 --max 3
  linewalk walk --start 1 --max 40 --db ./linewalk.db --out run.lwt
  linewalk walk --file main.go --line 12
  linewalk walk --file crawl.py --line 3 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalk(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Start, "start", 0, "first position")
	cmd.Flags().Int64Var(&opts.Max, "max", 0, "inclusive bound")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write a trace file")
	cmd.Flags().Int64Var(&opts.MaxSpan, "max-span", DefaultMaxSpan, "reject spans above this many positions (0 disables)")
	cmd.Flags().StringVar(&opts.File, "file", "", "source file to take the range from")
	cmd.Flags().IntVar(&opts.Line, "line", 0, "1-based line inside the function to walk (with --file)")
	cmd.Flags().StringVar(&opts.Lang, "lang", "", "source language (default: from the file extension)")

	return cmd
}

func runWalk(opts *WalkOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, span, err := walkConfig(ctx, opts, cmd)
	if err != nil {
		return err
	}

	runID := runIDs.Generate()
	logger := logging.ForRun(opts.logger(cmd), runID)
	defer func() { _ = logger.Sync() }()

	engineOpts := []walk.EngineOption{walk.WithLogger(logger), walk.WithMaxSpan(opts.MaxSpan)}

	var (
		out *os.File
		tw  *tracefile.Writer
	)
	if opts.Out != "" {
		out, err = os.Create(opts.Out)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create trace file", err)
		}
		defer out.Close() // error paths only; the success path checks Close below

		tw, err = tracefile.NewWriter(out, runID, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write trace header", err)
		}
		engineOpts = append(engineOpts, walk.WithObserver(tw.WriteEvent))
	}

	engine := walk.New(engineOpts...)
	result := engine.Begin(cfg)

	digest, err := result.Digest()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to digest trace", err)
	}

	if tw != nil {
		if err := finishTraceFile(out, tw, result); err != nil {
			return err
		}
		formatter.VerboseLog("Wrote trace file %s", opts.Out)
	}

	if opts.Database != "" {
		if err := saveRun(ctx, opts.Database, runID, result, engine.MaxSpan(), logger); err != nil {
			return err
		}
		formatter.VerboseLog("Stored run %s in %s", runID, opts.Database)
	}

	if err := outputWalk(formatter, WalkOutput{RunID: runID, Span: span, Digest: digest, Result: result}); err != nil {
		return err
	}

	if result.Rejected() {
		return rejectionError(result.Rejection)
	}
	return nil
}

// rejectionError wraps a rejected config so GetExitCode maps it to
// ExitFailure and callers can match the code with walk.HasCode.
func rejectionError(rejection *walk.ConfigError) error {
	msg := "configuration rejected"
	if walk.HasCode(rejection, walk.ErrCodeSpanTooLarge) {
		msg += " (raise or disable --max-span)"
	}
	return WrapExitError(ExitFailure, msg, rejection)
}

// finishTraceFile writes the trailer and closes the file. A failed Close
// can lose buffered frames, so it fails the command like a write error.
func finishTraceFile(out io.Closer, tw *tracefile.Writer, result walk.Result) error {
	if err := tw.Finish(result); err != nil {
		return WrapExitError(ExitCommandError, "failed to write trace file", err)
	}
	if err := out.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close trace file", err)
	}
	return nil
}

// walkConfig resolves the traversal config from either --start/--max or
// --file/--line.
func walkConfig(ctx context.Context, opts *WalkOptions, cmd *cobra.Command) (walk.Config, *source.Span, error) {
	flags := cmd.Flags()
	explicit := flags.Changed("start") || flags.Changed("max")

	if opts.File == "" {
		if !flags.Changed("start") || !flags.Changed("max") {
			return walk.Config{}, nil, NewExitError(ExitCommandError, "either --start and --max, or --file and --line, are required")
		}
		return walk.Config{
			StartPosition: walk.Position(opts.Start),
			MaxPosition:   walk.Position(opts.Max),
		}, nil, nil
	}

	if explicit {
		return walk.Config{}, nil, NewExitError(ExitCommandError, "--file cannot be combined with --start or --max")
	}
	if !flags.Changed("line") {
		return walk.Config{}, nil, NewExitError(ExitCommandError, "--line is required with --file")
	}

	lang := opts.Lang
	if lang == "" {
		lang = source.LanguageForPath(opts.File)
		if lang == "" {
			return walk.Config{}, nil, NewExitError(ExitCommandError,
				fmt.Sprintf("cannot infer language of %s: use --lang", opts.File))
		}
	}

	content, err := os.ReadFile(opts.File)
	if err != nil {
		return walk.Config{}, nil, WrapExitError(ExitCommandError, "failed to read source file", err)
	}

	span, err := source.Bounds(ctx, lang, content, opts.Line)
	if err != nil {
		if errors.Is(err, source.ErrUnsupportedLanguage) || errors.Is(err, source.ErrLineOutOfRange) {
			return walk.Config{}, nil, WrapExitError(ExitCommandError, "invalid --file/--line", err)
		}
		return walk.Config{}, nil, WrapExitError(ExitCommandError, "failed to parse source file", err)
	}

	return span.Config(), &span, nil
}

// saveRun stores a finished run with the budget it ran under.
func saveRun(ctx context.Context, path, runID string, result walk.Result, maxSpan int64, logger *zap.Logger) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.SaveResult(ctx, runID, result, maxSpan)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to store run", err)
	}
	logger.Debug("run stored", zap.Int64("created_seq", run.CreatedSeq))
	return nil
}

// outputWalk writes the walk result in the configured format.
func outputWalk(f *OutputFormatter, out WalkOutput) error {
	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: out, RunID: out.RunID}
		if out.Rejected() {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    string(out.Rejection.Code),
				Message: out.Rejection.Message,
			}
		}
		return f.Encode(resp)
	}

	if out.Span != nil && out.Span.Function != "" {
		fmt.Fprintf(f.Writer, "function %s (lines %d-%d)\n", out.Span.Function, out.Span.Start, out.Span.End)
	}
	renderTrace(f.Writer, traceView{RunID: out.RunID, Digest: out.Digest, Result: out.Result})
	return nil
}
