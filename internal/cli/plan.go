package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/linewalk/internal/compiler"
	"github.com/roach88/linewalk/internal/ir"
	"github.com/roach88/linewalk/internal/logging"
	"github.com/roach88/linewalk/internal/walk"
)

// PlanOptions holds flags shared by the plan subcommands.
type PlanOptions struct {
	*RootOptions
	Output   string // compile: output file path
	MaxSpan  int64  // validate, run: span budget
	Database string // run: optional store
}

// PlanRunResult is the outcome of one plan in plan run.
type PlanRunResult struct {
	Plan      string                 `json:"plan"`
	RunID     string                 `json:"run_id"`
	Config    walk.Config            `json:"config"`
	Reason    walk.TerminationReason `json:"reason"`
	Rejection *walk.ConfigError      `json:"rejection,omitempty"`
	Events    int                    `json:"events"`
	Digest    string                 `json:"digest"`
}

// PlanRunSummary is the JSON payload of plan run.
type PlanRunSummary struct {
	Plans    []PlanRunResult `json:"plans"`
	Total    int             `json:"total"`
	Rejected int             `json:"rejected"`
}

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compile, validate and run CUE walk plans",
		Long: `Walk plans are CUE files declaring named traversal configs:

  plan: header: {
      start:       1
      max:         40
      description: "file header"
  }`,
	}

	cmd.AddCommand(newPlanCompileCommand(opts))
	cmd.AddCommand(newPlanValidateCommand(opts))
	cmd.AddCommand(newPlanRunCommand(opts))

	return cmd
}

func newPlanCompileCommand(opts *PlanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <plans-dir>",
		Short: "Compile CUE plans to canonical JSON",
		Long: `Compile the CUE walk plans in a directory and print them in sorted order.

Compilation checks the shape of each plan (integer start and max, optional
string description, no unknown fields) but not its values; use
"plan validate" for that.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical JSON to this file")

	return cmd
}

func newPlanValidateCommand(opts *PlanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plans-dir>",
		Short: "Validate CUE plans without running them",
		Long: `Validate the CUE walk plans in a directory.

Reports every plan the engine would reject (negative start, max before
start, overflowing or over-budget spans) along with shape errors.

Exit codes:
  0 - All plans valid
  1 - One or more plans invalid
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.MaxSpan, "max-span", DefaultMaxSpan, "reject spans above this many positions (0 disables)")

	return cmd
}

func newPlanRunCommand(opts *PlanOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plans-dir>",
		Short: "Run every plan in sorted order",
		Long: `Run every CUE walk plan in a directory, in sorted plan-name order.

Plans that fail validation still run; the engine rejects them and the run
is recorded with reason CONFIGURATION_REJECTED.

Exit codes:
  0 - Every plan completed
  1 - One or more plans were rejected
  2 - Command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.MaxSpan, "max-span", DefaultMaxSpan, "reject spans above this many positions (0 disables)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store each run in this SQLite database")

	return cmd
}

// loadPlansOrFail loads plans and reports load/compile errors through the
// formatter. A non-nil error is always an *ExitError.
func loadPlansOrFail(f *OutputFormatter, dir string) (*LoadResult, error) {
	result, loadErrors := LoadPlans(dir, LoadModeCollectAll)

	if result == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			_ = f.Error(loadErr.Code, loadErr.Message, nil)
			return nil, NewExitError(ExitCommandError, loadErr.Message)
		}
		_ = f.Error(ErrCodeGeneric, loadErrors[0].Error(), nil)
		return nil, WrapExitError(ExitCommandError, "loading plans", loadErrors[0])
	}

	f.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	if len(loadErrors) > 0 {
		if err := outputLoadErrors(f, loadErrors); err != nil {
			return nil, err
		}
		return nil, NewExitError(ExitFailure, fmt.Sprintf("%d plan error(s)", len(loadErrors)))
	}

	return result, nil
}

// outputLoadErrors reports compile errors with their source positions.
func outputLoadErrors(f *OutputFormatter, errs []error) error {
	if f.JSON() {
		details := make([]map[string]any, 0, len(errs))
		for _, err := range errs {
			d := map[string]any{"message": err.Error()}
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				d["code"] = loadErr.Code
				d["message"] = loadErr.Message
				if loadErr.Pos.IsValid() {
					d["file"] = loadErr.Pos.Filename()
					d["line"] = loadErr.Pos.Line()
				}
			}
			details = append(details, d)
		}
		return f.Error(ErrCodeGeneric, fmt.Sprintf("%d plan error(s)", len(errs)), details)
	}

	fmt.Fprintf(f.Writer, "%s %d plan error(s):\n", statusMark(false), len(errs))
	for _, err := range errs {
		fmt.Fprintf(f.Writer, "  %s\n", err)
	}
	return nil
}

func runPlanCompile(opts *PlanOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	result, err := loadPlansOrFail(f, dir)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		data, err := ir.MarshalCanonical(plansCanonical(result.Plans))
		if err != nil {
			return WrapExitError(ExitCommandError, "encoding plans", err)
		}
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = f.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		f.VerboseLog("Wrote %s", opts.Output)
	}

	if f.JSON() {
		return f.Success(map[string]any{"plans": result.Plans})
	}

	fmt.Fprintf(f.Writer, "%s Compiled %d plan(s)\n", statusMark(true), len(result.Plans))
	for _, p := range result.Plans {
		line := fmt.Sprintf("  %s %s", p.Name, p.Config)
		if p.Description != "" {
			line += "  " + p.Description
		}
		fmt.Fprintln(f.Writer, line)
	}
	return nil
}

// plansCanonical converts plans to plain values for ir.MarshalCanonical.
func plansCanonical(plans []compiler.Plan) map[string]any {
	list := make([]any, len(plans))
	for i, p := range plans {
		m := map[string]any{
			"name":  p.Name,
			"start": int64(p.Config.StartPosition),
			"max":   int64(p.Config.MaxPosition),
		}
		if p.Description != "" {
			m["description"] = p.Description
		}
		list[i] = m
	}
	return map[string]any{"plans": list}
}

func runPlanValidate(opts *PlanOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	result, err := loadPlansOrFail(f, dir)
	if err != nil {
		return err
	}

	var problems []compiler.ValidationError
	for i := range result.Plans {
		problems = append(problems, compiler.ValidatePlan(&result.Plans[i], opts.MaxSpan)...)
	}

	if f.JSON() {
		if len(problems) > 0 {
			if err := f.Error("E200", fmt.Sprintf("%d validation error(s)", len(problems)), problems); err != nil {
				return err
			}
		} else if err := f.Success(map[string]any{"valid": true, "plans": len(result.Plans)}); err != nil {
			return err
		}
	} else if len(problems) > 0 {
		fmt.Fprintf(f.Writer, "%s %d validation error(s):\n", statusMark(false), len(problems))
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "  %s\n", p)
		}
	} else {
		fmt.Fprintf(f.Writer, "%s %d plan(s) valid\n", statusMark(true), len(result.Plans))
	}

	if len(problems) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(problems)))
	}
	return nil
}

func runPlanRun(opts *PlanOptions, dir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd)

	result, err := loadPlansOrFail(f, dir)
	if err != nil {
		return err
	}

	base := opts.logger(cmd)
	defer func() { _ = base.Sync() }()

	summary := PlanRunSummary{
		Plans: make([]PlanRunResult, 0, len(result.Plans)),
		Total: len(result.Plans),
	}

	for _, p := range result.Plans {
		runID := runIDs.Generate()
		logger := logging.ForRun(base, runID).With(zap.String("plan", p.Name))

		engine := walk.New(walk.WithLogger(logger), walk.WithMaxSpan(opts.MaxSpan))
		res := engine.Begin(p.Config)

		digest, err := res.Digest()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to digest trace", err)
		}

		if opts.Database != "" {
			if err := saveRun(ctx, opts.Database, runID, res, engine.MaxSpan(), logger); err != nil {
				return err
			}
		}

		pr := PlanRunResult{
			Plan:      p.Name,
			RunID:     runID,
			Config:    p.Config,
			Reason:    res.Reason,
			Rejection: res.Rejection,
			Events:    len(res.Events),
			Digest:    digest,
		}
		if res.Rejected() {
			summary.Rejected++
		}
		summary.Plans = append(summary.Plans, pr)

		if !f.JSON() {
			fmt.Fprintf(f.Writer, "%s %-20s %s %s (%d events)\n",
				statusMark(!res.Rejected()), p.Name, p.Config, res.Reason, len(res.Events))
			if res.Rejection != nil {
				fmt.Fprintf(f.Writer, "  %s\n", res.Rejection.Message)
			}
		}
	}

	if f.JSON() {
		resp := CLIResponse{Status: "ok", Data: summary}
		if summary.Rejected > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    string(walk.ReasonConfigurationRejected),
				Message: fmt.Sprintf("%d plan(s) rejected", summary.Rejected),
			}
		}
		if err := f.Encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "\nPlan Summary: %d completed, %d rejected, %d total\n",
			summary.Total-summary.Rejected, summary.Rejected, summary.Total)
	}

	if summary.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d plan(s) rejected", summary.Rejected))
	}
	return nil
}
