package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ResumeOptions holds flags for the resume command.
type ResumeOptions struct {
	*RootOptions
	ConfigPath string
	All        bool
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResumeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resume [execution-id]",
		Short: "Resume an interrupted execution",
		Long: `Resume a durable execution to completion.

A running execution (the crash-recovery case) replays its body against the
journal: recorded steps answer from history and only unfinished work
re-executes. A completed or failed execution returns its recorded outcome
without re-running anything.

With --all, every incomplete root execution in the journal is resumed in
start order.

Examples:
  julee resume 0192f7a3-... --config julee.cue
  julee resume --all --config julee.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All == (len(args) == 1) {
				return NewExitError(ExitCommandError, "provide an execution ID or --all, not both")
			}
			return runResume(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().BoolVar(&opts.All, "all", false, "resume every incomplete execution")

	return cmd
}

func runResume(opts *ResumeOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	rt, err := openRuntime(opts.RootOptions, opts.ConfigPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	ids := args
	if opts.All {
		incomplete, err := rt.Journal.IncompleteExecutions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "list incomplete executions", err)
		}
		for _, exec := range incomplete {
			ids = append(ids, exec.ID)
		}
		if len(ids) == 0 {
			return formatter.Success("no incomplete executions")
		}
	}

	var results []RunResult
	failures := 0
	for _, id := range ids {
		h, err := rt.Engine.Resume(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("resume %s", id), err)
		}
		result, runErr := h.Await(ctx)
		if runErr != nil {
			failures++
			results = append(results, RunResult{ExecutionID: id, Status: "failed", Failure: runErr.Error()})
			continue
		}
		results = append(results, RunResult{ExecutionID: id, Status: "completed", Result: result})
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Status == "failed" {
				fmt.Fprintf(formatter.Writer, "execution %s failed: %s\n", r.ExecutionID, r.Failure)
				continue
			}
			fmt.Fprintf(formatter.Writer, "execution %s completed\n", r.ExecutionID)
		}
	}

	if failures > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d executions failed", failures, len(results)))
	}
	return nil
}
