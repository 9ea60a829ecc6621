package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pyx-industries/julee/internal/journal"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	ConfigPath string
}

// ExecutionStatus is the status command's JSON payload for one execution.
type ExecutionStatus struct {
	ExecutionID string `json:"execution_id"`
	Pipeline    string `json:"pipeline"`
	Status      string `json:"status"`
	Failure     string `json:"failure,omitempty"`
	StartedAt   string `json:"started_at"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
	Steps       int    `json:"steps,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [execution-id]",
		Short: "Show execution status",
		Long: `Show the journal's view of executions.

Without arguments, lists every root execution. With an execution ID, shows
that execution's record including its recorded steps.

Examples:
  julee status --config julee.cue
  julee status 0192f7a3-... --config julee.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runStatus(opts *StatusOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := openJournal(opts.ConfigPath)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	if len(args) == 1 {
		return statusDetail(ctx, formatter, j, args[0])
	}
	return statusList(ctx, formatter, j)
}

func statusList(ctx context.Context, formatter *OutputFormatter, j *journal.Journal) error {
	execs, err := j.ListExecutions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "list executions", err)
	}

	if formatter.Format == "json" {
		statuses := make([]ExecutionStatus, 0, len(execs))
		for _, exec := range execs {
			statuses = append(statuses, executionStatus(exec, 0))
		}
		return formatter.Success(statuses)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(formatter.Writer)
	tw.AppendHeader(table.Row{"ID", "Pipeline", "Status", "Started", "Duration"})
	for _, exec := range execs {
		tw.AppendRow(table.Row{
			exec.ID, exec.Pipeline, exec.Status,
			formatMS(exec.StartedAtMS), formatDuration(exec.StartedAtMS, exec.EndedAtMS),
		})
	}
	tw.Render()
	return nil
}

func statusDetail(ctx context.Context, formatter *OutputFormatter, j *journal.Journal, executionID string) error {
	exec, err := j.GetExecution(ctx, executionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "load execution", err)
	}
	steps, err := j.StepsForExecution(ctx, executionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "load steps", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(executionStatus(exec, len(steps)))
	}

	fmt.Fprintf(formatter.Writer, "execution %s\n", exec.ID)
	fmt.Fprintf(formatter.Writer, "  pipeline: %s\n", exec.Pipeline)
	fmt.Fprintf(formatter.Writer, "  status:   %s\n", exec.Status)
	fmt.Fprintf(formatter.Writer, "  started:  %s\n", formatMS(exec.StartedAtMS))
	if exec.Failure != "" {
		fmt.Fprintf(formatter.Writer, "  failure:  %s (%s)\n", exec.Failure, exec.FailureKind)
	}

	if len(steps) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(formatter.Writer)
		tw.AppendHeader(table.Row{"Seq", "Operation", "Status", "Attempts", "Worker"})
		for _, step := range steps {
			tw.AppendRow(table.Row{step.Seq, step.Name, step.Status, step.Attempts, step.WorkerID})
		}
		tw.Render()
	}
	return nil
}

func executionStatus(exec journal.Execution, steps int) ExecutionStatus {
	s := ExecutionStatus{
		ExecutionID: exec.ID,
		Pipeline:    exec.Pipeline,
		Status:      exec.Status,
		Failure:     exec.Failure,
		StartedAt:   formatMS(exec.StartedAtMS),
		Steps:       steps,
	}
	if exec.EndedAtMS > 0 {
		s.DurationMS = exec.EndedAtMS - exec.StartedAtMS
	}
	return s
}

func formatMS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func formatDuration(startMS, endMS int64) string {
	if endMS == 0 {
		return "-"
	}
	return (time.Duration(endMS-startMS) * time.Millisecond).String()
}
