package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pyx-industries/julee/internal/provenance"
	"github.com/pyx-industries/julee/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	ConfigPath string
}

// TraceLineage is the trace command's JSON shape for one execution's lineage.
type TraceLineage struct {
	ExecutionID string       `json:"execution_id"`
	Pipeline    string       `json:"pipeline"`
	Status      string       `json:"status"`
	Input       value.Object `json:"input"`
	Result      value.Object `json:"result,omitempty"`
	Failure     string       `json:"failure,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
	Steps       []TraceStep  `json:"steps"`
}

// TraceStep is one lineage entry in the trace output.
type TraceStep struct {
	Seq        int64         `json:"seq"`
	Operation  string        `json:"operation"`
	Actor      string        `json:"actor,omitempty"`
	Status     string        `json:"status"`
	Attempts   int           `json:"attempts"`
	Input      value.Object  `json:"input"`
	Output     value.Object  `json:"output,omitempty"`
	Failure    string        `json:"failure,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Child      *TraceLineage `json:"child,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <execution-id>",
		Short: "Show provenance lineage for an execution",
		Long: `Derive the provenance lineage of an execution from the journal.

Each lineage entry answers who produced a datum (the worker that ran the
successful attempt), from which inputs, by which operation, and at what cost
in attempts and time. Steps that dispatched nested pipelines carry the
child's lineage inline.

Examples:
  julee trace 0192f7a3-... --config julee.cue
  julee trace 0192f7a3-... --config julee.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runTrace(opts *TraceOptions, executionID string, cmd *cobra.Command) error {
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

	lineage, err := provenance.NewReader(j).Lineage(cmd.Context(), executionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "derive lineage", err)
	}

	if opts.Format == "json" {
		return formatter.Success(toTraceLineage(lineage))
	}
	return renderLineage(formatter, lineage)
}

func toTraceLineage(lin *provenance.Lineage) TraceLineage {
	out := TraceLineage{
		ExecutionID: lin.ExecutionID,
		Pipeline:    lin.Pipeline,
		Status:      lin.Status,
		Input:       lin.Input,
		Result:      lin.Result,
		Failure:     lin.Failure,
		DurationMS:  lin.DurationMS,
	}
	for _, step := range lin.Steps {
		ts := TraceStep{
			Seq:        step.Seq,
			Operation:  step.Operation,
			Actor:      step.Actor,
			Status:     step.Status,
			Attempts:   step.Attempts,
			Input:      step.Input,
			Output:     step.Output,
			Failure:    step.Failure,
			DurationMS: step.DurationMS,
		}
		if step.Child != nil {
			child := toTraceLineage(step.Child)
			ts.Child = &child
		}
		out.Steps = append(out.Steps, ts)
	}
	return out
}

func renderLineage(formatter *OutputFormatter, lin *provenance.Lineage) error {
	fmt.Fprintf(formatter.Writer, "execution %s (%s) %s\n", lin.ExecutionID, lin.Pipeline, lin.Status)
	if lin.Failure != "" {
		fmt.Fprintf(formatter.Writer, "failure: %s\n", lin.Failure)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(formatter.Writer)
	tw.AppendHeader(table.Row{"Seq", "Operation", "Status", "Attempts", "Actor", "Duration"})
	appendLineageRows(tw, lin, 0)
	tw.Render()
	return nil
}

// appendLineageRows flattens the lineage tree into table rows; nested
// pipeline steps are indented under their dispatching step.
func appendLineageRows(tw table.Writer, lin *provenance.Lineage, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, step := range lin.Steps {
		tw.AppendRow(table.Row{
			step.Seq,
			indent + step.Operation,
			step.Status,
			step.Attempts,
			step.Actor,
			fmt.Sprintf("%dms", step.DurationMS),
		})
		if step.Child != nil {
			appendLineageRows(tw, step.Child, depth+1)
		}
	}
}
