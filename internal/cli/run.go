package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyx-industries/julee/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	Input      string
}

// RunResult is the run command's output payload.
type RunResult struct {
	ExecutionID string       `json:"execution_id"`
	Status      string       `json:"status"`
	Result      value.Object `json:"result,omitempty"`
	Failure     string       `json:"failure,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Start a pipeline and wait for it to finish",
		Long: `Start a new durable execution of a registered pipeline.

The input is a JSON object passed to the pipeline body. The command blocks
until the execution completes or fails; the execution ID it prints is the
handle for status, trace, and resume.

Examples:
  julee run knowledge.capture --config julee.cue --input '{"title": "Field notes", "body": "..."}'
  julee run knowledge.ingest --config julee.cue --input '{"title": "t", "body": "b"}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to CUE config file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Input, "input", "{}", "pipeline input as a JSON object")

	return cmd
}

func runPipeline(opts *RunOptions, pipeline string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var input value.Object
	if err := json.Unmarshal([]byte(opts.Input), &input); err != nil {
		return WrapExitError(ExitCommandError, "parse --input", err)
	}

	rt, err := openRuntime(opts.RootOptions, opts.ConfigPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	h, err := rt.Engine.Start(ctx, pipeline, input)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("start %s", pipeline), err)
	}
	formatter.VerboseLog("started execution %s", h.ExecutionID)

	result, runErr := h.Await(ctx)

	if runErr != nil {
		payload := RunResult{ExecutionID: h.ExecutionID, Status: "failed", Failure: runErr.Error()}
		if opts.Format == "json" {
			if err := formatter.Success(payload); err != nil {
				return err
			}
		} else if err := formatter.Error("E_EXECUTION_FAILED", runErr.Error(), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("execution %s failed", h.ExecutionID))
	}

	payload := RunResult{ExecutionID: h.ExecutionID, Status: "completed", Result: result}
	if opts.Format == "json" {
		return formatter.Success(payload)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "execution %s completed\n%s\n", h.ExecutionID, out)
	return nil
}
