package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pyx-industries/julee/internal/config"
)

// ValidationResult is the validate command's output payload.
type ValidationResult struct {
	Valid          bool   `json:"valid"`
	JournalPath    string `json:"journal_path,omitempty"`
	Workers        int    `json:"workers,omitempty"`
	OrphanHandling string `json:"orphan_handling,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file",
		Long: `Validate a CUE config file against the embedded schema.

Checks constraints and fills defaults without opening the journal or
starting an engine. Error messages carry CUE file positions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidateConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(path)
	if err != nil {
		if opts.Format == "json" {
			if encErr := formatter.Success(ValidationResult{Valid: false, Error: err.Error()}); encErr != nil {
				return encErr
			}
		} else if encErr := formatter.Error("E_INVALID_CONFIG", err.Error(), nil); encErr != nil {
			return encErr
		}
		return NewExitError(ExitFailure, "config is invalid")
	}

	result := ValidationResult{
		Valid:          true,
		JournalPath:    cfg.JournalPath,
		Workers:        cfg.Workers,
		OrphanHandling: cfg.OrphanHandling,
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s is valid (journal %s, %d workers, orphan handling %s)\n",
		path, cfg.JournalPath, cfg.Workers, cfg.OrphanHandling)
	return nil
}
