// Package cli implements the julee command-line interface.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats lists the accepted values for --format.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the julee root command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "julee",
		Short: "Durable knowledge pipelines",
		Long: `julee runs knowledge pipelines as durable executions.

Every protocol call a pipeline makes is recorded in a SQLite journal as a
retryable, timed step. A crashed execution resumes by replaying its body
against the recorded history, and the journal doubles as a provenance record
answering who produced each datum, from which inputs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %s", opts.Format, strings.Join(ValidFormats, ", ")))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text or json)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if format == f {
			return true
		}
	}
	return false
}
