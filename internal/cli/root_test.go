package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "julee", cmd.Use)
	assert.Contains(t, cmd.Long, "durable executions")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "resume", "status", "trace", "validate"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--config", "nope.cue", "--format", "yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	configFlag := runCmd.Flags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)

	inputFlag := runCmd.Flags().Lookup("input")
	require.NotNil(t, inputFlag)
	assert.Equal(t, "{}", inputFlag.DefValue)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))

	wrapped := WrapExitError(ExitCommandError, "open journal", assert.AnError)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)
}
