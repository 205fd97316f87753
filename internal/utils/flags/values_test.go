package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	testRootFlagNameConstant   = "log-level"
	testLocalFlagNameConstant  = "mode"
	testSliceFlagNameConstant  = "extensions"
	testToggleFlagNameConstant = "skip-publish"
)

func newFlagTestCommands() (*cobra.Command, *cobra.Command) {
	rootCommand := &cobra.Command{Use: "root"}
	rootCommand.PersistentFlags().String(testRootFlagNameConstant, "info", "")

	childCommand := &cobra.Command{Use: "child", RunE: func(*cobra.Command, []string) error { return nil }}
	childCommand.Flags().String(testLocalFlagNameConstant, "", "")
	childCommand.Flags().StringSlice(testSliceFlagNameConstant, nil, "")
	childCommand.Flags().Bool(testToggleFlagNameConstant, false, "")
	rootCommand.AddCommand(childCommand)
	return rootCommand, childCommand
}

func TestFlagAccessorsReportChangedValues(t *testing.T) {
	rootCommand, childCommand := newFlagTestCommands()
	rootCommand.SetArgs([]string{"child", "--mode", " full ", "--extensions", "py,kt", "--skip-publish", "--log-level", "debug"})
	require.NoError(t, rootCommand.Execute())

	mode, modeChanged, modeError := StringFlag(childCommand, testLocalFlagNameConstant)
	require.NoError(t, modeError)
	require.True(t, modeChanged)
	require.Equal(t, "full", mode)

	extensions, extensionsChanged, extensionsError := StringSliceFlag(childCommand, testSliceFlagNameConstant)
	require.NoError(t, extensionsError)
	require.True(t, extensionsChanged)
	require.Equal(t, []string{"py", "kt"}, extensions)

	skip, skipChanged, skipError := BoolFlag(childCommand, testToggleFlagNameConstant)
	require.NoError(t, skipError)
	require.True(t, skipChanged)
	require.True(t, skip)

	logLevel, logLevelChanged, logLevelError := StringFlag(childCommand, testRootFlagNameConstant)
	require.NoError(t, logLevelError)
	require.True(t, logLevelChanged)
	require.Equal(t, "debug", logLevel)
}

func TestFlagAccessorsReportDefaults(t *testing.T) {
	rootCommand, childCommand := newFlagTestCommands()
	rootCommand.SetArgs([]string{"child"})
	require.NoError(t, rootCommand.Execute())

	logLevel, changed, err := StringFlag(childCommand, testRootFlagNameConstant)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, "info", logLevel)

	_, _, missingError := BoolFlag(childCommand, "missing")
	require.ErrorIs(t, missingError, ErrFlagNotDefined)
	_, _, nilError := StringFlag(nil, testLocalFlagNameConstant)
	require.ErrorIs(t, nilError, ErrFlagNotDefined)
}

func TestFormatChoiceUsage(t *testing.T) {
	require.Equal(t, "Log format (one of: structured, console; default structured)", FormatChoiceUsage("structured", []string{"structured", "console"}, "Log format"))
	require.Equal(t, "Mode (one of: full, incremental; default none)", FormatChoiceUsage("", []string{"full", "incremental"}, "Mode"))
}
