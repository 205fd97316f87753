package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tyemirov/covgen/internal/utils"
)

const (
	internalTestVersionConstant           = "v1.4.0"
	internalTestSearchPathEnvironmentName = "COVGEN_CONFIG_SEARCH_PATH"
	internalTestConfigurationContent      = "common:\n  log_level: warn\n  log_format: structured\n  log_rotation:\n    max_size_mb: 5\n    max_backups: 7\n    compress: true\n"
	internalTestLogFileNameConstant       = "covgen.log"
	internalTestSubtestNameTemplate       = "%02d_%s"
)

type recordingLoggerFactory struct {
	level       utils.LogLevel
	format      utils.LogFormat
	fileOptions utils.LogFileOptions
	invocations int
}

func (factory *recordingLoggerFactory) CreateLoggerOutputsWithFile(logLevel utils.LogLevel, logFormat utils.LogFormat, fileOptions utils.LogFileOptions) (utils.LoggerOutputs, error) {
	factory.level = logLevel
	factory.format = logFormat
	factory.fileOptions = fileOptions
	factory.invocations++
	return utils.LoggerOutputs{DiagnosticLogger: zap.NewNop(), ConsoleLogger: zap.NewNop()}, nil
}

type failingSyncer struct {
	syncError error
}

func (syncer failingSyncer) Write(payload []byte) (int, error) {
	return len(payload), nil
}

func (syncer failingSyncer) Sync() error {
	return syncer.syncError
}

func newIsolatedApplication(testInstance *testing.T, configurationContent string) *Application {
	testInstance.Helper()
	configurationDirectory := testInstance.TempDir()
	if len(configurationContent) > 0 {
		configurationPath := filepath.Join(configurationDirectory, "config.yaml")
		require.NoError(testInstance, os.WriteFile(configurationPath, []byte(configurationContent), 0o600))
	}
	testInstance.Setenv(internalTestSearchPathEnvironmentName, configurationDirectory)
	application := NewApplication()
	application.environmentFileLoader = nil
	application.versionResolver = func(context.Context) string {
		return internalTestVersionConstant
	}
	return application
}

func TestApplicationPrintsVersion(testInstance *testing.T) {
	testCases := []struct {
		name              string
		arguments         []string
		expectedExitCodes []int
	}{
		{name: "VersionCommand", arguments: []string{versionCommandUseNameConstant}},
		{name: "VersionFlag", arguments: []string{"--" + versionFlagNameConstant}, expectedExitCodes: []int{0}},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(internalTestSubtestNameTemplate, testCaseIndex, testCase.name), func(subTest *testing.T) {
			application := newIsolatedApplication(subTest, "")
			var exitCodes []int
			application.exitFunction = func(code int) {
				exitCodes = append(exitCodes, code)
			}
			var output strings.Builder
			application.SetOutput(&output)

			require.NoError(subTest, application.ExecuteWithArguments(testCase.arguments))
			require.True(subTest, strings.HasPrefix(output.String(), fmt.Sprintf(versionOutputTemplateConstant, internalTestVersionConstant)))
			require.Equal(subTest, testCase.expectedExitCodes, exitCodes)
		})
	}
}

func TestApplicationPassesLoggingConfigurationToFactory(testInstance *testing.T) {
	application := newIsolatedApplication(testInstance, internalTestConfigurationContent)
	factory := &recordingLoggerFactory{}
	application.loggerFactory = factory
	logFilePath := filepath.Join(testInstance.TempDir(), internalTestLogFileNameConstant)
	var output strings.Builder
	application.SetOutput(&output)

	executionError := application.ExecuteWithArguments([]string{"--" + logFileFlagNameConstant, logFilePath, "--" + logFormatFlagNameConstant, string(utils.LogFormatConsole), configCommandUseNameConstant})
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, 1, factory.invocations)
	require.Equal(testInstance, utils.LogLevelWarn, factory.level)
	require.Equal(testInstance, utils.LogFormatConsole, factory.format)
	require.Equal(testInstance, utils.LogFileOptions{
		Path:           logFilePath,
		MaxSizeMB:      5,
		MaxBackups:     7,
		MaxAgeDays:     28,
		CompressBackup: true,
	}, factory.fileOptions)
	require.True(testInstance, application.humanReadableLoggingEnabled())
	require.NotEmpty(testInstance, application.ConfigFileUsed())
}

func TestSyncLoggerInstanceIgnoresTerminalErrors(testInstance *testing.T) {
	testCases := []struct {
		name          string
		syncError     error
		expectFailure bool
	}{
		{name: "NoError"},
		{name: "NotSupported", syncError: syscall.ENOTSUP},
		{name: "InvalidArgument", syncError: syscall.EINVAL},
		{name: "BadDescriptor", syncError: syscall.EBADF},
		{name: "NotTerminal", syncError: syscall.ENOTTY},
		{name: "OtherFailure", syncError: syscall.EIO, expectFailure: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(internalTestSubtestNameTemplate, testCaseIndex, testCase.name), func(subTest *testing.T) {
			logger := zap.New(zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				failingSyncer{syncError: testCase.syncError},
				zapcore.DebugLevel,
			))
			syncError := syncLoggerInstance(logger)
			if testCase.expectFailure {
				require.ErrorIs(subTest, syncError, testCase.syncError)
				return
			}
			require.NoError(subTest, syncError)
		})
	}
}
