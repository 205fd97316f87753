// Package buildtool runs the project's build and test command after generation.
package buildtool

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/execshell"
)

const (
	mavenToolConstant                   = "mvn"
	gradleToolConstant                  = "gradle"
	npmToolConstant                     = "npm"
	pytestToolConstant                  = "pytest"
	swiftToolConstant                   = "swift"
	sbtToolConstant                     = "sbt"
	mavenCommandConstant                = "mvn clean verify"
	gradleCommandConstant               = "./gradlew clean test"
	npmCommandConstant                  = "npm test -- --coverage"
	pytestCommandConstant               = "pytest --cov=src tests/"
	swiftCommandConstant                = "swift test --enable-code-coverage"
	sbtCommandConstant                  = "sbt clean coverage test"
	unknownToolMessageConstant          = "unknown build tool, no build will be run"
	buildStartMessageConstant           = "building and running unit tests coverage"
	coverageReportMessageConstant       = "coverage report"
	buildPassedMessageConstant          = "unit tests passed"
	buildFailedMessageConstant          = "unit tests failed or coverage failed"
	shellExecutorMissingMessageConstant = "build runner shell executor not configured"
	toolFieldNameConstant               = "build_tool"
	commandFieldNameConstant            = "command"
	outputFieldNameConstant             = "output"
	exitCodeFieldNameConstant           = "exit_code"
)

var buildCommands = map[string]string{
	mavenToolConstant:  mavenCommandConstant,
	gradleToolConstant: gradleCommandConstant,
	npmToolConstant:    npmCommandConstant,
	pytestToolConstant: pytestCommandConstant,
	swiftToolConstant:  swiftCommandConstant,
	sbtToolConstant:    sbtCommandConstant,
}

// ErrShellExecutorNotConfigured indicates the runner was built without a shell executor.
var ErrShellExecutorNotConfigured = errors.New(shellExecutorMissingMessageConstant)

// CommandFor returns the build and test command for tool, matched case-insensitively.
func CommandFor(tool string) (string, bool) {
	command, known := buildCommands[strings.ToLower(strings.TrimSpace(tool))]
	return command, known
}

// ShellExecutor runs inline shell scripts.
type ShellExecutor interface {
	ExecuteShell(executionContext context.Context, script string, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Report describes a build invocation. Ran is false when the tool is unknown.
type Report struct {
	Tool     string
	Command  string
	Ran      bool
	Passed   bool
	ExitCode int
	Output   string
}

// Runner executes build commands. Failures are reported, never returned.
type Runner struct {
	executor ShellExecutor
	logger   *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(executor ShellExecutor, logger *zap.Logger) (*Runner, error) {
	if executor == nil {
		return nil, ErrShellExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{executor: executor, logger: logger}, nil
}

// Run executes the command mapped from tool inside workingDirectory and logs the combined output.
func (runner *Runner) Run(executionContext context.Context, tool string, workingDirectory string) Report {
	report := Report{Tool: tool}
	command, known := CommandFor(tool)
	if !known {
		runner.logger.Warn(unknownToolMessageConstant, zap.String(toolFieldNameConstant, tool))
		return report
	}
	report.Command = command
	report.Ran = true
	runner.logger.Info(buildStartMessageConstant, zap.String(commandFieldNameConstant, command))

	result, executionError := runner.executor.ExecuteShell(executionContext, command, execshell.CommandDetails{WorkingDirectory: workingDirectory})
	var failedError execshell.CommandFailedError
	switch {
	case executionError == nil:
		report.Passed = true
		report.Output = combineOutput(result)
	case errors.As(executionError, &failedError):
		report.ExitCode = failedError.Result.ExitCode
		report.Output = combineOutput(failedError.Result)
	default:
		report.ExitCode = -1
		report.Output = executionError.Error()
	}

	runner.logger.Info(coverageReportMessageConstant, zap.String(outputFieldNameConstant, report.Output))
	if report.Passed {
		runner.logger.Info(buildPassedMessageConstant, zap.String(toolFieldNameConstant, tool))
	} else {
		runner.logger.Error(buildFailedMessageConstant,
			zap.String(toolFieldNameConstant, tool),
			zap.Int(exitCodeFieldNameConstant, report.ExitCode),
		)
	}
	return report
}

func combineOutput(result execshell.ExecutionResult) string {
	segments := make([]string, 0, 2)
	for _, segment := range []string{result.StandardOutput, result.StandardError} {
		if trimmed := strings.TrimRight(segment, "\n"); len(trimmed) > 0 {
			segments = append(segments, trimmed)
		}
	}
	return strings.Join(segments, "\n")
}
