package generate

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/aibackend"
	"github.com/tyemirov/covgen/internal/buildtool"
	"github.com/tyemirov/covgen/internal/changeset"
	"github.com/tyemirov/covgen/internal/execshell"
	"github.com/tyemirov/covgen/internal/gitrepo"
	"github.com/tyemirov/covgen/internal/testgen"
	"github.com/tyemirov/covgen/internal/utils"
	flagutils "github.com/tyemirov/covgen/internal/utils/flags"
)

const (
	commandUseName          = "generate"
	commandShortDescription = "Generate unit tests for changed source files and publish them"
	commandLongDescription  = "generate resolves the changed source files (or every tracked file in full mode), asks the configured AI backend for test coverage, writes the test files, runs the build tool, and pushes the tests to <branch>-unit-test-coverage."

	modeFlagName            = "mode"
	modeFlagUsage           = "Override the generate mode"
	extensionsFlagName      = "extensions"
	extensionsFlagUsage     = "Override the target extensions (comma separated)"
	buildToolFlagName       = "build-tool"
	buildToolFlagUsage      = "Override the build tool"
	repositoryPathFlagName  = "repository-path"
	repositoryPathFlagUsage = "Override the repository working tree path"
	skipPublishFlagName     = "skip-publish"
	skipPublishFlagUsage    = "Write tests and run the build without committing or pushing"

	runStartingMessage    = "test generation run starting"
	runFailedMessage      = "test generation run failed"
	runCompletedMessage   = "test generation run completed"
	runHeaderTemplate     = "covgen: %s @ %s (%s mode)\n"
	repositoryFieldName   = "repository"
	branchFieldName       = "branch"
	modeFieldName         = "mode"
	backendFieldName      = "backend"
	writtenFieldName      = "written"
	totalFieldName        = "total"
	repositoryLabelFormat = "%s/%s"
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// BackendFactory constructs the AI backend for validated settings.
type BackendFactory func(settings aibackend.Settings, logger *zap.Logger) (aibackend.Backend, error)

// CommandBuilder assembles the generate command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	CommandRunner                execshell.CommandRunner
	FileSystem                   testgen.FileSystem
	BackendFactory               BackendFactory
}

// Build constructs the generate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}

	command.Flags().String(modeFlagName, "", flagutils.FormatChoiceUsage("", []string{string(changeset.ModeFull), string(changeset.ModeIncremental)}, modeFlagUsage))
	command.Flags().StringSlice(extensionsFlagName, nil, extensionsFlagUsage)
	command.Flags().String(buildToolFlagName, "", buildToolFlagUsage)
	command.Flags().String(repositoryPathFlagName, "", repositoryPathFlagUsage)
	command.Flags().Bool(skipPublishFlagName, false, skipPublishFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration(command)
	settings, validationError := configuration.Validate()
	if validationError != nil {
		return validationError
	}

	logger := builder.resolveLogger()
	humanReadable := false
	if builder.HumanReadableLoggingProvider != nil {
		humanReadable = builder.HumanReadableLoggingProvider()
	}

	pipeline, pipelineError := builder.assemble(settings, logger, humanReadable)
	if pipelineError != nil {
		return pipelineError
	}

	contextAccessor := utils.NewCommandContextAccessor()
	executionContext := contextAccessor.WithRunLabel(command.Context(), utils.RunLabel{
		Repository: fmt.Sprintf(repositoryLabelFormat, settings.Owner, settings.RepositoryName),
		Branch:     settings.HeadBranch,
	})
	command.SetContext(executionContext)

	if label, available := contextAccessor.RunLabel(executionContext); available {
		fmt.Fprintf(command.OutOrStdout(), runHeaderTemplate, label.Repository, label.Branch, settings.Mode)
		logger.Info(runStartingMessage,
			zap.String(repositoryFieldName, label.Repository),
			zap.String(branchFieldName, label.Branch),
			zap.String(modeFieldName, string(settings.Mode)),
			zap.String(backendFieldName, string(settings.Backend.Kind)),
		)
	}

	result, runError := pipeline.Run(executionContext, testgen.RunOptions{
		RepositoryPath: settings.RepositoryPath,
		Mode:           settings.Mode,
		BaseBranch:     settings.BaseBranch,
		HeadBranch:     settings.HeadBranch,
		SourceRoot:     settings.SourceRoot,
		TestRoot:       settings.TestRoot,
		BuildTool:      settings.BuildTool,
		Publish: testgen.PublishOptions{
			Owner:          settings.Owner,
			RepositoryName: settings.RepositoryName,
			Token:          settings.Token,
			UserName:       settings.GitUserName,
			UserEmail:      settings.GitUserEmail,
			Skip:           settings.SkipPublish,
		},
	})
	testgen.RenderSummary(command.OutOrStdout(), result)

	if runError != nil {
		logger.Error(runFailedMessage, zap.Error(runError))
		return runError
	}
	logger.Info(runCompletedMessage,
		zap.Int(totalFieldName, len(result.Files)),
		zap.Int(writtenFieldName, result.Count(testgen.OutcomeWritten)),
	)
	return nil
}

func (builder *CommandBuilder) assemble(settings Settings, logger *zap.Logger, humanReadable bool) (*testgen.Pipeline, error) {
	commandRunner := builder.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, humanReadable)
	if executorError != nil {
		return nil, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(shellExecutor)
	if managerError != nil {
		return nil, managerError
	}

	fileSystem := builder.FileSystem
	if fileSystem == nil {
		fileSystem = testgen.OSFileSystem{}
	}

	resolver, resolverError := changeset.NewResolver(repositoryManager, fileSystem, logger)
	if resolverError != nil {
		return nil, resolverError
	}

	backendFactory := builder.BackendFactory
	if backendFactory == nil {
		backendFactory = aibackend.New
	}
	backendSettings := settings.Backend
	backendSettings.HTTPClient = &http.Client{Timeout: settings.RequestTimeout}
	backend, backendError := backendFactory(backendSettings, logger)
	if backendError != nil {
		return nil, backendError
	}

	orchestrator, orchestratorError := testgen.NewOrchestrator(testgen.OrchestratorConfig{
		RepositoryPath:   settings.RepositoryPath,
		SourceRoot:       settings.SourceRoot,
		TestRoot:         settings.TestRoot,
		TargetExtensions: settings.Extensions,
	}, backend, fileSystem, logger)
	if orchestratorError != nil {
		return nil, orchestratorError
	}

	buildRunner, buildRunnerError := buildtool.NewRunner(shellExecutor, logger)
	if buildRunnerError != nil {
		return nil, buildRunnerError
	}

	return testgen.NewPipeline(resolver, orchestrator, buildRunner, repositoryManager, logger)
}

func (builder *CommandBuilder) resolveConfiguration(command *cobra.Command) Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if mode, changed, flagError := flagutils.StringFlag(command, modeFlagName); flagError == nil && changed {
		configuration.GenerateMode = mode
	}
	if extensions, changed, flagError := flagutils.StringSliceFlag(command, extensionsFlagName); flagError == nil && changed {
		configuration.TargetExtensions = extensions
	}
	if buildTool, changed, flagError := flagutils.StringFlag(command, buildToolFlagName); flagError == nil && changed {
		configuration.BuildTool = buildTool
	}
	if repositoryPath, changed, flagError := flagutils.StringFlag(command, repositoryPathFlagName); flagError == nil && changed {
		configuration.RepositoryPath = repositoryPath
	}
	if skipPublish, changed, flagError := flagutils.BoolFlag(command, skipPublishFlagName); flagError == nil && changed {
		configuration.SkipPublish = skipPublish
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	if logger := builder.LoggerProvider(); logger != nil {
		return logger
	}
	return zap.NewNop()
}
