package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	generatecmd "github.com/tyemirov/covgen/cmd/cli/generate"
	"github.com/tyemirov/covgen/internal/utils"
	flagutils "github.com/tyemirov/covgen/internal/utils/flags"
	"github.com/tyemirov/covgen/internal/version"
)

const (
	applicationNameConstant                            = "covgen"
	applicationShortDescriptionConstant                = "Generate AI-authored unit tests for changed source files"
	applicationLongDescriptionConstant                 = "covgen maps changed source files to their conventional test files, asks a language model backend for test coverage, runs the project build, and pushes the generated tests to a coverage branch."
	configFileFlagNameConstant                         = "config"
	configFileFlagUsageConstant                        = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                           = "log-level"
	logLevelFlagUsageConstant                          = "Override the configured log level."
	logFormatFlagNameConstant                          = "log-format"
	logFormatFlagUsageConstant                         = "Override the configured log format."
	logFileFlagNameConstant                            = "log-file"
	logFileFlagUsageConstant                           = "Also write structured logs to this rotating file."
	versionFlagNameConstant                            = "version"
	versionFlagUsageConstant                           = "Print the covgen version and exit."
	versionCommandUseNameConstant                      = "version"
	versionCommandShortDescriptionConstant             = "Print the covgen version"
	versionOutputTemplateConstant                      = "covgen version: %s\n"
	commonConfigurationKeyConstant                     = "common"
	commonLogLevelConfigKeyConstant                    = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                   = commonConfigurationKeyConstant + ".log_format"
	commonLogFileConfigKeyConstant                     = commonConfigurationKeyConstant + ".log_file"
	environmentPrefixConstant                          = "COVGEN"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	environmentFileNameConstant                        = ".env"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"
	defaultConfigurationSearchPathConstant             = "."
	userConfigurationDirectoryNameConstant             = ".covgen"
	xdgConfigurationDirectoryNameConstant              = "covgen"
	configurationSearchPathEnvironmentVariableConstant = "COVGEN_CONFIG_SEARCH_PATH"
	environmentFileLoadErrorTemplateConstant           = "unable to load %s: %w"
	configurationLoadErrorTemplateConstant             = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                    = "unable to flush logger: %w"
	configurationInitializedMessageConstant            = "configuration initialized"
	configurationInitializedConsoleTemplateConstant    = "%s | log level=%s | log format=%s | config file=%s"
	configurationLogLevelFieldConstant                 = "log_level"
	configurationLogFormatFieldConstant                = "log_format"
	configurationFileFieldConstant                     = "config_file"
)

type loggerOutputsFactory interface {
	CreateLoggerOutputsWithFile(logLevel utils.LogLevel, logFormat utils.LogFormat, fileOptions utils.LogFileOptions) (utils.LoggerOutputs, error)
}

// LogRotationConfiguration bounds the optional rotating log file.
type LogRotationConfiguration struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ApplicationCommonConfiguration holds settings shared by every command.
type ApplicationCommonConfiguration struct {
	LogLevel    string                   `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string                   `mapstructure:"log_format" yaml:"log_format"`
	LogFile     string                   `mapstructure:"log_file" yaml:"log_file"`
	LogRotation LogRotationConfiguration `mapstructure:"log_rotation" yaml:"log_rotation"`
}

// ApplicationConfiguration is the full decoded configuration.
type ApplicationConfiguration struct {
	Common   ApplicationCommonConfiguration `mapstructure:"common" yaml:"common"`
	Generate generatecmd.Configuration      `mapstructure:"generate" yaml:"generate"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          loggerOutputsFactory
	logger                 *zap.Logger
	consoleLogger          *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	logFileFlagValue       string
	versionFlag            bool
	commandContextAccessor utils.CommandContextAccessor
	environmentFileLoader  func(filenames ...string) error
	versionResolver        func(context.Context) string
	exitFunction           func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		environmentFileLoader:  godotenv.Load,
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		resolveConfigurationSearchPaths(),
	)
	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)
	application.configurationLoader.BindEnvironmentAliases(generatecmd.EnvironmentAliases())

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}

			versionRequested := application.versionFlag
			if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
				versionRequested = flagValue
			}
			if versionRequested {
				application.printVersion(command)
				application.exitFunction(0)
			}
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(
		&application.logFormatFlagValue,
		logFormatFlagNameConstant,
		"",
		flagutils.FormatChoiceUsage(string(utils.LogFormatConsole), []string{string(utils.LogFormatStructured), string(utils.LogFormatConsole)}, logFormatFlagUsageConstant),
	)
	cobraCommand.PersistentFlags().StringVar(&application.logFileFlagValue, logFileFlagNameConstant, "", logFileFlagUsageConstant)
	cobraCommand.PersistentFlags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	application.rootCommand = cobraCommand
	application.registerCommands(cobraCommand)

	return application
}

// Execute runs the root command with the process arguments and flushes the loggers.
func (application *Application) Execute() error {
	return application.ExecuteWithArguments(os.Args[1:])
}

// ExecuteWithArguments runs the root command with arguments and flushes the loggers.
func (application *Application) ExecuteWithArguments(arguments []string) error {
	application.rootCommand.SetArgs(arguments)

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

// SetOutput redirects command output and errors.
func (application *Application) SetOutput(output io.Writer) {
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(output)
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

func resolveConfigurationSearchPaths() []string {
	overrideValue := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(overrideValue) > 0 {
		overridePaths := make([]string, 0)
		for _, pathCandidate := range filepath.SplitList(overrideValue) {
			if trimmedCandidate := strings.TrimSpace(pathCandidate); len(trimmedCandidate) > 0 {
				overridePaths = append(overridePaths, trimmedCandidate)
			}
		}
		if len(overridePaths) > 0 {
			return overridePaths
		}
	}

	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant)); len(xdgConfigHome) > 0 {
		searchPaths = append(searchPaths, filepath.Join(xdgConfigHome, xdgConfigurationDirectoryNameConstant))
	}
	if userHomeDirectoryPath, homeError := os.UserHomeDir(); homeError == nil && len(userHomeDirectoryPath) > 0 {
		searchPaths = append(searchPaths, filepath.Join(userHomeDirectoryPath, userConfigurationDirectoryNameConstant))
	}
	return searchPaths
}

func (application *Application) loadEnvironmentFile() error {
	if application.environmentFileLoader == nil {
		return nil
	}
	loadError := application.environmentFileLoader(environmentFileNameConstant)
	if loadError == nil || errors.Is(loadError, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFileNameConstant, loadError)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if environmentError := application.loadEnvironmentFile(); environmentError != nil {
		return environmentError
	}

	defaultValues := generatecmd.DefaultValues()
	defaultValues[commonLogLevelConfigKeyConstant] = string(utils.LogLevelInfo)
	defaultValues[commonLogFormatConfigKeyConstant] = string(utils.LogFormatConsole)
	defaultValues[commonLogFileConfigKeyConstant] = ""

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, logFileFlagNameConstant) {
		application.configuration.Common.LogFile = application.logFileFlagValue
	}

	rotation := application.configuration.Common.LogRotation
	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputsWithFile(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
		utils.LogFileOptions{
			Path:           application.configuration.Common.LogFile,
			MaxSizeMB:      rotation.MaxSizeMB,
			MaxBackups:     rotation.MaxBackups,
			MaxAgeDays:     rotation.MaxAgeDays,
			CompressBackup: rotation.Compress,
		},
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}
	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)
		command.SetContext(updatedContext)
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogFormat), string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	if !strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	if application.humanReadableLoggingEnabled() {
		application.consoleLogger.Debug(fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
		))
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
}

func (application *Application) resolveVersion(executionContext context.Context) string {
	return version.Detect(executionContext, version.Dependencies{})
}

func (application *Application) printVersion(command *cobra.Command) {
	if command == nil {
		fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, application.versionResolver(context.Background()))
		return
	}
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver(command.Context()))
}

func (application *Application) flushLogger() error {
	if syncError := syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return syncLoggerInstance(application.consoleLogger)
}

func syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.EBADF):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	_, changed, flagError := flagutils.StringFlag(command, flagName)
	return flagError == nil && changed
}
