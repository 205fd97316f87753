package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	generatecmd "github.com/tyemirov/covgen/cmd/cli/generate"
)

const (
	configCommandUseNameConstant          = "config"
	configCommandShortDescriptionConstant = "Print the effective configuration with secrets redacted"
	configFileHeaderTemplateConstant      = "# configuration file: %s\n"
	configFileNoneConstant                = "none"
	configEncodingErrorTemplateConstant   = "unable to encode configuration: %w"
	commandBuildErrorTemplateConstant     = "unable to build %s command: %w"
	generateCommandNameConstant           = "generate"
)

func (application *Application) registerCommands(rootCommand *cobra.Command) {
	generateBuilder := generatecmd.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() generatecmd.Configuration {
			return application.configuration.Generate
		},
	}
	generateCommand, generateBuildError := generateBuilder.Build()
	if generateBuildError != nil {
		rootCommand.AddCommand(&cobra.Command{
			Use: generateCommandNameConstant,
			RunE: func(*cobra.Command, []string) error {
				return fmt.Errorf(commandBuildErrorTemplateConstant, generateCommandNameConstant, generateBuildError)
			},
		})
	} else {
		rootCommand.AddCommand(generateCommand)
	}

	rootCommand.AddCommand(&cobra.Command{
		Use:   configCommandUseNameConstant,
		Short: configCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  application.printConfiguration,
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		Run: func(command *cobra.Command, arguments []string) {
			application.printVersion(command)
		},
	})
}

func (application *Application) printConfiguration(command *cobra.Command, arguments []string) error {
	configurationFile := configFileNoneConstant
	if configurationPath, available := application.commandContextAccessor.ConfigurationFilePath(command.Context()); available && len(configurationPath) > 0 {
		configurationFile = configurationPath
	}

	redacted := application.configuration
	redacted.Generate = redacted.Generate.Sanitize().Redacted()

	encoded, encodingError := yaml.Marshal(redacted)
	if encodingError != nil {
		return fmt.Errorf(configEncodingErrorTemplateConstant, encodingError)
	}

	output := command.OutOrStdout()
	fmt.Fprintf(output, configFileHeaderTemplateConstant, configurationFile)
	_, writeError := output.Write(encoded)
	return writeError
}
