package utils

import (
	"context"
	"strings"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	logLevelContextKeyConstant              = commandContextKey("logLevel")
	runLabelContextKeyConstant              = commandContextKey("runLabel")
)

type commandContextKey string

// RunLabel identifies the repository and branch pair a generation run targets.
type RunLabel struct {
	Repository string
	Branch     string
}

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// WithLogLevel attaches the effective log level to the provided context.
func (accessor CommandContextAccessor) WithLogLevel(parentContext context.Context, logLevel string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	trimmedLogLevel := strings.TrimSpace(logLevel)
	if len(trimmedLogLevel) == 0 {
		return parentContext
	}
	return context.WithValue(parentContext, logLevelContextKeyConstant, trimmedLogLevel)
}

// WithRunLabel attaches the run label when at least one value is present.
func (accessor CommandContextAccessor) WithRunLabel(parentContext context.Context, label RunLabel) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	normalized := RunLabel{Repository: strings.TrimSpace(label.Repository), Branch: strings.TrimSpace(label.Branch)}
	if len(normalized.Repository) == 0 && len(normalized.Branch) == 0 {
		return parentContext
	}
	return context.WithValue(parentContext, runLabelContextKeyConstant, normalized)
}

// ConfigurationFilePath extracts the configuration file path from the provided context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, configurationFilePathAvailable := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	if !configurationFilePathAvailable {
		return "", false
	}
	return configurationFilePath, true
}

// LogLevel extracts the effective log level from the provided context.
func (accessor CommandContextAccessor) LogLevel(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	value, valueAvailable := executionContext.Value(logLevelContextKeyConstant).(string)
	if !valueAvailable {
		return "", false
	}
	return value, true
}

// RunLabel extracts the run label from the provided context.
func (accessor CommandContextAccessor) RunLabel(executionContext context.Context) (RunLabel, bool) {
	if executionContext == nil {
		return RunLabel{}, false
	}
	value, valueAvailable := executionContext.Value(runLabelContextKeyConstant).(RunLabel)
	if !valueAvailable {
		return RunLabel{}, false
	}
	return value, true
}
