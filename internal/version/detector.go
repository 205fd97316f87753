package version

import (
	"context"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/execshell"
	"github.com/tyemirov/covgen/internal/gitrepo"
)

const (
	unknownVersionFallbackConstant            = "unknown"
	buildInfoDevelVersionValue                = "(devel)"
	buildSettingRevisionKeyConstant           = "vcs.revision"
	buildSettingModifiedKeyConstant           = "vcs.modified"
	buildSettingModifiedTrueValueConstant     = "true"
	revisionVersionPrefixConstant             = "devel-"
	dirtyVersionSuffixConstant                = "-dirty"
	shortRevisionLengthConstant               = 12
	gitDescribeSubcommandConstant             = "describe"
	gitTagsFlagConstant                       = "--tags"
	gitAlwaysFlagConstant                     = "--always"
	gitDirtyFlagConstant                      = "--dirty"
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
	GitExecutor       gitrepo.GitCommandExecutor
	WorkingDirectory  string
}

// Detector resolves the covgen version string.
type Detector struct {
	buildInfoProvider BuildInfoProvider
	gitExecutor       gitrepo.GitCommandExecutor
	workingDirectory  string
}

// NewDetector constructs a Detector, filling in runtime defaults for missing collaborators.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}

	executor := dependencies.GitExecutor
	if executor == nil {
		shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner(), false)
		if creationError != nil {
			return nil, creationError
		}
		executor = shellExecutor
	}

	workingDirectory := strings.TrimSpace(dependencies.WorkingDirectory)
	if len(workingDirectory) == 0 {
		if currentDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
			workingDirectory = currentDirectory
		}
	}

	return &Detector{
		buildInfoProvider: provider,
		gitExecutor:       executor,
		workingDirectory:  workingDirectory,
	}, nil
}

// Detect resolves the version with a freshly constructed Detector.
func Detect(executionContext context.Context, dependencies Dependencies) string {
	detector, detectorError := NewDetector(dependencies)
	if detectorError != nil {
		return unknownVersionFallbackConstant
	}
	return detector.Version(executionContext)
}

// Version prefers the module version, then the embedded VCS revision, then git describe.
func (detector *Detector) Version(executionContext context.Context) string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}

	buildInfo, available := detector.buildInfoProvider.Read()
	if available && buildInfo != nil {
		if moduleVersion := strings.TrimSpace(buildInfo.Main.Version); len(moduleVersion) > 0 && moduleVersion != buildInfoDevelVersionValue {
			return moduleVersion
		}
		if revisionVersion := revisionFromSettings(buildInfo.Settings); len(revisionVersion) > 0 {
			return revisionVersion
		}
	}

	if describedVersion := detector.describe(executionContext); len(describedVersion) > 0 {
		return describedVersion
	}

	return unknownVersionFallbackConstant
}

func revisionFromSettings(settings []debug.BuildSetting) string {
	revision := ""
	modified := false
	for _, setting := range settings {
		switch setting.Key {
		case buildSettingRevisionKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case buildSettingModifiedKeyConstant:
			modified = setting.Value == buildSettingModifiedTrueValueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	version := revisionVersionPrefixConstant + revision
	if modified {
		version += dirtyVersionSuffixConstant
	}
	return version
}

func (detector *Detector) describe(executionContext context.Context) string {
	if detector.gitExecutor == nil || len(detector.workingDirectory) == 0 {
		return ""
	}
	executionResult, executionError := detector.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitDescribeSubcommandConstant, gitTagsFlagConstant, gitAlwaysFlagConstant, gitDirtyFlagConstant},
		WorkingDirectory: detector.workingDirectory,
		EnvironmentVariables: map[string]string{
			gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant,
		},
	})
	if executionError != nil {
		return ""
	}
	return strings.TrimSpace(executionResult.StandardOutput)
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
