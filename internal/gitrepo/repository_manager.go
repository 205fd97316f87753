package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/covgen/internal/execshell"
)

const (
	gitConfigFlagConstant                     = "-c"
	gitUnquotedPathsSettingConstant           = "core.quotePath=false"
	gitRemoteSubcommandConstant               = "remote"
	gitVerboseFlagConstant                    = "-v"
	gitListFilesSubcommandConstant            = "ls-files"
	gitDiffSubcommandConstant                 = "diff"
	gitNameOnlyFlagConstant                   = "--name-only"
	gitCachedFlagConstant                     = "--cached"
	gitQuietFlagConstant                      = "--quiet"
	gitLogSubcommandConstant                  = "log"
	gitSingleEntryFlagConstant                = "-1"
	gitCommitHashFormatFlagConstant           = "--format=%H"
	gitPathSeparatorArgumentConstant          = "--"
	gitConfigSubcommandConstant               = "config"
	gitUserNameKeyConstant                    = "user.name"
	gitUserEmailKeyConstant                   = "user.email"
	gitAddSubcommandConstant                  = "add"
	gitCommitSubcommandConstant               = "commit"
	gitMessageFlagConstant                    = "-m"
	gitPushSubcommandConstant                 = "push"
	gitSetUpstreamFlagConstant                = "--set-upstream"
	remoteReferenceTemplateConstant           = "%s/%s"
	pushRefspecTemplateConstant               = "%s:%s"
	pushURLTemplateConstant                   = "https://%s:%s@github.com/%s/%s.git"
	coverageBranchSuffixConstant              = "-unit-test-coverage"
	stagedChangesExitCodeConstant             = 1
	repositoryPathFieldNameConstant           = "repository_path"
	remoteNameFieldNameConstant               = "remote_name"
	referenceFieldNameConstant                = "reference"
	pathSpecFieldNameConstant                 = "path_spec"
	commitMessageFieldNameConstant            = "commit_message"
	branchNameFieldNameConstant               = "branch_name"
	ownerFieldNameConstant                    = "owner"
	repositoryNameFieldNameConstant           = "repository_name"
	tokenFieldNameConstant                    = "token"
	requiredValueMessageConstant              = "value required"
	executorNotConfiguredMessageConstant      = "git executor not configured"
	noRemotesConfiguredMessageConstant        = "repository has no configured remotes"
	repositoryOperationErrorTemplateConstant  = "%s operation failed"
	repositoryOperationErrorWithCauseConstant = "%s operation failed: %s"
	invalidRepositoryInputTemplateConstant    = "%s: %s"
	remoteNameOperationNameConstant           = RepositoryOperationName("GetRemoteName")
	trackedFilesOperationNameConstant         = RepositoryOperationName("ListTrackedFiles")
	changedFilesOperationNameConstant         = RepositoryOperationName("ListChangedFiles")
	lastCommitOperationNameConstant           = RepositoryOperationName("GetLastCommitSHA")
	configureIdentityOperationNameConstant    = RepositoryOperationName("ConfigureIdentity")
	stagePathsOperationNameConstant           = RepositoryOperationName("StagePaths")
	stagedChangesOperationNameConstant        = RepositoryOperationName("CheckStagedChanges")
	commitOperationNameConstant               = RepositoryOperationName("Commit")
	pushOperationNameConstant                 = RepositoryOperationName("Push")
)

// GitCommandExecutor exposes the subset of execshell functionality required by RepositoryManager.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager coordinates Git operations through execshell.
type RepositoryManager struct {
	executor GitCommandExecutor
}

var (
	// ErrGitExecutorNotConfigured indicates the RepositoryManager was constructed without a git executor.
	ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrNoRemotesConfigured indicates `git remote -v` produced no entries.
	ErrNoRemotesConfigured = errors.New(noRemotesConfiguredMessageConstant)
)

// InvalidRepositoryInputError indicates validation failures for repository operations.
type InvalidRepositoryInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidRepositoryInputError) Error() string {
	return fmt.Sprintf(invalidRepositoryInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryOperationName captures descriptive names for repository operations.
type RepositoryOperationName string

// RepositoryOperationError wraps execution failures for git operations.
type RepositoryOperationError struct {
	Operation RepositoryOperationName
	Cause     error
}

// Error describes the repository operation failure.
func (operationError RepositoryOperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(repositoryOperationErrorTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(repositoryOperationErrorWithCauseConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying error.
func (operationError RepositoryOperationError) Unwrap() error {
	return operationError.Cause
}

// PushTarget identifies the GitHub repository and branches used for a push.
type PushTarget struct {
	Owner          string
	RepositoryName string
	Token          string
	SourceBranch   string
	TargetBranch   string
}

// PublishRequest describes a commit-and-push of generated test files.
type PublishRequest struct {
	PathSpec      string
	CommitMessage string
	UserName      string
	UserEmail     string
	Target        PushTarget
}

// PublishResult reports what PublishChanges did.
type PublishResult struct {
	Committed    bool
	TargetBranch string
}

// NewRepositoryManager constructs a RepositoryManager for the provided executor.
func NewRepositoryManager(executor GitCommandExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// CoverageBranchName derives the branch that receives generated tests for branchName.
func CoverageBranchName(branchName string) string {
	return strings.TrimSpace(branchName) + coverageBranchSuffixConstant
}

// RemoteName returns the first token of the first `git remote -v` line.
func (manager *RepositoryManager) RemoteName(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return "", pathError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitVerboseFlagConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return "", RepositoryOperationError{Operation: remoteNameOperationNameConstant, Cause: executionError}
	}

	lines := splitOutputLines(executionResult.StandardOutput)
	if len(lines) == 0 {
		return "", RepositoryOperationError{Operation: remoteNameOperationNameConstant, Cause: ErrNoRemotesConfigured}
	}
	fields := strings.Fields(lines[0])
	if len(fields) == 0 {
		return "", RepositoryOperationError{Operation: remoteNameOperationNameConstant, Cause: ErrNoRemotesConfigured}
	}
	return fields[0], nil
}

// TrackedFiles lists every file tracked by the repository in `git ls-files` order.
func (manager *RepositoryManager) TrackedFiles(executionContext context.Context, repositoryPath string) ([]string, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return nil, pathError
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigFlagConstant, gitUnquotedPathsSettingConstant, gitListFilesSubcommandConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: trackedFilesOperationNameConstant, Cause: executionError}
	}
	return splitOutputLines(executionResult.StandardOutput), nil
}

// ChangedFiles lists files whose content differs between remote/baseReference and remote/headReference.
func (manager *RepositoryManager) ChangedFiles(executionContext context.Context, repositoryPath string, remoteName string, baseReference string, headReference string) ([]string, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return nil, pathError
	}

	trimmedRemote := strings.TrimSpace(remoteName)
	if len(trimmedRemote) == 0 {
		return nil, InvalidRepositoryInputError{FieldName: remoteNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedBase := strings.TrimSpace(baseReference)
	trimmedHead := strings.TrimSpace(headReference)
	if len(trimmedBase) == 0 || len(trimmedHead) == 0 {
		return nil, InvalidRepositoryInputError{FieldName: referenceFieldNameConstant, Message: requiredValueMessageConstant}
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments: []string{
			gitConfigFlagConstant, gitUnquotedPathsSettingConstant,
			gitDiffSubcommandConstant, gitNameOnlyFlagConstant,
			fmt.Sprintf(remoteReferenceTemplateConstant, trimmedRemote, trimmedBase),
			fmt.Sprintf(remoteReferenceTemplateConstant, trimmedRemote, trimmedHead),
		},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: changedFilesOperationNameConstant, Cause: executionError}
	}
	return splitOutputLines(executionResult.StandardOutput), nil
}

// LastCommitSHA returns the hash of the last commit touching path, or an empty string when none exists.
func (manager *RepositoryManager) LastCommitSHA(executionContext context.Context, repositoryPath string, path string) (string, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return "", pathError
	}

	arguments := []string{gitLogSubcommandConstant, gitSingleEntryFlagConstant, gitCommitHashFormatFlagConstant}
	if trimmedSubject := strings.TrimSpace(path); len(trimmedSubject) > 0 {
		arguments = append(arguments, gitPathSeparatorArgumentConstant, trimmedSubject)
	}

	executionResult, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return "", RepositoryOperationError{Operation: lastCommitOperationNameConstant, Cause: executionError}
	}

	lines := splitOutputLines(executionResult.StandardOutput)
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Trim(strings.TrimSpace(lines[0]), "\""), nil
}

// ConfigureIdentity sets the repository-scoped commit author identity.
func (manager *RepositoryManager) ConfigureIdentity(executionContext context.Context, repositoryPath string, userName string, userEmail string) error {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return pathError
	}

	settings := [][2]string{
		{gitUserEmailKeyConstant, strings.TrimSpace(userEmail)},
		{gitUserNameKeyConstant, strings.TrimSpace(userName)},
	}
	for _, setting := range settings {
		if len(setting[1]) == 0 {
			continue
		}
		_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
			Arguments:        []string{gitConfigSubcommandConstant, setting[0], setting[1]},
			WorkingDirectory: trimmedPath,
		})
		if executionError != nil {
			return RepositoryOperationError{Operation: configureIdentityOperationNameConstant, Cause: executionError}
		}
	}
	return nil
}

// StagePaths runs `git add` for the provided path specification.
func (manager *RepositoryManager) StagePaths(executionContext context.Context, repositoryPath string, pathSpec string) error {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return pathError
	}
	trimmedPathSpec := strings.TrimSpace(pathSpec)
	if len(trimmedPathSpec) == 0 {
		return InvalidRepositoryInputError{FieldName: pathSpecFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitAddSubcommandConstant, trimmedPathSpec},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: stagePathsOperationNameConstant, Cause: executionError}
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (manager *RepositoryManager) HasStagedChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return false, pathError
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitDiffSubcommandConstant, gitCachedFlagConstant, gitQuietFlagConstant},
		WorkingDirectory: trimmedPath,
	})
	if executionError == nil {
		return false, nil
	}

	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) && failedError.Result.ExitCode == stagedChangesExitCodeConstant {
		return true, nil
	}
	return false, RepositoryOperationError{Operation: stagedChangesOperationNameConstant, Cause: executionError}
}

// Commit records the staged changes with the provided message.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return pathError
	}
	if len(strings.TrimSpace(message)) == 0 {
		return InvalidRepositoryInputError{FieldName: commitMessageFieldNameConstant, Message: requiredValueMessageConstant}
	}

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitCommitSubcommandConstant, gitMessageFlagConstant, message},
		WorkingDirectory: trimmedPath,
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: commitOperationNameConstant, Cause: executionError}
	}
	return nil
}

// Push pushes SourceBranch to TargetBranch on the GitHub repository through a credential-embedded HTTPS URL.
// The token never appears in logs or errors.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, target PushTarget) error {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return pathError
	}

	requiredFields := [][2]string{
		{ownerFieldNameConstant, target.Owner},
		{repositoryNameFieldNameConstant, target.RepositoryName},
		{tokenFieldNameConstant, target.Token},
		{branchNameFieldNameConstant, target.SourceBranch},
		{branchNameFieldNameConstant, target.TargetBranch},
	}
	for _, field := range requiredFields {
		if len(strings.TrimSpace(field[1])) == 0 {
			return InvalidRepositoryInputError{FieldName: field[0], Message: requiredValueMessageConstant}
		}
	}

	owner := strings.TrimSpace(target.Owner)
	token := strings.TrimSpace(target.Token)
	remoteURL := fmt.Sprintf(pushURLTemplateConstant, owner, token, owner, strings.TrimSpace(target.RepositoryName))
	refspec := fmt.Sprintf(pushRefspecTemplateConstant, strings.TrimSpace(target.SourceBranch), strings.TrimSpace(target.TargetBranch))

	_, executionError := manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitPushSubcommandConstant, gitSetUpstreamFlagConstant, remoteURL, refspec},
		WorkingDirectory: trimmedPath,
		SensitiveValues:  []string{token},
	})
	if executionError != nil {
		return RepositoryOperationError{Operation: pushOperationNameConstant, Cause: executionError}
	}
	return nil
}

// PublishChanges configures the commit identity, stages PathSpec, and when anything is staged commits and pushes it.
func (manager *RepositoryManager) PublishChanges(executionContext context.Context, repositoryPath string, request PublishRequest) (PublishResult, error) {
	result := PublishResult{TargetBranch: request.Target.TargetBranch}

	if identityError := manager.ConfigureIdentity(executionContext, repositoryPath, request.UserName, request.UserEmail); identityError != nil {
		return result, identityError
	}
	if stageError := manager.StagePaths(executionContext, repositoryPath, request.PathSpec); stageError != nil {
		return result, stageError
	}

	staged, stagedError := manager.HasStagedChanges(executionContext, repositoryPath)
	if stagedError != nil {
		return result, stagedError
	}
	if !staged {
		return result, nil
	}

	if commitError := manager.Commit(executionContext, repositoryPath, request.CommitMessage); commitError != nil {
		return result, commitError
	}
	result.Committed = true

	if pushError := manager.Push(executionContext, repositoryPath, request.Target); pushError != nil {
		return result, pushError
	}
	return result, nil
}

func requireRepositoryPath(repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return "", InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return trimmedPath, nil
}

// splitOutputLines keeps each line verbatim apart from a trailing carriage return so paths
// with surrounding spaces survive. Blank lines are dropped.
func splitOutputLines(output string) []string {
	lines := strings.Split(output, "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		entry := strings.TrimSuffix(line, "\r")
		if len(strings.TrimSpace(entry)) == 0 {
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}
