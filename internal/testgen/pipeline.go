package testgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/buildtool"
	"github.com/tyemirov/covgen/internal/changeset"
	"github.com/tyemirov/covgen/internal/gitrepo"
)

const (
	commitMessageTemplateConstant      = "feat: Add AI-generated unit test coverage for branch #%s"
	commitRevisionTemplateConstant     = "%s\n\nSource revision: %s"
	testPathSpecTemplateConstant       = "%s/*"
	resolverMissingMessageConstant     = "change set resolver not configured"
	orchestratorMissingMessageConstant = "orchestrator not configured"
	builderMissingMessageConstant      = "build runner not configured"
	publisherMissingMessageConstant    = "publisher not configured"
	noChangesMessageConstant           = "no changes between branches"
	foundChangesMessageConstant        = "found changes in files"
	publishSkippedMessageConstant      = "publishing disabled, leaving changes uncommitted"
	nothingStagedMessageConstant       = "no test changes to commit"
	publishedMessageConstant           = "pushed generated tests"
	filesFieldNameConstant             = "files"
	branchFieldNameConstant            = "branch"
	revisionFieldNameConstant          = "source_revision"
)

var (
	// ErrResolverNotConfigured indicates the pipeline was built without a change set resolver.
	ErrResolverNotConfigured = errors.New(resolverMissingMessageConstant)
	// ErrOrchestratorNotConfigured indicates the pipeline was built without an orchestrator.
	ErrOrchestratorNotConfigured = errors.New(orchestratorMissingMessageConstant)
	// ErrBuildRunnerNotConfigured indicates the pipeline was built without a build runner.
	ErrBuildRunnerNotConfigured = errors.New(builderMissingMessageConstant)
	// ErrPublisherNotConfigured indicates the pipeline was built without a publisher.
	ErrPublisherNotConfigured = errors.New(publisherMissingMessageConstant)
)

// ChangeSetResolver selects files and snapshots the source corpus.
type ChangeSetResolver interface {
	Resolve(executionContext context.Context, options changeset.Options) (changeset.ChangeSet, error)
	Corpus(executionContext context.Context, options changeset.Options) (changeset.SourceCorpus, error)
}

// BuildRunner runs the configured build command.
type BuildRunner interface {
	Run(executionContext context.Context, tool string, workingDirectory string) buildtool.Report
}

// Publisher commits and pushes generated tests.
type Publisher interface {
	LastCommitSHA(executionContext context.Context, repositoryPath string, path string) (string, error)
	PublishChanges(executionContext context.Context, repositoryPath string, request gitrepo.PublishRequest) (gitrepo.PublishResult, error)
}

// PublishOptions identify the push target and commit author.
type PublishOptions struct {
	Owner          string
	RepositoryName string
	Token          string
	UserName       string
	UserEmail      string
	Skip           bool
}

// RunOptions configure one pipeline run.
type RunOptions struct {
	RepositoryPath string
	Mode           changeset.Mode
	BaseBranch     string
	HeadBranch     string
	SourceRoot     string
	TestRoot       string
	BuildTool      string
	Publish        PublishOptions
}

// RunResult summarizes a run.
type RunResult struct {
	Mode      changeset.Mode
	Files     []FileResult
	Build     buildtool.Report
	Publish   gitrepo.PublishResult
	Published bool
}

// Count returns how many files ended with outcome.
func (result RunResult) Count(outcome Outcome) int {
	count := 0
	for _, fileResult := range result.Files {
		if fileResult.Outcome == outcome {
			count++
		}
	}
	return count
}

// Pipeline wires change set resolution, per-file generation, the build, and publishing.
type Pipeline struct {
	resolver     ChangeSetResolver
	orchestrator *Orchestrator
	builder      BuildRunner
	publisher    Publisher
	logger       *zap.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(resolver ChangeSetResolver, orchestrator *Orchestrator, builder BuildRunner, publisher Publisher, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case resolver == nil:
		return nil, ErrResolverNotConfigured
	case orchestrator == nil:
		return nil, ErrOrchestratorNotConfigured
	case builder == nil:
		return nil, ErrBuildRunnerNotConfigured
	case publisher == nil:
		return nil, ErrPublisherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{resolver: resolver, orchestrator: orchestrator, builder: builder, publisher: publisher, logger: logger}, nil
}

// Run executes the pipeline. Git failures, backend transport failures and publish failures abort
// the run; written test files are not rolled back. Build failures are only reported.
// The corpus is read once and not refreshed, so overlapping source and test roots see stale tests.
func (pipeline *Pipeline) Run(executionContext context.Context, options RunOptions) (RunResult, error) {
	result := RunResult{Mode: options.Mode}
	changeSetOptions := changeset.Options{
		RepositoryPath: options.RepositoryPath,
		Mode:           options.Mode,
		BaseBranch:     options.BaseBranch,
		HeadBranch:     options.HeadBranch,
		SourceRoot:     options.SourceRoot,
	}

	corpus, corpusError := pipeline.resolver.Corpus(executionContext, changeSetOptions)
	if corpusError != nil {
		return result, corpusError
	}
	files, resolveError := pipeline.resolver.Resolve(executionContext, changeSetOptions)
	if resolveError != nil {
		return result, resolveError
	}
	if len(files) == 0 {
		pipeline.logger.Warn(noChangesMessageConstant)
	} else {
		pipeline.logger.Info(foundChangesMessageConstant, zap.Strings(filesFieldNameConstant, files))
	}

	fileResults, processError := pipeline.orchestrator.Process(executionContext, files, corpus)
	result.Files = fileResults
	if processError != nil {
		return result, processError
	}

	result.Build = pipeline.builder.Run(executionContext, options.BuildTool, options.RepositoryPath)

	if options.Publish.Skip {
		pipeline.logger.Info(publishSkippedMessageConstant)
		return result, nil
	}

	revision, revisionError := pipeline.publisher.LastCommitSHA(executionContext, options.RepositoryPath, options.SourceRoot)
	if revisionError != nil {
		return result, revisionError
	}

	publishResult, publishError := pipeline.publisher.PublishChanges(executionContext, options.RepositoryPath, gitrepo.PublishRequest{
		PathSpec:      TestPathSpec(options.TestRoot),
		CommitMessage: CommitMessage(options.HeadBranch, revision),
		UserName:      options.Publish.UserName,
		UserEmail:     options.Publish.UserEmail,
		Target: gitrepo.PushTarget{
			Owner:          options.Publish.Owner,
			RepositoryName: options.Publish.RepositoryName,
			Token:          options.Publish.Token,
			SourceBranch:   options.HeadBranch,
			TargetBranch:   gitrepo.CoverageBranchName(options.HeadBranch),
		},
	})
	result.Publish = publishResult
	if publishError != nil {
		return result, publishError
	}
	if !publishResult.Committed {
		pipeline.logger.Info(nothingStagedMessageConstant)
		return result, nil
	}

	result.Published = true
	pipeline.logger.Info(publishedMessageConstant,
		zap.String(branchFieldNameConstant, publishResult.TargetBranch),
		zap.String(revisionFieldNameConstant, revision),
	)
	return result, nil
}

// CommitMessage builds the commit message for generated tests on branchName.
func CommitMessage(branchName string, sourceRevision string) string {
	message := fmt.Sprintf(commitMessageTemplateConstant, branchName)
	if trimmedRevision := strings.TrimSpace(sourceRevision); len(trimmedRevision) > 0 {
		message = fmt.Sprintf(commitRevisionTemplateConstant, message, trimmedRevision)
	}
	return message
}

// TestPathSpec returns the git path specification covering everything under testRoot.
func TestPathSpec(testRoot string) string {
	return fmt.Sprintf(testPathSpecTemplateConstant, strings.TrimRight(testRoot, "/"))
}
