// Package changeset selects the files a generation run evaluates and snapshots the source corpus
// supplied to every model request.
package changeset

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	fullModeNameConstant                   = "full"
	incrementalModeNameConstant            = "incremental"
	corpusEntryPrefixConstant              = "File: "
	corpusReadFailureMessageConstant       = "source file unreadable, corpus entry left empty"
	corpusMissingFileMessageConstant       = "source file not found in working tree"
	resolvedFilesMessageConstant           = "resolved change set"
	corpusBuiltMessageConstant             = "source corpus built"
	remoteResolvedMessageConstant          = "resolved remote"
	repositoryNotConfiguredMessageConstant = "changeset repository not configured"
	fileReaderNotConfiguredMessageConstant = "changeset file reader not configured"
	fileFieldNameConstant                  = "file"
	modeFieldNameConstant                  = "mode"
	countFieldNameConstant                 = "count"
	remoteFieldNameConstant                = "remote"
	sourceRootFieldNameConstant            = "source_root"
	bytesFieldNameConstant                 = "bytes"
)

// Separator joins corpus entries and separates each entry's header from its content.
const Separator = "\n\n----------------------------------------------------------------------\n\n"

// Mode selects how the change set is computed.
type Mode string

// Supported modes.
const (
	ModeFull        Mode = Mode(fullModeNameConstant)
	ModeIncremental Mode = Mode(incrementalModeNameConstant)
)

// ParseMode maps a configured generate mode onto a Mode. Only "full" (any case) selects ModeFull.
func ParseMode(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), fullModeNameConstant) {
		return ModeFull
	}
	return ModeIncremental
}

// Repository lists files through the version control system.
type Repository interface {
	RemoteName(executionContext context.Context, repositoryPath string) (string, error)
	TrackedFiles(executionContext context.Context, repositoryPath string) ([]string, error)
	ChangedFiles(executionContext context.Context, repositoryPath string, remoteName string, baseReference string, headReference string) ([]string, error)
}

// FileReader loads file contents.
type FileReader interface {
	ReadFile(filePath string) ([]byte, error)
}

// ChangeSet is the ordered list of repository-relative paths evaluated during a run.
type ChangeSet []string

// SourceCorpus is the concatenated text of every tracked file under the source root.
type SourceCorpus string

// String returns the corpus text.
func (corpus SourceCorpus) String() string {
	return string(corpus)
}

// Options configure a resolution.
type Options struct {
	RepositoryPath string
	Mode           Mode
	BaseBranch     string
	HeadBranch     string
	SourceRoot     string
}

var (
	// ErrRepositoryNotConfigured indicates the resolver was constructed without a repository.
	ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)
	// ErrFileReaderNotConfigured indicates the resolver was constructed without a file reader.
	ErrFileReaderNotConfigured = errors.New(fileReaderNotConfiguredMessageConstant)
)

// Resolver computes change sets and source corpora.
type Resolver struct {
	repository Repository
	fileReader FileReader
	logger     *zap.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repository Repository, fileReader FileReader, logger *zap.Logger) (*Resolver, error) {
	if repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if fileReader == nil {
		return nil, ErrFileReaderNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{repository: repository, fileReader: fileReader, logger: logger}, nil
}

// Resolve returns every tracked file in ModeFull, otherwise the files differing between
// remote/BaseBranch and remote/HeadBranch in diff order. Any git failure aborts the resolution.
func (resolver *Resolver) Resolve(executionContext context.Context, options Options) (ChangeSet, error) {
	if options.Mode == ModeFull {
		trackedFiles, listError := resolver.repository.TrackedFiles(executionContext, options.RepositoryPath)
		if listError != nil {
			return nil, listError
		}
		resolver.logger.Info(resolvedFilesMessageConstant,
			zap.String(modeFieldNameConstant, string(ModeFull)),
			zap.Int(countFieldNameConstant, len(trackedFiles)),
		)
		return ChangeSet(trackedFiles), nil
	}

	remoteName, remoteError := resolver.repository.RemoteName(executionContext, options.RepositoryPath)
	if remoteError != nil {
		return nil, remoteError
	}
	resolver.logger.Info(remoteResolvedMessageConstant, zap.String(remoteFieldNameConstant, remoteName))

	changedFiles, diffError := resolver.repository.ChangedFiles(executionContext, options.RepositoryPath, remoteName, options.BaseBranch, options.HeadBranch)
	if diffError != nil {
		return nil, diffError
	}
	resolver.logger.Info(resolvedFilesMessageConstant,
		zap.String(modeFieldNameConstant, string(ModeIncremental)),
		zap.Int(countFieldNameConstant, len(changedFiles)),
	)
	return ChangeSet(changedFiles), nil
}

// Corpus snapshots every tracked file whose path starts with SourceRoot. Unreadable files
// contribute an entry with empty content. The snapshot is not refreshed during the run, so
// when the test root lies inside the source root, files written by the run are not reflected.
func (resolver *Resolver) Corpus(executionContext context.Context, options Options) (SourceCorpus, error) {
	trackedFiles, listError := resolver.repository.TrackedFiles(executionContext, options.RepositoryPath)
	if listError != nil {
		return "", listError
	}

	entries := make([]string, 0, len(trackedFiles))
	for _, trackedFile := range trackedFiles {
		if !strings.HasPrefix(trackedFile, options.SourceRoot) {
			continue
		}
		entries = append(entries, corpusEntryPrefixConstant+trackedFile+Separator+resolver.readContent(options.RepositoryPath, trackedFile))
	}

	corpus := SourceCorpus(strings.Join(entries, Separator))
	resolver.logger.Debug(corpusBuiltMessageConstant,
		zap.String(sourceRootFieldNameConstant, options.SourceRoot),
		zap.Int(countFieldNameConstant, len(entries)),
		zap.Int(bytesFieldNameConstant, len(corpus)),
	)
	return corpus, nil
}

func (resolver *Resolver) readContent(repositoryPath string, relativePath string) string {
	contents, readError := resolver.fileReader.ReadFile(ResolvePath(repositoryPath, relativePath))
	if readError == nil {
		return string(contents)
	}
	if errors.Is(readError, fs.ErrNotExist) {
		resolver.logger.Warn(corpusMissingFileMessageConstant, zap.String(fileFieldNameConstant, relativePath))
		return ""
	}
	resolver.logger.Warn(corpusReadFailureMessageConstant, zap.String(fileFieldNameConstant, relativePath), zap.Error(readError))
	return ""
}

// ResolvePath joins a repository-relative path onto the working tree root.
func ResolvePath(repositoryPath string, relativePath string) string {
	if filepath.IsAbs(relativePath) || len(strings.TrimSpace(repositoryPath)) == 0 {
		return relativePath
	}
	return filepath.Join(repositoryPath, filepath.FromSlash(relativePath))
}
