// Package testgen drives per-file unit test generation and the surrounding build and publish steps.
package testgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/aibackend"
	"github.com/tyemirov/covgen/internal/changeset"
	"github.com/tyemirov/covgen/internal/testpath"
)

const (
	extensionSeparatorConstant                 = "."
	testDirectoryPermissionsConstant           = 0o755
	testFilePermissionsConstant                = 0o644
	noTargetExtensionsMessageConstant          = "no target extensions configured"
	backendNotConfiguredMessageConstant        = "ai backend not configured"
	fileSystemNotConfiguredMessageConstant     = "file system not configured"
	checkingFileMessageConstant                = "checking file"
	skippedFileMessageConstant                 = "skipping file"
	missingTestFileMessageConstant             = "unit test file does not exist or is empty"
	requestingCoverageMessageConstant          = "asking ai for test coverage"
	writtenFileMessageConstant                 = "overwriting unit test file"
	fileFieldNameConstant                      = "file"
	testFileFieldNameConstant                  = "test_file"
	detailFieldNameConstant                    = "detail"
	reasonFieldNameConstant                    = "reason"
	bytesFieldNameConstant                     = "bytes"
	writeTestFileErrorTemplateConstant         = "write unit test file %s: %w"
	createTestDirErrorTemplateConstant         = "create unit test directory %s: %w"
	generateCoverageErrorTemplateConstant      = "generate test coverage for %s: %w"
	unsupportedExtensionDetailTemplateConstant = "unsupported extension %q"
	unreadableSourceDetailTemplateConstant     = "source unreadable: %v"
	emptySourceDetailConstant                  = "source file is empty"
	unmappableDetailConstant                   = "could not determine test file path"
	emptyResponseDetailConstant                = "ai did not return unit test content"
)

// Outcome classifies what happened to one file.
type Outcome string

// Per-file outcomes.
const (
	OutcomeWritten                     Outcome = "written"
	OutcomeSkippedUnsupportedExtension Outcome = "skipped-unsupported-extension"
	OutcomeSkippedUnmappableTestPath   Outcome = "skipped-unmappable-test-path"
	OutcomeSkippedEmptySource          Outcome = "skipped-empty-source"
	OutcomeSkippedEmptyAIResponse      Outcome = "skipped-empty-ai-response"
)

// Skipped reports whether the outcome left the test file untouched.
func (outcome Outcome) Skipped() bool {
	return outcome != OutcomeWritten
}

var (
	// ErrNoTargetExtensions indicates the extension allow-list is empty.
	ErrNoTargetExtensions = errors.New(noTargetExtensionsMessageConstant)
	// ErrBackendNotConfigured indicates the orchestrator was built without a backend.
	ErrBackendNotConfigured = errors.New(backendNotConfiguredMessageConstant)
	// ErrFileSystemNotConfigured indicates the orchestrator was built without a file system.
	ErrFileSystemNotConfigured = errors.New(fileSystemNotConfiguredMessageConstant)
)

// FileSystem abstracts the file operations the orchestrator performs.
type FileSystem interface {
	ReadFile(filePath string) ([]byte, error)
	WriteFile(filePath string, data []byte, permissions os.FileMode) error
	MkdirAll(directoryPath string, permissions os.FileMode) error
}

// OSFileSystem implements FileSystem with the os package.
type OSFileSystem struct{}

// ReadFile reads the named file.
func (OSFileSystem) ReadFile(filePath string) ([]byte, error) {
	return os.ReadFile(filePath)
}

// WriteFile replaces the named file.
func (OSFileSystem) WriteFile(filePath string, data []byte, permissions os.FileMode) error {
	return os.WriteFile(filePath, data, permissions)
}

// MkdirAll creates directoryPath and its parents.
func (OSFileSystem) MkdirAll(directoryPath string, permissions os.FileMode) error {
	return os.MkdirAll(directoryPath, permissions)
}

// OrchestratorConfig describes where sources and tests live and which extensions are processed.
type OrchestratorConfig struct {
	RepositoryPath   string
	SourceRoot       string
	TestRoot         string
	TargetExtensions []string
}

// FileResult records the outcome for one change set entry.
type FileResult struct {
	SourcePath string
	TestPath   string
	Outcome    Outcome
	Detail     string
}

// Orchestrator runs the per-file generation pipeline.
type Orchestrator struct {
	configuration OrchestratorConfig
	extensions    map[string]struct{}
	backend       aibackend.Backend
	fileSystem    FileSystem
	logger        *zap.Logger
}

// NewOrchestrator validates the configuration and builds an Orchestrator.
func NewOrchestrator(configuration OrchestratorConfig, backend aibackend.Backend, fileSystem FileSystem, logger *zap.Logger) (*Orchestrator, error) {
	extensions := NormalizeExtensions(configuration.TargetExtensions)
	if len(extensions) == 0 {
		return nil, ErrNoTargetExtensions
	}
	if backend == nil {
		return nil, ErrBackendNotConfigured
	}
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowed := make(map[string]struct{}, len(extensions))
	for _, extension := range extensions {
		allowed[extension] = struct{}{}
	}
	return &Orchestrator{
		configuration: configuration,
		extensions:    allowed,
		backend:       backend,
		fileSystem:    fileSystem,
		logger:        logger,
	}, nil
}

// NormalizeExtensions trims entries, drops a leading dot, and removes empty entries.
func NormalizeExtensions(rawExtensions []string) []string {
	normalized := make([]string, 0, len(rawExtensions))
	for _, rawExtension := range rawExtensions {
		extension := strings.TrimPrefix(strings.TrimSpace(rawExtension), extensionSeparatorConstant)
		if len(extension) == 0 {
			continue
		}
		normalized = append(normalized, extension)
	}
	return normalized
}

// Process handles every path in order. The first hard failure stops the loop; results gathered
// so far are returned alongside the error.
func (orchestrator *Orchestrator) Process(executionContext context.Context, files changeset.ChangeSet, corpus changeset.SourceCorpus) ([]FileResult, error) {
	results := make([]FileResult, 0, len(files))
	for _, sourcePath := range files {
		result, processError := orchestrator.ProcessFile(executionContext, sourcePath, corpus)
		if processError != nil {
			return results, processError
		}
		results = append(results, result)
	}
	return results, nil
}

// ProcessFile filters, maps, generates, and writes the test file for one source path.
func (orchestrator *Orchestrator) ProcessFile(executionContext context.Context, sourcePath string, corpus changeset.SourceCorpus) (FileResult, error) {
	result := FileResult{SourcePath: sourcePath}
	orchestrator.logger.Debug(checkingFileMessageConstant, zap.String(fileFieldNameConstant, sourcePath))

	extension := strings.TrimPrefix(path.Ext(sourcePath), extensionSeparatorConstant)
	if _, allowed := orchestrator.extensions[extension]; !allowed {
		return orchestrator.skip(result, OutcomeSkippedUnsupportedExtension, fmt.Sprintf(unsupportedExtensionDetailTemplateConstant, extension)), nil
	}

	sourceContent, readError := orchestrator.fileSystem.ReadFile(orchestrator.resolve(sourcePath))
	if readError != nil {
		return orchestrator.skip(result, OutcomeSkippedEmptySource, fmt.Sprintf(unreadableSourceDetailTemplateConstant, readError)), nil
	}
	if len(sourceContent) == 0 {
		return orchestrator.skip(result, OutcomeSkippedEmptySource, emptySourceDetailConstant), nil
	}

	testPath, mapped := testpath.Map(sourcePath, orchestrator.configuration.SourceRoot, orchestrator.configuration.TestRoot)
	if !mapped {
		return orchestrator.skip(result, OutcomeSkippedUnmappableTestPath, unmappableDetailConstant), nil
	}
	result.TestPath = testPath

	resolvedTestPath := orchestrator.resolve(testPath)
	existingTests, existingError := orchestrator.fileSystem.ReadFile(resolvedTestPath)
	if existingError != nil || len(existingTests) == 0 {
		existingTests = nil
		orchestrator.logger.Debug(missingTestFileMessageConstant, zap.String(testFileFieldNameConstant, testPath))
	}

	orchestrator.logger.Info(requestingCoverageMessageConstant, zap.String(fileFieldNameConstant, sourcePath))
	completion, generateError := orchestrator.backend.GenerateTestCoverage(executionContext, aibackend.Request{
		SourceCode:    string(sourceContent),
		ExistingTests: string(existingTests),
		SourceCorpus:  corpus.String(),
		TestFilePath:  testPath,
	})
	if generateError != nil {
		return result, fmt.Errorf(generateCoverageErrorTemplateConstant, sourcePath, generateError)
	}
	if completion.Empty() {
		detail := emptyResponseDetailConstant
		if completion.SoftFailure != nil {
			detail = completion.SoftFailure.String()
		}
		return orchestrator.skip(result, OutcomeSkippedEmptyAIResponse, detail), nil
	}

	if mkdirError := orchestrator.fileSystem.MkdirAll(filepath.Dir(resolvedTestPath), testDirectoryPermissionsConstant); mkdirError != nil {
		return result, fmt.Errorf(createTestDirErrorTemplateConstant, testPath, mkdirError)
	}
	if writeError := orchestrator.fileSystem.WriteFile(resolvedTestPath, []byte(completion.Content), testFilePermissionsConstant); writeError != nil {
		return result, fmt.Errorf(writeTestFileErrorTemplateConstant, testPath, writeError)
	}

	result.Outcome = OutcomeWritten
	orchestrator.logger.Info(writtenFileMessageConstant,
		zap.String(fileFieldNameConstant, sourcePath),
		zap.String(testFileFieldNameConstant, testPath),
		zap.Int(bytesFieldNameConstant, len(completion.Content)),
	)
	return result, nil
}

func (orchestrator *Orchestrator) skip(result FileResult, outcome Outcome, detail string) FileResult {
	result.Outcome = outcome
	result.Detail = detail
	orchestrator.logger.Warn(skippedFileMessageConstant,
		zap.String(fileFieldNameConstant, result.SourcePath),
		zap.String(reasonFieldNameConstant, string(outcome)),
		zap.String(detailFieldNameConstant, detail),
	)
	return result
}

func (orchestrator *Orchestrator) resolve(relativePath string) string {
	return changeset.ResolvePath(orchestrator.configuration.RepositoryPath, relativePath)
}
