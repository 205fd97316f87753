// Package aibackend generates unit test file content through interchangeable language model backends.
package aibackend

import (
	"context"
	"fmt"
)

// Backend produces test file content for a single source file.
type Backend interface {
	GenerateTestCoverage(executionContext context.Context, request Request) (Completion, error)
}

// Request carries the inputs substituted into the generation prompt.
type Request struct {
	SourceCode    string
	ExistingTests string
	SourceCorpus  string
	TestFilePath  string
}

// SoftFailure describes a successful HTTP exchange whose body could not be interpreted.
type SoftFailure struct {
	Backend  Kind
	Reason   string
	Sentinel string
}

// Completion is the outcome of a backend call. Content is empty when SoftFailure is set.
type Completion struct {
	Content     string
	SoftFailure *SoftFailure
}

// Text returns the generated content, or the backend sentinel for a soft failure.
func (completion Completion) Text() string {
	if completion.SoftFailure != nil {
		return completion.SoftFailure.Sentinel
	}
	return completion.Content
}

// Empty reports whether the completion carries no usable test content.
func (completion Completion) Empty() bool {
	return completion.SoftFailure != nil || len(completion.Content) == 0
}

// String summarizes the failure for logs.
func (failure SoftFailure) String() string {
	return fmt.Sprintf("%s: %s", failure.Backend, failure.Reason)
}
