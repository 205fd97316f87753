package version_test

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/covgen/internal/execshell"
	"github.com/tyemirov/covgen/internal/gitrepo"
	"github.com/tyemirov/covgen/internal/version"
)

const (
	testWorkingDirectoryConstant = "/workspace"
	versionSubtestTemplate       = "%02d_%s"
)

type stubBuildInfoProvider struct {
	info      *debug.BuildInfo
	available bool
}

func (provider stubBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	if !provider.available {
		return nil, false
	}
	return provider.info, true
}

type stubGitExecutor struct {
	output         string
	executionError error
	recorded       []execshell.CommandDetails
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recorded = append(executor.recorded, details)
	return execshell.ExecutionResult{StandardOutput: executor.output}, executor.executionError
}

var _ gitrepo.GitCommandExecutor = (*stubGitExecutor)(nil)

func TestDetectorVersion(t *testing.T) {
	testCases := []struct {
		name             string
		provider         stubBuildInfoProvider
		executor         *stubGitExecutor
		expectedVersion  string
		expectGitInvoked bool
	}{
		{
			name:            "module_version",
			provider:        stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, available: true},
			executor:        &stubGitExecutor{output: "v0.0.1"},
			expectedVersion: "v1.2.3",
		},
		{
			name: "vcs_revision_dirty",
			provider: stubBuildInfoProvider{info: &debug.BuildInfo{
				Main: debug.Module{Version: "(devel)"},
				Settings: []debug.BuildSetting{
					{Key: "vcs.revision", Value: "0123456789abcdef0123"},
					{Key: "vcs.modified", Value: "true"},
				},
			}, available: true},
			executor:        &stubGitExecutor{output: "v0.0.1"},
			expectedVersion: "devel-0123456789ab-dirty",
		},
		{
			name:             "git_describe_fallback",
			provider:         stubBuildInfoProvider{info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, available: true},
			executor:         &stubGitExecutor{output: "v0.9.0-1-gabcdef\n"},
			expectedVersion:  "v0.9.0-1-gabcdef",
			expectGitInvoked: true,
		},
		{
			name:             "unknown_when_all_sources_fail",
			provider:         stubBuildInfoProvider{available: false},
			executor:         &stubGitExecutor{executionError: errors.New("not a repository")},
			expectedVersion:  "unknown",
			expectGitInvoked: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf(versionSubtestTemplate, testCaseIndex, testCase.name), func(t *testing.T) {
			detector, creationError := version.NewDetector(version.Dependencies{
				BuildInfoProvider: testCase.provider,
				GitExecutor:       testCase.executor,
				WorkingDirectory:  testWorkingDirectoryConstant,
			})
			require.NoError(t, creationError)

			require.Equal(t, testCase.expectedVersion, detector.Version(context.Background()))
			if !testCase.expectGitInvoked {
				require.Empty(t, testCase.executor.recorded)
				return
			}
			require.Len(t, testCase.executor.recorded, 1)
			require.Equal(t, []string{"describe", "--tags", "--always", "--dirty"}, testCase.executor.recorded[0].Arguments)
			require.Equal(t, testWorkingDirectoryConstant, testCase.executor.recorded[0].WorkingDirectory)
			require.Equal(t, "0", testCase.executor.recorded[0].EnvironmentVariables["GIT_TERMINAL_PROMPT"])
		})
	}
}

func TestNilDetectorReportsUnknown(t *testing.T) {
	var detector *version.Detector
	require.Equal(t, "unknown", detector.Version(context.Background()))
}
