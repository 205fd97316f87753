package generate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/covgen/internal/aibackend"
	"github.com/tyemirov/covgen/internal/changeset"
)

const configurationSubtestTemplate = "%d_%s"

func completeConfiguration() Configuration {
	configuration := DefaultConfiguration()
	configuration.Bot = "Gemini"
	configuration.RepoOwner = "octo"
	configuration.RepoName = "calculator"
	configuration.Token = "ghp_secret"
	configuration.BranchName = "feature"
	configuration.BaseBranch = "main"
	configuration.LLMKey = "llm-secret"
	configuration.LLMURL = "https://generativelanguage.example.com"
	configuration.LLMModel = "gemini-pro"
	configuration.BuildTool = "pytest"
	configuration.GenerateMode = "incremental"
	configuration.SourcePath = "src"
	configuration.TestPath = "tests"
	return configuration
}

func TestConfigurationValidateProducesSettings(t *testing.T) {
	configuration := completeConfiguration()
	configuration.TargetExtensions = []string{" .py ", "kt,java", ""}
	configuration.GenerateMode = "FULL"
	configuration.RequestTimeout = 90 * time.Second

	settings, validationError := configuration.Validate()
	require.NoError(t, validationError)
	require.Equal(t, aibackend.KindGemini, settings.Backend.Kind)
	require.Equal(t, "gemini-pro", settings.Backend.Model)
	require.Equal(t, changeset.ModeFull, settings.Mode)
	require.Equal(t, []string{"py", "kt", "java"}, settings.Extensions)
	require.Equal(t, ".", settings.RepositoryPath)
	require.Equal(t, "ai-unit-test-coverage-generator", settings.GitUserName)
	require.Equal(t, "feature", settings.HeadBranch)
	require.Equal(t, "main", settings.BaseBranch)
	require.Equal(t, 90*time.Second, settings.RequestTimeout)
}

func TestConfigurationValidateReportsProblems(t *testing.T) {
	testCases := []struct {
		name            string
		mutate          func(*Configuration)
		expectedMissing []string
		expectedProblem string
	}{
		{
			name:            "missing_core_settings",
			mutate:          func(configuration *Configuration) { configuration.RepoOwner = " "; configuration.Token = "" },
			expectedMissing: []string{"generate.repo_owner", "generate.token"},
		},
		{
			name:            "gemini_requires_key",
			mutate:          func(configuration *Configuration) { configuration.LLMKey = "" },
			expectedMissing: []string{"generate.llm_key"},
		},
		{
			name: "ollama_does_not_require_key",
			mutate: func(configuration *Configuration) {
				configuration.Bot = "ollama"
				configuration.LLMKey = ""
				configuration.LLMURL = ""
			},
			expectedMissing: []string{"generate.llm_url"},
		},
		{
			name:            "unknown_backend",
			mutate:          func(configuration *Configuration) { configuration.Bot = "claude" },
			expectedProblem: "claude",
		},
		{
			name:            "empty_extensions",
			mutate:          func(configuration *Configuration) { configuration.TargetExtensions = []string{" ", ","} },
			expectedProblem: emptyExtensionsProblem,
		},
		{
			name:            "negative_timeout",
			mutate:          func(configuration *Configuration) { configuration.RequestTimeout = -time.Second },
			expectedProblem: negativeTimeoutProblem,
		},
	}

	for testCaseIndex, testCase := range testCases {
		t.Run(fmt.Sprintf(configurationSubtestTemplate, testCaseIndex, testCase.name), func(t *testing.T) {
			configuration := completeConfiguration()
			testCase.mutate(&configuration)

			_, validationError := configuration.Validate()
			require.Error(t, validationError)

			var configurationError ConfigurationError
			require.True(t, errors.As(validationError, &configurationError))
			require.Equal(t, testCase.expectedMissing, configurationError.MissingKeys)
			if len(testCase.expectedProblem) > 0 {
				require.Contains(t, validationError.Error(), testCase.expectedProblem)
			}
		})
	}
}

func TestConfigurationChatGPTAllowsMissingURL(t *testing.T) {
	configuration := completeConfiguration()
	configuration.Bot = "ChatGPT"
	configuration.LLMURL = ""

	settings, validationError := configuration.Validate()
	require.NoError(t, validationError)
	require.Equal(t, aibackend.KindChatGPT, settings.Backend.Kind)
	require.Empty(t, settings.Backend.URL)
}

func TestConfigurationRedactedMasksSecrets(t *testing.T) {
	redacted := completeConfiguration().Redacted()
	require.Equal(t, "***", redacted.Token)
	require.Equal(t, "***", redacted.LLMKey)
	require.Equal(t, "octo", redacted.RepoOwner)

	require.Empty(t, Configuration{}.Redacted().Token)
}

func TestEnvironmentAliasesCoverEveryWorkflowVariable(t *testing.T) {
	aliases := EnvironmentAliases()
	expected := map[string]string{
		"generate.bot":               "BOT",
		"generate.token":             "GITHUB_TOKEN",
		"generate.base_branch":       "MASTER_BRANCH_NAME",
		"generate.target_extensions": "TARGET_EXTENSIONS",
		"generate.src_path":          "SRC_PATH",
		"generate.test_path":         "TEST_PATH",
	}
	for key, environmentName := range expected {
		require.Contains(t, aliases[key], environmentName)
	}
	for key := range aliases {
		_, hasDefault := DefaultValues()[key]
		require.True(t, hasDefault, key)
	}
}
