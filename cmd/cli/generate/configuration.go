package generate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tyemirov/covgen/internal/aibackend"
	"github.com/tyemirov/covgen/internal/changeset"
	"github.com/tyemirov/covgen/internal/testgen"
)

const (
	// ConfigurationSectionKey is the top-level key holding generate settings.
	ConfigurationSectionKey = "generate"

	botKey              = "bot"
	repoOwnerKey        = "repo_owner"
	repoNameKey         = "repo_name"
	tokenKey            = "token"
	branchNameKey       = "branch_name"
	baseBranchKey       = "base_branch"
	llmKeyKey           = "llm_key"
	llmURLKey           = "llm_url"
	llmModelKey         = "llm_model"
	targetExtensionsKey = "target_extensions"
	buildToolKey        = "build_tool"
	generateModeKey     = "generate_mode"
	sourcePathKey       = "src_path"
	testPathKey         = "test_path"
	repositoryPathKey   = "repository_path"
	gitUserNameKey      = "git_user_name"
	gitUserEmailKey     = "git_user_email"
	skipPublishKey      = "skip_publish"
	requestTimeoutKey   = "request_timeout"

	defaultBot              = "gemini"
	defaultRepositoryPath   = "."
	defaultGitUserName      = "ai-unit-test-coverage-generator"
	defaultGitUserEmail     = "ai-unit-test-coverage-generator@users.noreply.github.com"
	redactedSecretValue     = "***"
	missingKeysProblemText  = "missing required settings: %s"
	negativeTimeoutProblem  = "request_timeout must not be negative"
	emptyExtensionsProblem  = "target_extensions must list at least one extension"
	configurationErrorJoint = "; "
	configurationErrorText  = "invalid generate configuration: %s"
)

// Configuration captures the raw generate settings as decoded from configuration and environment.
type Configuration struct {
	Bot              string        `mapstructure:"bot" yaml:"bot"`
	RepoOwner        string        `mapstructure:"repo_owner" yaml:"repo_owner"`
	RepoName         string        `mapstructure:"repo_name" yaml:"repo_name"`
	Token            string        `mapstructure:"token" yaml:"token"`
	BranchName       string        `mapstructure:"branch_name" yaml:"branch_name"`
	BaseBranch       string        `mapstructure:"base_branch" yaml:"base_branch"`
	LLMKey           string        `mapstructure:"llm_key" yaml:"llm_key"`
	LLMURL           string        `mapstructure:"llm_url" yaml:"llm_url"`
	LLMModel         string        `mapstructure:"llm_model" yaml:"llm_model"`
	TargetExtensions []string      `mapstructure:"target_extensions" yaml:"target_extensions"`
	BuildTool        string        `mapstructure:"build_tool" yaml:"build_tool"`
	GenerateMode     string        `mapstructure:"generate_mode" yaml:"generate_mode"`
	SourcePath       string        `mapstructure:"src_path" yaml:"src_path"`
	TestPath         string        `mapstructure:"test_path" yaml:"test_path"`
	RepositoryPath   string        `mapstructure:"repository_path" yaml:"repository_path"`
	GitUserName      string        `mapstructure:"git_user_name" yaml:"git_user_name"`
	GitUserEmail     string        `mapstructure:"git_user_email" yaml:"git_user_email"`
	SkipPublish      bool          `mapstructure:"skip_publish" yaml:"skip_publish"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// DefaultConfiguration provides the baseline generate settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Bot:              defaultBot,
		TargetExtensions: []string{"kt", "java", "py", "js", "swift", "c", "h"},
		RepositoryPath:   defaultRepositoryPath,
		GitUserName:      defaultGitUserName,
		GitUserEmail:     defaultGitUserEmail,
	}
}

// DefaultValues exposes DefaultConfiguration as loader defaults keyed by configuration path.
func DefaultValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		qualifiedKey(botKey):              defaults.Bot,
		qualifiedKey(targetExtensionsKey): defaults.TargetExtensions,
		qualifiedKey(repositoryPathKey):   defaults.RepositoryPath,
		qualifiedKey(gitUserNameKey):      defaults.GitUserName,
		qualifiedKey(gitUserEmailKey):     defaults.GitUserEmail,
		qualifiedKey(skipPublishKey):      false,
		qualifiedKey(requestTimeoutKey):   "0s",
		qualifiedKey(repoOwnerKey):        "",
		qualifiedKey(repoNameKey):         "",
		qualifiedKey(tokenKey):            "",
		qualifiedKey(branchNameKey):       "",
		qualifiedKey(baseBranchKey):       "",
		qualifiedKey(llmKeyKey):           "",
		qualifiedKey(llmURLKey):           "",
		qualifiedKey(llmModelKey):         "",
		qualifiedKey(buildToolKey):        "",
		qualifiedKey(generateModeKey):     "",
		qualifiedKey(sourcePathKey):       "",
		qualifiedKey(testPathKey):         "",
	}
}

// EnvironmentAliases maps generate configuration keys to the plain environment variables
// used by CI workflows.
func EnvironmentAliases() map[string][]string {
	return map[string][]string{
		qualifiedKey(botKey):              {"BOT"},
		qualifiedKey(repoOwnerKey):        {"REPO_OWNER"},
		qualifiedKey(repoNameKey):         {"REPO_NAME"},
		qualifiedKey(tokenKey):            {"GITHUB_TOKEN"},
		qualifiedKey(branchNameKey):       {"BRANCH_NAME"},
		qualifiedKey(baseBranchKey):       {"MASTER_BRANCH_NAME"},
		qualifiedKey(llmKeyKey):           {"LLM_KEY"},
		qualifiedKey(llmURLKey):           {"LLM_URL"},
		qualifiedKey(llmModelKey):         {"LLM_MODEL"},
		qualifiedKey(targetExtensionsKey): {"TARGET_EXTENSIONS"},
		qualifiedKey(buildToolKey):        {"BUILD_TOOL"},
		qualifiedKey(generateModeKey):     {"GENERATE_MODE"},
		qualifiedKey(sourcePathKey):       {"SRC_PATH"},
		qualifiedKey(testPathKey):         {"TEST_PATH"},
		qualifiedKey(gitUserNameKey):      {"GIT_USER_NAME"},
		qualifiedKey(gitUserEmailKey):     {"GIT_USER_EMAIL"},
		qualifiedKey(skipPublishKey):      {"SKIP_PUBLISH"},
	}
}

func qualifiedKey(key string) string {
	return ConfigurationSectionKey + "." + key
}

// Sanitize trims values and fills defaults for optional settings.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Bot = strings.TrimSpace(configuration.Bot)
	if len(sanitized.Bot) == 0 {
		sanitized.Bot = defaults.Bot
	}
	sanitized.RepoOwner = strings.TrimSpace(configuration.RepoOwner)
	sanitized.RepoName = strings.TrimSpace(configuration.RepoName)
	sanitized.Token = strings.TrimSpace(configuration.Token)
	sanitized.BranchName = strings.TrimSpace(configuration.BranchName)
	sanitized.BaseBranch = strings.TrimSpace(configuration.BaseBranch)
	sanitized.LLMKey = strings.TrimSpace(configuration.LLMKey)
	sanitized.LLMURL = strings.TrimSpace(configuration.LLMURL)
	sanitized.LLMModel = strings.TrimSpace(configuration.LLMModel)
	sanitized.TargetExtensions = testgen.NormalizeExtensions(splitListEntries(configuration.TargetExtensions))
	sanitized.BuildTool = strings.TrimSpace(configuration.BuildTool)
	sanitized.GenerateMode = strings.TrimSpace(configuration.GenerateMode)
	sanitized.SourcePath = strings.TrimSpace(configuration.SourcePath)
	sanitized.TestPath = strings.TrimSpace(configuration.TestPath)

	sanitized.RepositoryPath = strings.TrimSpace(configuration.RepositoryPath)
	if len(sanitized.RepositoryPath) == 0 {
		sanitized.RepositoryPath = defaults.RepositoryPath
	}
	sanitized.GitUserName = strings.TrimSpace(configuration.GitUserName)
	if len(sanitized.GitUserName) == 0 {
		sanitized.GitUserName = defaults.GitUserName
	}
	sanitized.GitUserEmail = strings.TrimSpace(configuration.GitUserEmail)
	if len(sanitized.GitUserEmail) == 0 {
		sanitized.GitUserEmail = defaults.GitUserEmail
	}
	return sanitized
}

// Redacted returns a copy with credentials masked for display.
func (configuration Configuration) Redacted() Configuration {
	redacted := configuration
	if len(redacted.Token) > 0 {
		redacted.Token = redactedSecretValue
	}
	if len(redacted.LLMKey) > 0 {
		redacted.LLMKey = redactedSecretValue
	}
	return redacted
}

// splitListEntries accepts both list and comma-joined forms of an extension list.
func splitListEntries(values []string) []string {
	entries := make([]string, 0, len(values))
	for _, value := range values {
		entries = append(entries, strings.Split(value, ",")...)
	}
	return entries
}

// Settings is the validated, immutable view of Configuration used for one run.
type Settings struct {
	Backend        aibackend.Settings
	Mode           changeset.Mode
	RepositoryPath string
	Owner          string
	RepositoryName string
	Token          string
	HeadBranch     string
	BaseBranch     string
	SourceRoot     string
	TestRoot       string
	Extensions     []string
	BuildTool      string
	GitUserName    string
	GitUserEmail   string
	SkipPublish    bool
	RequestTimeout time.Duration
}

// ConfigurationError reports every problem found while validating Configuration.
type ConfigurationError struct {
	MissingKeys []string
	Problems    []string
}

// Error lists missing keys and other problems.
func (configurationError ConfigurationError) Error() string {
	details := make([]string, 0, len(configurationError.Problems)+1)
	if len(configurationError.MissingKeys) > 0 {
		details = append(details, fmt.Sprintf(missingKeysProblemText, strings.Join(configurationError.MissingKeys, ", ")))
	}
	details = append(details, configurationError.Problems...)
	return fmt.Sprintf(configurationErrorText, strings.Join(details, configurationErrorJoint))
}

// Validate checks required settings and produces Settings. Every problem is reported at once.
func (configuration Configuration) Validate() (Settings, error) {
	sanitized := configuration.Sanitize()
	validationError := ConfigurationError{}

	requiredValues := map[string]string{
		repoOwnerKey:    sanitized.RepoOwner,
		repoNameKey:     sanitized.RepoName,
		tokenKey:        sanitized.Token,
		branchNameKey:   sanitized.BranchName,
		baseBranchKey:   sanitized.BaseBranch,
		buildToolKey:    sanitized.BuildTool,
		generateModeKey: sanitized.GenerateMode,
		sourcePathKey:   sanitized.SourcePath,
		testPathKey:     sanitized.TestPath,
	}

	kind, kindError := aibackend.ParseKind(sanitized.Bot)
	if kindError != nil {
		validationError.Problems = append(validationError.Problems, kindError.Error())
	} else {
		backendValues := map[string]string{
			llmURLKey:   sanitized.LLMURL,
			llmKeyKey:   sanitized.LLMKey,
			llmModelKey: sanitized.LLMModel,
		}
		for _, settingName := range kind.RequiredSettings() {
			requiredValues[settingName] = backendValues[settingName]
		}
	}

	for key, value := range requiredValues {
		if len(value) == 0 {
			validationError.MissingKeys = append(validationError.MissingKeys, qualifiedKey(key))
		}
	}
	sort.Strings(validationError.MissingKeys)

	if len(sanitized.TargetExtensions) == 0 {
		validationError.Problems = append(validationError.Problems, emptyExtensionsProblem)
	}
	if sanitized.RequestTimeout < 0 {
		validationError.Problems = append(validationError.Problems, negativeTimeoutProblem)
	}

	if len(validationError.MissingKeys) > 0 || len(validationError.Problems) > 0 {
		return Settings{}, validationError
	}

	return Settings{
		Backend: aibackend.Settings{
			Kind:  kind,
			URL:   sanitized.LLMURL,
			Key:   sanitized.LLMKey,
			Model: sanitized.LLMModel,
		},
		Mode:           changeset.ParseMode(sanitized.GenerateMode),
		RepositoryPath: sanitized.RepositoryPath,
		Owner:          sanitized.RepoOwner,
		RepositoryName: sanitized.RepoName,
		Token:          sanitized.Token,
		HeadBranch:     sanitized.BranchName,
		BaseBranch:     sanitized.BaseBranch,
		SourceRoot:     sanitized.SourcePath,
		TestRoot:       sanitized.TestPath,
		Extensions:     append([]string(nil), sanitized.TargetExtensions...),
		BuildTool:      sanitized.BuildTool,
		GitUserName:    sanitized.GitUserName,
		GitUserEmail:   sanitized.GitUserEmail,
		SkipPublish:    sanitized.SkipPublish,
		RequestTimeout: sanitized.RequestTimeout,
	}, nil
}
