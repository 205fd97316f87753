package aibackend

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	urlSettingNameConstant   = "llm_url"
	keySettingNameConstant   = "llm_key"
	modelSettingNameConstant = "llm_model"
)

// Kind selects a backend implementation.
type Kind string

// Supported backends.
const (
	KindGemini  Kind = "gemini"
	KindOllama  Kind = "ollama"
	KindChatGPT Kind = "chatgpt"
)

// ParseKind resolves a configured bot name, ignoring case and surrounding whitespace.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindGemini:
		return KindGemini, nil
	case KindOllama:
		return KindOllama, nil
	case KindChatGPT:
		return KindChatGPT, nil
	default:
		return "", UnsupportedKindError{Value: value}
	}
}

// Settings configure backend construction.
type Settings struct {
	Kind       Kind
	URL        string
	Key        string
	Model      string
	HTTPClient *http.Client
}

// RequiredSettings lists the settings the backend cannot run without.
func (kind Kind) RequiredSettings() []string {
	switch kind {
	case KindGemini:
		return []string{urlSettingNameConstant, keySettingNameConstant, modelSettingNameConstant}
	case KindOllama:
		return []string{urlSettingNameConstant, modelSettingNameConstant}
	case KindChatGPT:
		return []string{keySettingNameConstant, modelSettingNameConstant}
	default:
		return nil
	}
}

// New constructs the backend selected by settings.Kind.
func New(settings Settings, logger *zap.Logger) (Backend, error) {
	if missingSetting := settings.firstMissing(); len(missingSetting) > 0 {
		return nil, MissingSettingError{Backend: settings.Kind, Setting: missingSetting}
	}
	httpClient := settings.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch settings.Kind {
	case KindGemini:
		backend, creationError := NewGeminiBackend(settings.URL, settings.Key, settings.Model, httpClient, logger)
		if creationError != nil {
			return nil, creationError
		}
		return backend, nil
	case KindOllama:
		backend, creationError := NewOllamaBackend(settings.URL, settings.Model, httpClient, logger)
		if creationError != nil {
			return nil, creationError
		}
		return backend, nil
	case KindChatGPT:
		return NewChatGPTBackend(settings.Key, settings.Model, settings.URL, httpClient, logger), nil
	default:
		return nil, UnsupportedKindError{Value: string(settings.Kind)}
	}
}

func (settings Settings) firstMissing() string {
	values := map[string]string{
		urlSettingNameConstant:   settings.URL,
		keySettingNameConstant:   settings.Key,
		modelSettingNameConstant: settings.Model,
	}
	for _, settingName := range settings.Kind.RequiredSettings() {
		if len(strings.TrimSpace(values[settingName])) == 0 {
			return settingName
		}
	}
	return ""
}
