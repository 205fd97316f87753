package aibackend

import (
	"errors"
	"fmt"
	"strings"
)

const (
	statusErrorTemplateConstant            = "%s request to %s failed with HTTP %d"
	statusErrorBodyTemplateConstant        = "%s: %s"
	streamDecodeErrorTemplateConstant      = "%s response line %d is not valid JSON: %v"
	streamMissingFieldTemplateConstant     = "%s response line %d has no message"
	unsupportedKindTemplateConstant        = "unsupported bot %q (expected one of gemini, ollama, chatgpt)"
	missingSettingTemplateConstant         = "%s backend requires %s"
	transportErrorTemplateConstant         = "%s request to %s failed: %w"
	statusErrorBodyReadLimitConstant       = 1 << 20
	httpClientNotConfiguredMessageConstant = "http client not configured"
)

// ErrHTTPClientNotConfigured indicates a REST backend was built without an HTTP client.
var ErrHTTPClientNotConfigured = errors.New(httpClientNotConfiguredMessageConstant)

// StatusError reports a non-2xx HTTP response. It aborts the run.
type StatusError struct {
	Backend    Kind
	Endpoint   string
	StatusCode int
	Body       string
}

// Error describes the failing request and its status followed by the whole response body.
func (statusError StatusError) Error() string {
	message := fmt.Sprintf(statusErrorTemplateConstant, statusError.Backend, statusError.Endpoint, statusError.StatusCode)
	body := strings.TrimSpace(statusError.Body)
	if len(body) == 0 {
		return message
	}
	return fmt.Sprintf(statusErrorBodyTemplateConstant, message, body)
}

// StreamDecodeError reports a malformed chunk in a line-delimited JSON response. It aborts the run.
type StreamDecodeError struct {
	Backend Kind
	Line    int
	Cause   error
}

// Error names the offending line.
func (decodeError StreamDecodeError) Error() string {
	if decodeError.Cause == nil {
		return fmt.Sprintf(streamMissingFieldTemplateConstant, decodeError.Backend, decodeError.Line)
	}
	return fmt.Sprintf(streamDecodeErrorTemplateConstant, decodeError.Backend, decodeError.Line, decodeError.Cause)
}

// Unwrap exposes the JSON error.
func (decodeError StreamDecodeError) Unwrap() error {
	return decodeError.Cause
}

// UnsupportedKindError reports an unrecognized backend selector.
type UnsupportedKindError struct {
	Value string
}

// Error describes the rejected selector.
func (kindError UnsupportedKindError) Error() string {
	return fmt.Sprintf(unsupportedKindTemplateConstant, kindError.Value)
}

// MissingSettingError reports a backend setting required by the selected backend.
type MissingSettingError struct {
	Backend Kind
	Setting string
}

// Error names the backend and setting.
func (settingError MissingSettingError) Error() string {
	return fmt.Sprintf(missingSettingTemplateConstant, settingError.Backend, settingError.Setting)
}

func transportError(backend Kind, endpoint string, cause error) error {
	return fmt.Errorf(transportErrorTemplateConstant, backend, endpoint, cause)
}
