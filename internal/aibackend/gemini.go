package aibackend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	geminiSentinelConstant              = "[Gemini API: No valid response]"
	geminiEndpointTemplateConstant      = "%s/%s:generateContent"
	geminiModelsSegmentConstant         = "/models"
	geminiClientErrorTemplateConstant   = "gemini client construction failed: %w"
	geminiMalformedTemplateConstant     = "gemini response could not be converted: %v"
	geminiUndecodableReasonConstant     = "response body is not a generateContent payload"
	geminiNoCandidatesReasonConstant    = "response has no candidates"
	geminiNoPartsReasonConstant         = "first candidate has no content parts"
	geminiEmptyTextReasonConstant       = "first content part has no text"
	geminiSoftFailureMessageConstant    = "gemini response not usable"
	reasonFieldNameConstant             = "reason"
	geminiSoftFailureCauseFieldConstant = "cause"
)

// GeminiBackend sends one generateContent call through the genai client and reads
// candidates[0].content.parts[0].text. A successful response of any other shape is a
// soft failure carrying a sentinel.
type GeminiBackend struct {
	client   *genai.Client
	model    string
	endpoint string
	logger   *zap.Logger
}

// NewGeminiBackend builds a backend calling {baseURL}/{model}:generateContent, where baseURL
// ends in the API version and the models collection, for example .../v1beta/models.
func NewGeminiBackend(baseURL string, apiKey string, model string, httpClient *http.Client, logger *zap.Logger) (*GeminiBackend, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	recordingClient := *httpClient
	nextTransport := recordingClient.Transport
	if nextTransport == nil {
		nextTransport = http.DefaultTransport
	}
	recordingClient.Transport = statusRecordingTransport{next: nextTransport}

	client, clientError := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &recordingClient,
		HTTPOptions: geminiHTTPOptions(baseURL),
	})
	if clientError != nil {
		return nil, fmt.Errorf(geminiClientErrorTemplateConstant, clientError)
	}

	return &GeminiBackend{
		client:   client,
		model:    model,
		endpoint: formatEndpoint(geminiEndpointTemplateConstant, baseURL, model),
		logger:   logger,
	}, nil
}

// GenerateTestCoverage performs the request. Non-2xx statuses and transport failures are errors.
func (backend *GeminiBackend) GenerateTestCoverage(executionContext context.Context, request Request) (Completion, error) {
	recorder := &responseStatusRecorder{}
	recordingContext := context.WithValue(executionContext, responseStatusContextKey{}, recorder)

	response, generateError := backend.generateContent(recordingContext, request)
	if generateError != nil {
		var apiError genai.APIError
		switch {
		case errors.As(generateError, &apiError):
			statusCode := apiError.Code
			if statusCode == 0 {
				statusCode = recorder.statusCode
			}
			return Completion{}, StatusError{Backend: KindGemini, Endpoint: backend.endpoint, StatusCode: statusCode, Body: apiError.Message}
		case recorder.statusCode == 0:
			return Completion{}, transportError(KindGemini, backend.endpoint, generateError)
		case !successfulStatus(recorder.statusCode):
			return Completion{}, StatusError{Backend: KindGemini, Endpoint: backend.endpoint, StatusCode: recorder.statusCode}
		}
		return backend.softFailure(geminiUndecodableReasonConstant, generateError), nil
	}

	text, reason := extractGeminiText(response)
	if len(reason) > 0 {
		return backend.softFailure(reason, nil), nil
	}
	return Completion{Content: text}, nil
}

// generateContent converts panics raised by the response converters on malformed payloads into errors.
func (backend *GeminiBackend) generateContent(executionContext context.Context, request Request) (response *genai.GenerateContentResponse, generateError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			response = nil
			generateError = fmt.Errorf(geminiMalformedTemplateConstant, recovered)
		}
	}()
	contents := []*genai.Content{genai.NewContentFromText(BuildPrompt(request), genai.RoleUser)}
	return backend.client.Models.GenerateContent(executionContext, backend.model, contents, nil)
}

func (backend *GeminiBackend) softFailure(reason string, cause error) Completion {
	fields := []zap.Field{zap.String(reasonFieldNameConstant, reason)}
	if cause != nil {
		fields = append(fields, zap.String(geminiSoftFailureCauseFieldConstant, cause.Error()))
	}
	backend.logger.Warn(geminiSoftFailureMessageConstant, fields...)
	return Completion{SoftFailure: &SoftFailure{Backend: KindGemini, Reason: reason, Sentinel: geminiSentinelConstant}}
}

func extractGeminiText(response *genai.GenerateContentResponse) (string, string) {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0] == nil {
		return "", geminiNoCandidatesReasonConstant
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", geminiNoPartsReasonConstant
	}
	text := content.Parts[0].Text
	if len(text) == 0 {
		return "", geminiEmptyTextReasonConstant
	}
	return text, ""
}

// geminiHTTPOptions splits .../{version}/models into the client's base URL and API version.
// A URL without a path keeps the client's default version.
func geminiHTTPOptions(baseURL string) genai.HTTPOptions {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	trimmedURL = strings.TrimRight(strings.TrimSuffix(trimmedURL, geminiModelsSegmentConstant), "/")

	parsedURL, parseError := url.Parse(trimmedURL)
	if parseError != nil || len(strings.Trim(parsedURL.Path, "/")) == 0 {
		return genai.HTTPOptions{BaseURL: trimmedURL}
	}
	separatorIndex := strings.LastIndex(trimmedURL, "/")
	return genai.HTTPOptions{BaseURL: trimmedURL[:separatorIndex], APIVersion: trimmedURL[separatorIndex+1:]}
}

type responseStatusContextKey struct{}

type responseStatusRecorder struct {
	statusCode int
}

// statusRecordingTransport stores the response status in the recorder carried by the request context.
type statusRecordingTransport struct {
	next http.RoundTripper
}

func (transport statusRecordingTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	response, roundTripError := transport.next.RoundTrip(request)
	if recorder, available := request.Context().Value(responseStatusContextKey{}).(*responseStatusRecorder); available && response != nil {
		recorder.statusCode = response.StatusCode
	}
	return response, roundTripError
}
