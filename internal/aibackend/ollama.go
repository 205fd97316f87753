package aibackend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	ollamaChatEndpointTemplateConstant = "%s%s"
	ollamaChatPathConstant             = "/api/chat"
	ollamaSystemRoleConstant           = "system"
	ollamaUserRoleConstant             = "user"
	ollamaScannerInitialBufferConstant = 64 * 1024
	ollamaScannerMaximumLineConstant   = 16 * 1024 * 1024
	ollamaStreamReadTemplateConstant   = "%s response stream read failed: %w"
	ollamaDrainedMessageConstant       = "ollama response drained"
	linesFieldNameConstant             = "lines"
)

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatChunk struct {
	Message *ollamaMessage `json:"message"`
	Done    bool           `json:"done"`
}

// OllamaBackend posts to /api/chat and reads the body as newline-delimited JSON, concatenating
// every message.content. A malformed line fails the whole response.
type OllamaBackend struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOllamaBackend builds a backend for the server at baseURL.
func NewOllamaBackend(baseURL string, model string, httpClient *http.Client, logger *zap.Logger) (*OllamaBackend, error) {
	if httpClient == nil {
		return nil, ErrHTTPClientNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaBackend{
		endpoint:   formatEndpoint(ollamaChatEndpointTemplateConstant, baseURL, ollamaChatPathConstant),
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// GenerateTestCoverage performs the request and drains every line before returning.
func (backend *OllamaBackend) GenerateTestCoverage(executionContext context.Context, request Request) (Completion, error) {
	payload := ollamaChatRequest{
		Model: backend.model,
		Messages: []ollamaMessage{
			{Role: ollamaSystemRoleConstant, Content: systemPromptConstant},
			{Role: ollamaUserRoleConstant, Content: BuildPrompt(request)},
		},
		Stream: false,
	}

	response, sendError := sendJSON(executionContext, backend.httpClient, KindOllama, backend.endpoint, payload, nil)
	if sendError != nil {
		return Completion{}, sendError
	}
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, ollamaScannerInitialBufferConstant), ollamaScannerMaximumLineConstant)

	var builder strings.Builder
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatChunk
		if decodeError := json.Unmarshal(line, &chunk); decodeError != nil {
			return Completion{}, StreamDecodeError{Backend: KindOllama, Line: lineNumber, Cause: decodeError}
		}
		if chunk.Message == nil {
			return Completion{}, StreamDecodeError{Backend: KindOllama, Line: lineNumber}
		}
		builder.WriteString(chunk.Message.Content)
	}
	if scanError := scanner.Err(); scanError != nil {
		return Completion{}, fmt.Errorf(ollamaStreamReadTemplateConstant, KindOllama, scanError)
	}

	backend.logger.Debug(ollamaDrainedMessageConstant,
		zap.Int(linesFieldNameConstant, lineNumber),
		zap.Int(bytesFieldNameConstant, builder.Len()),
	)
	return Completion{Content: builder.String()}, nil
}
