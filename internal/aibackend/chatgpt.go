package aibackend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	chatCompletionsEndpointConstant  = "chat/completions"
	chatStreamStartedMessageConstant = "chat completion stream opened"
	chatStreamDrainedMessageConstant = "chat completion stream drained"
	modelFieldNameConstant           = "model"
	chunksFieldNameConstant          = "chunks"
	bytesFieldNameConstant           = "bytes"
)

// ChatGPTBackend streams a chat completion and concatenates the non-empty content deltas.
type ChatGPTBackend struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewChatGPTBackend builds a streaming chat backend. An empty baseURL keeps the OpenAI default.
func NewChatGPTBackend(apiKey string, model string, baseURL string, httpClient *http.Client, logger *zap.Logger) *ChatGPTBackend {
	configuration := openai.DefaultConfig(apiKey)
	if trimmedBaseURL := strings.TrimRight(strings.TrimSpace(baseURL), "/"); len(trimmedBaseURL) > 0 {
		configuration.BaseURL = trimmedBaseURL
	}
	if httpClient != nil {
		configuration.HTTPClient = httpClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatGPTBackend{client: openai.NewClientWithConfig(configuration), model: model, logger: logger}
}

// GenerateTestCoverage sends one user message and drains the delta stream before returning.
func (backend *ChatGPTBackend) GenerateTestCoverage(executionContext context.Context, request Request) (Completion, error) {
	stream, streamError := backend.client.CreateChatCompletionStream(executionContext, openai.ChatCompletionRequest{
		Model: backend.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(request)},
		},
		Stream: true,
	})
	if streamError != nil {
		return Completion{}, backend.classifyError(streamError)
	}
	defer stream.Close()
	backend.logger.Debug(chatStreamStartedMessageConstant, zap.String(modelFieldNameConstant, backend.model))

	var builder strings.Builder
	chunkCount := 0
	for {
		response, receiveError := stream.Recv()
		if errors.Is(receiveError, io.EOF) {
			break
		}
		if receiveError != nil {
			return Completion{}, backend.classifyError(receiveError)
		}
		chunkCount++
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; len(delta) > 0 {
			builder.WriteString(delta)
		}
	}

	backend.logger.Debug(chatStreamDrainedMessageConstant,
		zap.Int(chunksFieldNameConstant, chunkCount),
		zap.Int(bytesFieldNameConstant, builder.Len()),
	)
	return Completion{Content: builder.String()}, nil
}

func (backend *ChatGPTBackend) classifyError(cause error) error {
	var apiError *openai.APIError
	if errors.As(cause, &apiError) && apiError.HTTPStatusCode != 0 {
		return StatusError{Backend: KindChatGPT, Endpoint: chatCompletionsEndpointConstant, StatusCode: apiError.HTTPStatusCode, Body: apiError.Message}
	}
	var requestError *openai.RequestError
	if errors.As(cause, &requestError) && requestError.HTTPStatusCode != 0 {
		return StatusError{Backend: KindChatGPT, Endpoint: chatCompletionsEndpointConstant, StatusCode: requestError.HTTPStatusCode, Body: requestError.Error()}
	}
	return transportError(KindChatGPT, chatCompletionsEndpointConstant, cause)
}
