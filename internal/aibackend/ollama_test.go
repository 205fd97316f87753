package aibackend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/covgen/internal/aibackend"
)

const ollamaModelConstant = "llama3"

type recordedOllamaRequest struct {
	path    string
	payload struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
}

func newOllamaServer(testInstance *testing.T, statusCode int, body string, recorded *recordedOllamaRequest) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		requestBody, readError := io.ReadAll(request.Body)
		require.NoError(testInstance, readError)
		recorded.path = request.URL.Path
		require.NoError(testInstance, json.Unmarshal(requestBody, &recorded.payload))

		responseWriter.Header().Set("Content-Type", "application/x-ndjson")
		responseWriter.WriteHeader(statusCode)
		_, _ = responseWriter.Write([]byte(body))
	}))
	testInstance.Cleanup(server.Close)
	return server
}

func TestOllamaBackendConcatenatesLines(testInstance *testing.T) {
	body := `{"message":{"role":"assistant","content":"import "},"done":false}` + "\n" +
		"\n" +
		`{"message":{"role":"assistant","content":"unittest"},"done":false}` + "\n" +
		`{"message":{"role":"assistant","content":""},"done":true}` + "\n"
	recorded := &recordedOllamaRequest{}
	server := newOllamaServer(testInstance, http.StatusOK, body, recorded)

	backend, creationError := aibackend.NewOllamaBackend(server.URL+"/", ollamaModelConstant, server.Client(), zap.NewNop())
	require.NoError(testInstance, creationError)

	completion, generateError := backend.GenerateTestCoverage(context.Background(), aibackend.Request{SourceCode: "x = 1"})
	require.NoError(testInstance, generateError)
	require.Equal(testInstance, "import unittest", completion.Text())
	require.Nil(testInstance, completion.SoftFailure)

	require.Equal(testInstance, "/api/chat", recorded.path)
	require.Equal(testInstance, ollamaModelConstant, recorded.payload.Model)
	require.False(testInstance, recorded.payload.Stream)
	require.Len(testInstance, recorded.payload.Messages, 2)
	require.Equal(testInstance, "system", recorded.payload.Messages[0].Role)
	require.Equal(testInstance, "you are a code testing expert", recorded.payload.Messages[0].Content)
	require.Equal(testInstance, "user", recorded.payload.Messages[1].Role)
	require.Contains(testInstance, recorded.payload.Messages[1].Content, "Source Code:\nx = 1\n")
}

func TestOllamaBackendSingleObjectResponse(testInstance *testing.T) {
	server := newOllamaServer(testInstance, http.StatusOK, `{"message":{"role":"assistant","content":"TESTS"},"done":true}`, &recordedOllamaRequest{})
	backend, creationError := aibackend.NewOllamaBackend(server.URL, ollamaModelConstant, server.Client(), zap.NewNop())
	require.NoError(testInstance, creationError)

	completion, generateError := backend.GenerateTestCoverage(context.Background(), aibackend.Request{})
	require.NoError(testInstance, generateError)
	require.Equal(testInstance, "TESTS", completion.Content)
}

func TestOllamaBackendMalformedLineIsFatal(testInstance *testing.T) {
	body := `{"message":{"content":"partial"}}` + "\n" + `{"message":` + "\n"
	server := newOllamaServer(testInstance, http.StatusOK, body, &recordedOllamaRequest{})
	backend, creationError := aibackend.NewOllamaBackend(server.URL, ollamaModelConstant, server.Client(), zap.NewNop())
	require.NoError(testInstance, creationError)

	completion, generateError := backend.GenerateTestCoverage(context.Background(), aibackend.Request{})
	var decodeError aibackend.StreamDecodeError
	require.ErrorAs(testInstance, generateError, &decodeError)
	require.Equal(testInstance, 2, decodeError.Line)
	require.Equal(testInstance, aibackend.KindOllama, decodeError.Backend)
	require.Empty(testInstance, completion.Content)
}

func TestOllamaBackendMissingMessageIsFatal(testInstance *testing.T) {
	server := newOllamaServer(testInstance, http.StatusOK, `{"done":true}`+"\n", &recordedOllamaRequest{})
	backend, creationError := aibackend.NewOllamaBackend(server.URL, ollamaModelConstant, server.Client(), zap.NewNop())
	require.NoError(testInstance, creationError)

	_, generateError := backend.GenerateTestCoverage(context.Background(), aibackend.Request{})
	var decodeError aibackend.StreamDecodeError
	require.ErrorAs(testInstance, generateError, &decodeError)
	require.Equal(testInstance, 1, decodeError.Line)
	require.Contains(testInstance, decodeError.Error(), "has no message")
}

func TestOllamaBackendNonSuccessStatusIsFatal(testInstance *testing.T) {
	server := newOllamaServer(testInstance, http.StatusNotFound, `{"error":"model 'llama3' not found"}`, &recordedOllamaRequest{})
	backend, creationError := aibackend.NewOllamaBackend(server.URL, ollamaModelConstant, server.Client(), zap.NewNop())
	require.NoError(testInstance, creationError)

	_, generateError := backend.GenerateTestCoverage(context.Background(), aibackend.Request{})
	var statusError aibackend.StatusError
	require.ErrorAs(testInstance, generateError, &statusError)
	require.Equal(testInstance, http.StatusNotFound, statusError.StatusCode)
	require.Equal(testInstance, server.URL+"/api/chat", statusError.Endpoint)
	require.Contains(testInstance, statusError.Body, "not found")
}
