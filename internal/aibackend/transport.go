package aibackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	contentTypeHeaderConstant     = "Content-Type"
	jsonContentTypeConstant       = "application/json"
	encodePayloadTemplateConstant = "%s request payload encoding failed: %w"
	buildRequestTemplateConstant  = "%s request construction failed: %w"
)

func formatEndpoint(template string, baseURL string, suffix string) string {
	return fmt.Sprintf(template, strings.TrimRight(strings.TrimSpace(baseURL), "/"), suffix)
}

// sendJSON returns the open response for a 2xx status; callers close the body.
func sendJSON(executionContext context.Context, httpClient *http.Client, backend Kind, endpoint string, payload any, headers map[string]string) (*http.Response, error) {
	encodedPayload, encodeError := json.Marshal(payload)
	if encodeError != nil {
		return nil, fmt.Errorf(encodePayloadTemplateConstant, backend, encodeError)
	}

	httpRequest, requestError := http.NewRequestWithContext(executionContext, http.MethodPost, endpoint, bytes.NewReader(encodedPayload))
	if requestError != nil {
		return nil, fmt.Errorf(buildRequestTemplateConstant, backend, requestError)
	}
	httpRequest.Header.Set(contentTypeHeaderConstant, jsonContentTypeConstant)
	for headerName, headerValue := range headers {
		httpRequest.Header.Set(headerName, headerValue)
	}

	response, doError := httpClient.Do(httpRequest)
	if doError != nil {
		return nil, transportError(backend, endpoint, doError)
	}
	if !successfulStatus(response.StatusCode) {
		defer response.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, statusErrorBodyReadLimitConstant))
		return nil, StatusError{Backend: backend, Endpoint: endpoint, StatusCode: response.StatusCode, Body: string(errorBody)}
	}
	return response, nil
}

func successfulStatus(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}
