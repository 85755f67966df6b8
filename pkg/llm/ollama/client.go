// Package ollama provides the Ollama implementation of llm.Client.
// Ollama is a local runtime for open-source models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
)

// Client wraps the Ollama API client to implement llm.Client.
type Client struct {
	client  *api.Client
	model   string
	hostURL string
}

// NewClient creates a new Ollama client for the given server URL
// (e.g. "http://localhost:11434") and model.
func NewClient(hostURL, model string) *Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil {
		parsedURL, _ = url.Parse("http://localhost:11434")
	}

	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		hostURL: hostURL,
	}
}

// Complete implements llm.Client.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(in.Messages) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		messages = append(messages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	if response.Message.Content == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Ollama")
	}

	return llm.CompletionResponse{
		Content:    response.Message.Content,
		StopReason: stopReason(&response),
	}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}

// stopReason converts Ollama's done_reason to our stop reason format.
func stopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}

	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

// classifyError converts Ollama errors to structured error types. A local
// server that is not running counts as unavailable so callers can fall back
// to degraded mode.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnavailable, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, fmt.Sprintf("Ollama model not found: %s", errStr))
	default:
		return llmerrors.Classify(err)
	}
}
