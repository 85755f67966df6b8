// Package openai provides the OpenAI implementation of llm.Client using the
// official Go package and its Responses API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
)

// Client wraps the official OpenAI Go client to implement llm.Client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a raw OpenAI client; middleware is applied at a higher level.
func NewClient(apiKey, model string) *Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client using the Responses API.
func (o *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	// The Responses API takes a single input string, so fold the message
	// list into one prompt with role prefixes.
	var inputText string
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case llm.RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		case llm.RoleUser:
			inputText += msg.Content
		}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(err)
	}

	if resp == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}

	content := resp.OutputText()
	if content == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "response contained no text output")
	}

	return llm.CompletionResponse{Content: content}, nil
}

// GetModelName returns the model name for this client.
func (o *Client) GetModelName() string {
	return o.model
}
