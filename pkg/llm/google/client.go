// Package google provides the Google Gemini implementation of llm.Client.
package google

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
)

// Client wraps the Google GenAI client to implement llm.Client.
type Client struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewClient creates a raw Gemini client; middleware is applied at a higher
// level. The underlying genai client needs a context, so it is created
// lazily on first Complete.
func NewClient(apiKey, model string) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
	}
}

// Complete implements llm.Client.
func (g *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if g.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnavailable, err, "failed to create Gemini client")
		}
		g.client = client
	}

	contents, systemInstruction, err := convertMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message conversion error: %v", err))
	}

	//nolint:gosec // MaxTokens validated at higher layer, overflow acceptable
	maxTokens := int32(in.MaxTokens)
	config := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(err)
	}

	if result == nil || result.Text() == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	return llm.CompletionResponse{
		Content:    result.Text(),
		StopReason: "end_turn",
	}, nil
}

// GetModelName returns the model name for this client.
func (g *Client) GetModelName() string {
	return g.model
}

// convertMessages converts messages to Gemini's Content format, extracting
// system messages into a system instruction. Gemini uses "model" where other
// providers use "assistant".
func convertMessages(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content

	for i := range messages {
		msg := &messages[i]

		if msg.Role == llm.RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n" + msg.Content
			} else {
				systemInstruction = msg.Content
			}
			continue
		}

		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model"
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}

		if msg.Content == "" {
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	return contents, systemInstruction, nil
}
