// Package anthropic provides the Anthropic Claude implementation of llm.Client.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
)

// Client wraps the Anthropic API client to implement llm.Client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClient creates a raw Claude client; middleware is applied at a higher level.
func NewClient(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// prepareMessages adapts a message list to Anthropic API requirements:
// system messages move to the top-level system parameter, consecutive user
// messages merge, and the sequence must end with a user message.
func prepareMessages(messages []llm.CompletionMessage) (systemPrompt string, alternating []llm.CompletionMessage, err error) {
	if len(messages) == 0 {
		return "", nil, fmt.Errorf("message list cannot be empty")
	}

	var systemParts []string
	var rest []llm.CompletionMessage
	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			rest = append(rest, *msg)
		}
	}
	systemPrompt = strings.Join(systemParts, "\n\n")

	if len(rest) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}

	// Merge consecutive user messages into one.
	var merged []llm.CompletionMessage
	var userParts []string
	for i := range rest {
		msg := &rest[i]
		if msg.Role == llm.RoleAssistant {
			if len(userParts) > 0 {
				merged = append(merged, llm.NewUserMessage(strings.Join(userParts, "\n\n")))
				userParts = nil
			}
			merged = append(merged, *msg)
		} else {
			userParts = append(userParts, msg.Content)
		}
	}
	if len(userParts) > 0 {
		merged = append(merged, llm.NewUserMessage(strings.Join(userParts, "\n\n")))
	}

	if merged[0].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", merged[0].Role)
	}
	if merged[len(merged)-1].Role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", merged[len(merged)-1].Role)
	}

	return systemPrompt, merged, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, alternating, err := prepareMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message preparation error: %v", err))
	}

	messages := make([]anthropic.MessageParam, 0, len(alternating))
	for i := range alternating {
		msg := &alternating[i]
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: systemPrompt,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.Classify(err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	return llm.CompletionResponse{
		Content:    text.String(),
		StopReason: string(resp.StopReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *Client) GetModelName() string {
	return string(c.model)
}
