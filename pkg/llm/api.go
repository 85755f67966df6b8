// Package llm provides the model-completion collaborator contract consumed
// by the model-backed executor, along with middleware chaining and a
// controllable mock for tests.
package llm

import "context"

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant CompletionRole = "assistant"
)

// TemperatureDefault is the default temperature for ability prompts.
const TemperatureDefault = 0.3

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Messages    []CompletionMessage
	MaxTokens   int
	Temperature float32
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Content    string // Main response text
	StopReason string // Why the response stopped, when the provider reports it
}

// Client defines the interface for model-completion interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this client.
	GetModelName() string
}

// NewCompletionRequest creates a new completion request with default values.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

type abilityContextKey struct{}

// WithAbility tags a context with the ability name driving the completion,
// for middleware labeling.
func WithAbility(ctx context.Context, ability string) context.Context {
	return context.WithValue(ctx, abilityContextKey{}, ability)
}

// AbilityFromContext returns the ability name tagged on the context, if any.
func AbilityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(abilityContextKey{}).(string); ok {
		return v
	}
	return ""
}
