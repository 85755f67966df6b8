package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for model requests and responses.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a new token counter for the specified model.
// All providers are approximated with the GPT-4 encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}

	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}

	return count
}

// ValidateTokenLimit checks if text fits within the specified token limit.
func (tc *TokenCounter) ValidateTokenLimit(text string, limit int) bool {
	return tc.CountTokens(text) <= limit
}

// TruncateToTokenLimit truncates text to fit within the specified token limit.
// This is a rough approximation, truncating by characters rather than exact
// token boundaries.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	currentTokens := tc.CountTokens(text)
	if currentTokens <= limit {
		return text
	}

	ratio := float64(limit) / float64(currentTokens)
	charLimit := int(float64(len(text)) * ratio * 0.9) // 0.9 safety margin

	if charLimit >= len(text) {
		return text
	}

	return text[:charLimit] + "..."
}

//nolint:gochecknoglobals
var (
	sharedCounterOnce sync.Once
	sharedCounter     *TokenCounter
)

// CountTokensSimple counts tokens without requiring a TokenCounter instance.
// Uses a shared GPT-4 codec.
func CountTokensSimple(text string) int {
	sharedCounterOnce.Do(func() {
		sharedCounter, _ = NewTokenCounter("gpt-4")
	})
	if sharedCounter == nil {
		return len(text) / 4
	}
	return sharedCounter.CountTokens(text)
}
