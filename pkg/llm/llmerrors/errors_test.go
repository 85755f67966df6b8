package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		err      string
		expected ErrorType
	}{
		{"request failed, status code: 401, body: ...", ErrorTypeUnavailable},
		{"request failed, status code: 429, body: ...", ErrorTypeRateLimit},
		{"request failed, status code: 400, body: ...", ErrorTypeBadPrompt},
		{"request failed, status code: 503, body: ...", ErrorTypeTransient},
	}

	for _, tt := range tests {
		classified := Classify(errors.New(tt.err))
		assert.Equal(t, tt.expected, classified.Type, "error: %s", tt.err)
	}
}

func TestClassifyTextPatterns(t *testing.T) {
	assert.Equal(t, ErrorTypeUnavailable, Classify(errors.New("dial tcp: connection refused")).Type)
	assert.Equal(t, ErrorTypeTransient, Classify(errors.New("unexpected EOF")).Type)
	assert.Equal(t, ErrorTypeRateLimit, Classify(errors.New("quota exceeded for project")).Type)
}

func TestClassifyContextErrors(t *testing.T) {
	assert.Equal(t, ErrorTypeTransient, Classify(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeTransient, Classify(context.Canceled).Type)
}

func TestClassifyPreservesClassifiedErrors(t *testing.T) {
	original := NewError(ErrorTypeUnavailable, "no credentials")
	wrapped := fmt.Errorf("completing prompt: %w", original)
	assert.Same(t, original, Classify(wrapped))
}

func TestRetryability(t *testing.T) {
	assert.False(t, NewError(ErrorTypeUnavailable, "").IsRetryable())
	assert.False(t, NewError(ErrorTypeBadPrompt, "").IsRetryable())
	assert.True(t, NewError(ErrorTypeRateLimit, "").IsRetryable())
	assert.True(t, NewError(ErrorTypeTransient, "").IsRetryable())
}

func TestIsUnavailableThroughWrapping(t *testing.T) {
	err := fmt.Errorf("atlas: %w", NewError(ErrorTypeUnavailable, "no API key"))
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsUnavailable(errors.New("plain error")))
}
