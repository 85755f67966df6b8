package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		Jitter:        false,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	mock := llm.NewMockClient(
		[]llm.CompletionResponse{{Content: "ok"}},
		[]error{
			llmerrors.NewError(llmerrors.ErrorTypeTransient, "blip"),
			llmerrors.NewError(llmerrors.ErrorTypeTransient, "blip"),
		},
	)
	client := NewRetryableClient(mock, fastRetryConfig())

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, mock.Calls())
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeBadPrompt, 400, "malformed prompt"),
	})
	client := NewRetryableClient(mock, fastRetryConfig())

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, mock.Calls())
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt))
}

func TestRetryExhaustion(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	client := NewRetryableClient(mock, fastRetryConfig())

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after")
	assert.Equal(t, 4, mock.Calls())
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	config := fastRetryConfig()
	config.InitialDelay = time.Second

	client := NewRetryableClient(mock, config)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, llm.CompletionRequest{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.Calls())
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.True(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "slow down")))
	assert.False(t, ShouldRetry(llmerrors.NewError(llmerrors.ErrorTypeUnavailable, "no key")))
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	cb := NewCircuitBreakerClient(mock, CircuitBreakerConfig{
		FailureThreshold:   2,
		SuccessThreshold:   1,
		Timeout:            time.Hour,
		MaxConcurrentCalls: 1,
	})

	ctx := context.Background()
	_, err := cb.Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)
	_, err = cb.Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)

	assert.Equal(t, CircuitOpen, cb.GetState())

	// Rejected without touching the underlying client.
	_, err = cb.Complete(ctx, llm.CompletionRequest{})
	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, 2, mock.Calls())
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	mock := llm.NewMockClient(
		[]llm.CompletionResponse{{Content: "recovered"}},
		[]error{llmerrors.NewError(llmerrors.ErrorTypeTransient, "down")},
	)
	cb := NewCircuitBreakerClient(mock, CircuitBreakerConfig{
		FailureThreshold:   1,
		SuccessThreshold:   1,
		Timeout:            time.Millisecond,
		MaxConcurrentCalls: 1,
	})

	ctx := context.Background()
	_, err := cb.Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)
	require.Equal(t, CircuitOpen, cb.GetState())

	time.Sleep(5 * time.Millisecond)

	resp, err := cb.Complete(ctx, llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, CircuitClosed, cb.GetState())
}

func TestCircuitReset(t *testing.T) {
	mock := llm.NewMockClient(nil, []error{
		llmerrors.NewError(llmerrors.ErrorTypeTransient, "down"),
	})
	cb := NewCircuitBreakerClient(mock, CircuitBreakerConfig{
		FailureThreshold:   1,
		SuccessThreshold:   1,
		Timeout:            time.Hour,
		MaxConcurrentCalls: 1,
	})

	_, _ = cb.Complete(context.Background(), llm.CompletionRequest{})
	require.Equal(t, CircuitOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.Equal(t, 0, cb.GetFailureCount())
}
