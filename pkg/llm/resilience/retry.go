// Package resilience provides retry middleware for model-completion clients.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
	"supportflow/pkg/logx"
)

// RetryConfig defines configuration for retry behavior.
type RetryConfig struct {
	MaxRetries    int           // Maximum number of retry attempts
	InitialDelay  time.Duration // Initial delay before first retry
	MaxDelay      time.Duration // Maximum delay between retries
	BackoffFactor float64       // Multiplier for exponential backoff
	Jitter        bool          // Add random jitter to prevent thundering herd
}

// DefaultRetryConfig provides reasonable defaults for retry behavior.
//
//nolint:gochecknoglobals
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// RetryableClient wraps an llm.Client with classification-aware retry logic.
type RetryableClient struct {
	client llm.Client
	logger *logx.Logger
	config RetryConfig
}

// NewRetryableClient creates a new retryable client.
func NewRetryableClient(client llm.Client, config RetryConfig) *RetryableClient {
	return &RetryableClient{
		client: client,
		logger: logx.NewLogger("llm-retry"),
		config: config,
	}
}

// Middleware returns retry behavior as an llm.Middleware for chaining.
func Middleware(config RetryConfig) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return NewRetryableClient(next, config)
	}
}

// Complete implements llm.Client with retry logic.
func (r *RetryableClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.Debug("retry %d/%d after %v: %v", attempt, r.config.MaxRetries, delay, lastErr)

			select {
			case <-ctx.Done():
				return llm.CompletionResponse{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !llmerrors.Classify(err).IsRetryable() {
			return llm.CompletionResponse{}, err
		}
	}

	return llm.CompletionResponse{}, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// GetModelName delegates to the wrapped client.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

func (r *RetryableClient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		// Up to 25% random jitter.
		delay += delay * 0.25 * rand.Float64() //nolint:gosec // Jitter does not need crypto randomness
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether an error would be retried by this middleware.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return llmerrors.Classify(err).IsRetryable()
}
