package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"supportflow/pkg/llm"
	"supportflow/pkg/logx"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

// Circuit breaker states for managing provider failure patterns.
const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, reject requests
	CircuitHalfOpen                     // Testing if provider recovered
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig defines configuration for circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold   int           // Number of failures before opening circuit
	SuccessThreshold   int           // Number of successes to close circuit from half-open
	Timeout            time.Duration // Time to wait before trying half-open
	MaxConcurrentCalls int           // Maximum concurrent calls in half-open state
}

// DefaultCircuitBreakerConfig provides reasonable defaults.
//
//nolint:gochecknoglobals
var DefaultCircuitBreakerConfig = CircuitBreakerConfig{
	FailureThreshold:   5,
	SuccessThreshold:   3,
	Timeout:            30 * time.Second,
	MaxConcurrentCalls: 3,
}

// CircuitBreakerError represents an error when the circuit is open.
type CircuitBreakerError struct {
	State CircuitState
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

// CircuitBreakerClient wraps an llm.Client with the circuit breaker pattern.
type CircuitBreakerClient struct {
	client          llm.Client
	logger          *logx.Logger
	lastFailureTime time.Time
	config          CircuitBreakerConfig
	mu              sync.RWMutex
	state           CircuitState
	failureCount    int
	successCount    int
	halfOpenCalls   int
}

// NewCircuitBreakerClient creates a new circuit breaker client.
func NewCircuitBreakerClient(client llm.Client, config CircuitBreakerConfig) *CircuitBreakerClient {
	return &CircuitBreakerClient{
		client: client,
		logger: logx.NewLogger("llm-circuit"),
		config: config,
		state:  CircuitClosed,
	}
}

// CircuitMiddleware returns circuit breaking as an llm.Middleware for chaining.
func CircuitMiddleware(config CircuitBreakerConfig) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return NewCircuitBreakerClient(next, config)
	}
}

// Complete implements llm.Client with circuit breaker logic.
func (cb *CircuitBreakerClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := cb.allowRequest(); err != nil {
		return llm.CompletionResponse{}, err
	}

	resp, err := cb.client.Complete(ctx, req)
	cb.recordResult(err == nil)

	if err != nil {
		return resp, fmt.Errorf("completion request failed: %w", err)
	}
	return resp, nil
}

// GetModelName delegates to the wrapped client.
func (cb *CircuitBreakerClient) GetModelName() string {
	return cb.client.GetModelName()
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreakerClient) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetFailureCount returns the current failure count.
func (cb *CircuitBreakerClient) GetFailureCount() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failureCount
}

// Reset manually resets the circuit breaker to closed state.
func (cb *CircuitBreakerClient) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenCalls = 0
}

// allowRequest checks if a request should be allowed based on current state.
func (cb *CircuitBreakerClient) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.Timeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenCalls = 0
			cb.successCount = 0
			return nil
		}
		return &CircuitBreakerError{State: CircuitOpen}

	case CircuitHalfOpen:
		// Allow limited concurrent calls while probing.
		if cb.halfOpenCalls >= cb.config.MaxConcurrentCalls {
			return &CircuitBreakerError{State: CircuitHalfOpen}
		}
		cb.halfOpenCalls++
		return nil

	default:
		return &CircuitBreakerError{State: cb.state}
	}
}

// recordResult records the success or failure of a request.
func (cb *CircuitBreakerClient) recordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.halfOpenCalls--
	}

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreakerClient) onSuccess() {
	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0

	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = CircuitClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.Info("circuit breaker closed after recovery")
		}

	case CircuitOpen:
		// Not reachable, allowRequest rejects while open.
	}
}

func (cb *CircuitBreakerClient) onFailure() {
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = CircuitOpen
			cb.logger.Error("circuit breaker opened after %d failures", cb.failureCount)
		}

	case CircuitHalfOpen:
		// Any failure in half-open immediately reopens the circuit.
		cb.state = CircuitOpen
		cb.successCount = 0
		cb.logger.Error("circuit breaker reopened from HALF_OPEN")

	case CircuitOpen:
	}
}

// NewResilientClient wraps a base client with circuit breaking (inner) and
// retry (outer), so circuit breaker rejections are not retried endlessly.
func NewResilientClient(base llm.Client) llm.Client {
	cbClient := NewCircuitBreakerClient(base, DefaultCircuitBreakerConfig)

	retryConfig := DefaultRetryConfig
	retryConfig.MaxRetries = 2 // Fewer retries when a breaker is present

	return NewRetryableClient(cbClient, retryConfig)
}
