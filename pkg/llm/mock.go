package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient provides a controllable implementation of Client for testing.
// Responses and errors are consumed in order; the call count lets tests
// assert that a cached path never reached the client.
type MockClient struct {
	mu            sync.Mutex
	responses     []CompletionResponse
	responseIndex int
	errors        []error
	errorIndex    int
	calls         int
}

// NewMockClient creates a new mock client with predefined responses.
func NewMockClient(responses []CompletionResponse, errors []error) *MockClient {
	return &MockClient{responses: responses, errors: errors}
}

// NewMockTextClient is a convenience constructor for plain text responses.
func NewMockTextClient(texts ...string) *MockClient {
	responses := make([]CompletionResponse, len(texts))
	for i, text := range texts {
		responses[i] = CompletionResponse{Content: text}
	}
	return NewMockClient(responses, nil)
}

// Complete returns the next predefined response or error.
func (m *MockClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.errorIndex < len(m.errors) && m.errors[m.errorIndex] != nil {
		err := m.errors[m.errorIndex]
		m.errorIndex++
		return CompletionResponse{}, err
	}

	if m.responseIndex >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock client: no more responses")
	}

	resp := m.responses[m.responseIndex]
	m.responseIndex++
	return resp, nil
}

// GetModelName returns a fixed mock model name.
func (m *MockClient) GetModelName() string {
	return "mock"
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
