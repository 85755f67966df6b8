// Package factory builds provider clients with their middleware chains.
package factory

import (
	"fmt"

	"supportflow/pkg/config"
	"supportflow/pkg/llm"
	"supportflow/pkg/llm/anthropic"
	"supportflow/pkg/llm/google"
	"supportflow/pkg/llm/llmerrors"
	"supportflow/pkg/llm/metrics"
	"supportflow/pkg/llm/ollama"
	"supportflow/pkg/llm/openai"
	"supportflow/pkg/llm/resilience"
	"supportflow/pkg/logx"
)

// Provider identifiers accepted in the model configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Secret names looked up per provider, file first then environment.
//
//nolint:gochecknoglobals
var providerSecretNames = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// NewRawClient creates an unwrapped provider client from the model config.
// A missing API key is reported as an unavailable error so callers can fall
// back to degraded mode instead of failing the run.
func NewRawClient(cfg config.Model) (llm.Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini:
		secretName := providerSecretNames[cfg.Provider]
		apiKey, err := config.GetSecret(secretName)
		if err != nil {
			return nil, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnavailable, err,
				fmt.Sprintf("no API key for provider %s", cfg.Provider))
		}
		switch cfg.Provider {
		case ProviderAnthropic:
			return anthropic.NewClient(apiKey, cfg.Name), nil
		case ProviderOpenAI:
			return openai.NewClient(apiKey, cfg.Name), nil
		default:
			return google.NewClient(apiKey, cfg.Name), nil
		}

	case ProviderOllama:
		host := cfg.Host
		if host == "" {
			host = "http://localhost:11434"
		}
		return ollama.NewClient(host, cfg.Name), nil

	case ProviderMock:
		// The mock provider never reaches a real backend; reporting it as
		// unavailable routes execution through degraded-mode responses.
		return nil, llmerrors.NewError(llmerrors.ErrorTypeUnavailable, "mock provider configured")

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewClient creates a provider client wrapped with the standard middleware
// chain: Metrics -> CircuitBreaker -> Retry -> Timeout -> RawClient.
func NewClient(cfg config.Model, recorder metrics.Recorder, logger *logx.Logger) (llm.Client, error) {
	raw, err := NewRawClient(cfg)
	if err != nil {
		return nil, err
	}

	if recorder == nil {
		recorder = metrics.Nop()
	}

	return llm.Chain(raw,
		metrics.Middleware(recorder, nil, logger),
		resilience.CircuitMiddleware(resilience.DefaultCircuitBreakerConfig),
		resilience.Middleware(resilience.DefaultRetryConfig),
		resilience.TimeoutMiddleware(cfg.Timeout.Std()),
	), nil
}
