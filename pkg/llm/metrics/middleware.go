package metrics

import (
	"context"
	"time"

	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
	"supportflow/pkg/logx"
	"supportflow/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor counts tokens with the shared tokenizer.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	var promptText string
	for i := range req.Messages {
		promptText += req.Messages[i].Content + "\n"
	}
	promptTokens = utils.CountTokensSimple(promptText)
	completionTokens = utils.CountTokensSimple(resp.Content)

	return promptTokens, completionTokens
}

// Middleware returns a middleware that records metrics for completion requests.
// It tracks request latency, token usage, success/failure rates, and error types.
// The ability label comes from the request context via llm.WithAbility.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				ability := llm.AbilityFromContext(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				errorType := ""
				if err != nil {
					errorType = llmerrors.Classify(err).Type.String()
				}

				recorder.ObserveRequest(
					model,
					ability,
					promptTokens,
					completionTokens,
					err == nil,
					errorType,
					duration,
				)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Debug("model request: model=%s ability=%s tokens=%d+%d status=%s duration=%dms",
						model, ability, promptTokens, completionTokens, status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware passes through errors unchanged
			},
			next.GetModelName,
		)
	}
}
