package resilience

import (
	"context"
	"time"

	"supportflow/pkg/llm"
)

// TimeoutMiddleware bounds every completion request with a deadline.
func TimeoutMiddleware(timeout time.Duration) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if timeout <= 0 {
					return next.Complete(ctx, req)
				}
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
