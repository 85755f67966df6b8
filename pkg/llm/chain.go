package llm

import "context"

// Middleware represents a function that wraps a Client with additional
// behavior. Middlewares are composed using Chain() into a processing pipeline.
type Middleware func(next Client) Client

// clientFunc is an adapter that allows plain functions to implement Client.
type clientFunc struct {
	complete  func(context.Context, CompletionRequest) (CompletionResponse, error)
	modelName func() string
}

func (f clientFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f.complete(ctx, req)
}

func (f clientFunc) GetModelName() string {
	return f.modelName()
}

// WrapClient creates a Client from the provided function implementations.
// This is a helper for middleware implementations that wrap behavior.
func WrapClient(
	complete func(context.Context, CompletionRequest) (CompletionResponse, error),
	modelName func() string,
) Client {
	return clientFunc{complete: complete, modelName: modelName}
}

// Chain composes multiple middlewares around a base Client.
// Middlewares are applied in order, with earlier middlewares outermost:
//
//	Chain(client, mw1, mw2) => mw1 -> mw2 -> client
func Chain(base Client, middlewares ...Middleware) Client {
	client := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}
