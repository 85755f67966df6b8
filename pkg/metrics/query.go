// Package metrics provides a query service that aggregates model usage from
// Prometheus: token spend, request outcomes, and cache effectiveness per
// pipeline ability.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// AbilityMetrics is the aggregated model usage of one pipeline ability.
type AbilityMetrics struct {
	Ability          string  `json:"ability"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Requests         int64   `json:"requests"`
	Errors           int64   `json:"errors"`
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
}

// QueryService queries aggregated pipeline metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service against the given
// Prometheus server.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetAbilityMetrics aggregates token and request metrics for one ability
// across all models.
func (q *QueryService) GetAbilityMetrics(ctx context.Context, ability string) (*AbilityMetrics, error) {
	m := &AbilityMetrics{Ability: ability}

	var err error
	if m.PromptTokens, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_tokens_total{ability=%q, type="prompt"})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	if m.CompletionTokens, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_tokens_total{ability=%q, type="completion"})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	m.TotalTokens = m.PromptTokens + m.CompletionTokens

	if m.Requests, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_requests_total{ability=%q})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	if m.Errors, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_requests_total{ability=%q, status="error"})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}

	if m.CacheHits, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_cache_lookups_total{ability=%q, outcome="hit"})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query cache hits: %w", err)
	}
	if m.CacheMisses, err = q.sum(ctx,
		fmt.Sprintf(`sum(model_cache_lookups_total{ability=%q, outcome="miss"})`, ability)); err != nil {
		return nil, fmt.Errorf("failed to query cache misses: %w", err)
	}

	return m, nil
}

// GetMetricsByModel breaks an ability's usage down per model name.
func (q *QueryService) GetMetricsByModel(ctx context.Context, ability string) (map[string]*AbilityMetrics, error) {
	result := make(map[string]*AbilityMetrics)

	modelsResult, _, err := q.queryAPI.Query(ctx,
		fmt.Sprintf(`group by (model) (model_tokens_total{ability=%q})`, ability), time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	var models []string
	if vector, ok := modelsResult.(model.Vector); ok {
		for _, sample := range vector {
			if name, ok := sample.Metric["model"]; ok {
				models = append(models, string(name))
			}
		}
	}

	for _, name := range models {
		m := &AbilityMetrics{Ability: ability}

		if m.PromptTokens, err = q.sum(ctx,
			fmt.Sprintf(`sum(model_tokens_total{ability=%q, model=%q, type="prompt"})`, ability, name)); err != nil {
			return nil, fmt.Errorf("failed to query prompt tokens for model %s: %w", name, err)
		}
		if m.CompletionTokens, err = q.sum(ctx,
			fmt.Sprintf(`sum(model_tokens_total{ability=%q, model=%q, type="completion"})`, ability, name)); err != nil {
			return nil, fmt.Errorf("failed to query completion tokens for model %s: %w", name, err)
		}
		m.TotalTokens = m.PromptTokens + m.CompletionTokens

		if m.Requests, err = q.sum(ctx,
			fmt.Sprintf(`sum(model_requests_total{ability=%q, model=%q})`, ability, name)); err != nil {
			return nil, fmt.Errorf("failed to query requests for model %s: %w", name, err)
		}

		result[name] = m
	}

	return result, nil
}

// sum runs an instant query expected to yield a single-sample vector.
func (q *QueryService) sum(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}
