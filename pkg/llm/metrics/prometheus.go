package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheTotal      *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder registered on the default registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith creates a recorder registered on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_requests_total",
				Help: "Total number of model requests by model, ability, and status",
			},
			[]string{"model", "ability", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_tokens_total",
				Help: "Total number of tokens used in model requests",
			},
			[]string{"model", "ability", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "model_request_duration_seconds",
				Help:    "Duration of model requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "ability"},
		),
		cacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_cache_lookups_total",
				Help: "Model response cache lookups by ability and outcome",
			},
			[]string{"ability", "outcome"},
		),
	}
}

// ObserveRequest records metrics for a completed model request.
func (p *PrometheusRecorder) ObserveRequest(
	model, ability string,
	promptTokens, completionTokens int,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := statusSuccess
	if !success {
		status = statusError
	}

	p.requestsTotal.WithLabelValues(model, ability, status, errorType).Inc()

	// Token counts are only meaningful on success.
	if success {
		p.tokensTotal.WithLabelValues(model, ability, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, ability, "completion").Add(float64(completionTokens))
	}

	p.requestDuration.WithLabelValues(model, ability).Observe(duration.Seconds())
}

// ObserveCache records a cache lookup outcome for an ability.
func (p *PrometheusRecorder) ObserveCache(ability string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheTotal.WithLabelValues(ability, outcome).Inc()
}
