// Package metrics provides metrics recording for model-completion operations.
package metrics

import (
	"time"
)

// Recorder defines the interface for recording completion metrics.
type Recorder interface {
	// ObserveRequest records metrics for a completed model request.
	ObserveRequest(
		model, ability string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// ObserveCache records a cache lookup outcome for an ability.
	ObserveCache(ability string, hit bool)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveRequest(
	_, _ string,
	_, _ int,
	_ bool,
	_ string,
	_ time.Duration,
) {
	// No-op
}

// ObserveCache does nothing in the no-op recorder.
func (n *NoopRecorder) ObserveCache(_ string, _ bool) {
	// No-op
}
