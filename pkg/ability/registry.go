// Package ability maps ability names to their dispatch mode and, for local
// abilities, to the function that implements them. The registry is built
// once from pipeline config and read-only afterward.
package ability

import (
	"context"
	"errors"
	"fmt"

	"supportflow/pkg/config"
	"supportflow/pkg/state"
)

// ErrUnknownAbility is returned when a stage names an ability the registry
// has no entry for. This is a configuration bug and fails the run.
var ErrUnknownAbility = errors.New("unknown ability")

// ErrRecoverable marks ability failures the pipeline absorbs: the partial
// result is merged, the error recorded in request state, and the run
// continues.
var ErrRecoverable = errors.New("recoverable ability failure")

// Func executes one local ability against a read-only snapshot.
type Func func(ctx context.Context, snapshot state.Snapshot) (state.Result, error)

// Registry holds the mode of every configured ability plus the
// implementations of the local ones.
type Registry struct {
	modes map[string]config.Mode
	local map[string]Func
}

// NewRegistry indexes the pipeline's abilities by mode. The escalation
// handler is registered as a human ability since it only ever runs as one.
func NewRegistry(p config.Pipeline) *Registry {
	r := &Registry{
		modes: make(map[string]config.Mode),
		local: make(map[string]Func),
	}
	for _, stage := range p.Stages {
		for _, ab := range stage.Abilities {
			r.modes[ab.Name] = ab.Mode
		}
	}
	if p.Escalation.Handler != "" {
		r.modes[p.Escalation.Handler] = config.ModeHuman
	}
	return r
}

// Register binds a local ability name to its implementation.
func (r *Registry) Register(name string, fn Func) {
	r.local[name] = fn
}

// Mode returns the dispatch mode for an ability.
func (r *Registry) Mode(name string) (config.Mode, error) {
	mode, ok := r.modes[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAbility, name)
	}
	return mode, nil
}

// Local returns the implementation of a local ability. A configured local
// ability with no registered function is as fatal as an unknown one.
func (r *Registry) Local(name string) (Func, error) {
	fn, ok := r.local[name]
	if !ok {
		return nil, fmt.Errorf("%w: no local implementation for %s", ErrUnknownAbility, name)
	}
	return fn, nil
}
