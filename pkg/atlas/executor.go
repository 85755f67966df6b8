package atlas

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"supportflow/pkg/config"
	"supportflow/pkg/llm"
	"supportflow/pkg/llm/llmerrors"
	"supportflow/pkg/llm/metrics"
	"supportflow/pkg/logx"
	"supportflow/pkg/normalize"
	"supportflow/pkg/state"
)

// Abilities whose model output is a plain string rather than JSON.
//
//nolint:gochecknoglobals
var stringAbilities = map[string]bool{
	"clarify_question": true,
	"extract_answer":   true,
}

// Outcome describes how a model-backed ability was served.
type Outcome struct {
	Result   state.Result
	Cached   bool  // served from the response cache
	Degraded bool  // served by a canned fallback
	Cause    error // recoverable cause when Degraded
}

// Executor runs model-backed abilities: it renders the ability prompt from
// the request snapshot, consults the response cache, calls the completion
// client, and normalizes whatever comes back. When the provider is
// unreachable it serves canned degraded responses and keeps the pipeline
// moving.
type Executor struct {
	client    llm.Client
	renderer  *Renderer
	cache     *Cache
	recorder  metrics.Recorder
	logger    *logx.Logger
	cfg       config.Model
	threshold int

	mu       sync.Mutex
	degraded bool
}

// NewExecutor creates an executor for the given completion client. A nil
// client starts in degraded mode.
func NewExecutor(client llm.Client, cfg config.Model, threshold int, recorder metrics.Recorder) (*Executor, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return &Executor{
		client:    client,
		renderer:  renderer,
		cache:     NewCache(cfg.CacheTTL.Std()),
		recorder:  recorder,
		logger:    logx.NewLogger("atlas"),
		cfg:       cfg,
		threshold: threshold,
		degraded:  client == nil,
	}, nil
}

// Cache exposes the response cache for seeding and flushing.
func (e *Executor) Cache() *Cache {
	return e.cache
}

// Degraded reports whether the executor has latched into degraded mode.
func (e *Executor) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// Execute runs one model-backed ability against the request snapshot.
// Errors are returned only for faults that must fail the stage: broken
// prompt templates and provider rejections of the request itself. Anything
// else degrades to a canned response with the cause reported in the Outcome.
func (e *Executor) Execute(ctx context.Context, ability string, snapshot state.Snapshot) (Outcome, error) {
	tmpl := AbilityTemplate(ability)
	if !e.renderer.Has(tmpl) {
		return Outcome{}, fmt.Errorf("%w: no prompt for ability %s", ErrPromptTemplate, ability)
	}

	stateJSON, err := json.Marshal(snapshotPayload(snapshot))
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal snapshot for %s: %w", ability, err)
	}

	prompt, err := e.renderer.Render(tmpl, &TemplateData{
		State:     string(stateJSON),
		Threshold: e.threshold,
	})
	if err != nil {
		return Outcome{}, err
	}

	key := Key(ability, prompt)
	if content, ok := e.cache.Get(key); ok {
		e.recorder.ObserveCache(ability, true)
		return Outcome{Result: e.normalizeFor(ability, content), Cached: true}, nil
	}
	e.recorder.ObserveCache(ability, false)

	if e.Degraded() {
		return e.serveDegraded(ability, snapshot, nil), nil
	}

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage(prompt)})
	if e.cfg.MaxTokens > 0 {
		req.MaxTokens = e.cfg.MaxTokens
	}
	req.Temperature = e.cfg.Temperature

	resp, err := e.client.Complete(llm.WithAbility(ctx, ability), req)
	if err != nil {
		if llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt) {
			return Outcome{}, fmt.Errorf("provider rejected %s request: %w", ability, err)
		}
		if llmerrors.IsUnavailable(err) {
			e.mu.Lock()
			e.degraded = true
			e.mu.Unlock()
			e.logger.Warn("provider unavailable, switching to degraded responses: %v", err)
		}
		return e.serveDegraded(ability, snapshot, err), nil
	}

	e.cache.Put(key, resp.Content)
	return Outcome{Result: e.normalizeFor(ability, resp.Content)}, nil
}

func (e *Executor) serveDegraded(ability string, snapshot state.Snapshot, cause error) Outcome {
	content := degradedOutput(ability, snapshot)
	if cause != nil {
		e.logger.Debug("ability %s degraded: %v", ability, cause)
	}
	return Outcome{
		Result:   e.normalizeFor(ability, content),
		Degraded: true,
		Cause:    cause,
	}
}

func (e *Executor) normalizeFor(ability, content string) state.Result {
	if stringAbilities[ability] {
		return normalize.NormalizeString(ability, content)
	}
	return normalize.Normalize(ability, content)
}

// snapshotPayload flattens a snapshot into the JSON object rendered into
// prompts, mirroring the terminal payload shape.
func snapshotPayload(snapshot state.Snapshot) map[string]any {
	payload := make(map[string]any, len(snapshot.Fields)+6)
	for k, v := range snapshot.Fields {
		payload[k] = v
	}
	payload["id"] = snapshot.ID
	payload["customer_name"] = snapshot.Intake.CustomerName
	payload["email"] = snapshot.Intake.Email
	payload["query"] = snapshot.Intake.Query
	payload["priority"] = snapshot.Intake.Priority
	payload["ticket_id"] = snapshot.Intake.TicketID
	return payload
}
