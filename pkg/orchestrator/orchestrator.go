// Package orchestrator drives a support request through the configured
// stage pipeline: dispatching abilities by mode, merging their results,
// suspending on missing human input, and escalating low-confidence runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"supportflow/pkg/ability"
	"supportflow/pkg/atlas"
	"supportflow/pkg/config"
	"supportflow/pkg/human"
	"supportflow/pkg/logx"
	"supportflow/pkg/persistence"
	"supportflow/pkg/state"
)

// Options configures an orchestrator. Registry and Models are required;
// Asker and Store are optional.
type Options struct {
	Pipeline config.Pipeline
	Registry *ability.Registry
	Models   *atlas.Executor
	// Asker is an interactive answer source consulted when the mailbox has
	// no answer. Without one, unanswered human abilities suspend the run.
	Asker human.Asker
	// Store persists run snapshots at suspension points so a run can be
	// resumed in another process.
	Store *persistence.Store
}

// ErrNotResumable marks a persisted run whose recorded status is not a
// suspension point. Terminal runs stay terminal.
var ErrNotResumable = errors.New("run is not resumable")

// Orchestrator executes runs against one immutable pipeline configuration.
type Orchestrator struct {
	pipeline config.Pipeline
	registry *ability.Registry
	models   *atlas.Executor
	mailbox  *human.Mailbox
	humans   *human.Executor
	store    *persistence.Store
	logger   *logx.Logger
}

// New validates the pipeline and assembles an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if err := opts.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("ability registry is required")
	}
	if opts.Models == nil {
		return nil, fmt.Errorf("model executor is required")
	}

	mailbox := human.NewMailbox()
	askers := []human.Asker{mailbox}
	if opts.Asker != nil {
		askers = append(askers, opts.Asker)
	}

	return &Orchestrator{
		pipeline: opts.Pipeline,
		registry: opts.Registry,
		models:   opts.Models,
		mailbox:  mailbox,
		humans:   human.NewExecutor(askerChain(askers)),
		store:    opts.Store,
		logger:   logx.NewLogger("orchestrator"),
	}, nil
}

// askerChain consults answer sources in order, falling through on
// ErrAwaitingInput.
type askerChain []human.Asker

func (c askerChain) Ask(ctx context.Context, prompt human.Prompt) (string, error) {
	var err error
	for _, asker := range c {
		var answer string
		answer, err = asker.Ask(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		if !errors.Is(err, human.ErrAwaitingInput) {
			return "", err
		}
	}
	return "", err
}

// Run is one in-flight pipeline execution. It is not safe for concurrent
// use; a run belongs to one goroutine between suspensions.
type Run struct {
	request *state.Request
	state   State

	stageIdx   int
	abilityIdx int

	// awaitingHandler is set between the escalation transition and the
	// handler's answer.
	awaitingHandler   bool
	escalationHandled bool

	pending  *human.Prompt
	degraded bool
}

// Request exposes the run's mutable state aggregate.
func (r *Run) Request() *state.Request { return r.request }

// State returns the run's current lifecycle state.
func (r *Run) State() State { return r.state }

// Pending returns the prompt the run is suspended on, if any.
func (r *Run) Pending() *human.Prompt { return r.pending }

// Outcome is what a drive of the pipeline returns: either a terminal result
// or the prompt the run suspended on.
type Outcome struct {
	State     State
	Pending   *human.Prompt
	Payload   map[string]any
	Fault     *Fault
	Escalated bool
	Degraded  bool
}

// Start begins a new run for the given intake and drives it until it
// completes, suspends, or fails.
func (o *Orchestrator) Start(ctx context.Context, intake state.Intake) (*Run, Outcome) {
	run := &Run{
		request: state.NewRequest(intake),
		state:   StateRunning,
	}
	o.logger.Info("starting run %s for %s", run.request.ID, intake.CustomerName)
	return run, o.drive(ctx, run)
}

// Resume supplies the answer for the prompt a run is suspended on and
// continues execution.
func (o *Orchestrator) Resume(ctx context.Context, run *Run, answer string) Outcome {
	if run.state != StateAwaitingHumanInput || run.pending == nil {
		return o.fail(run, &Fault{
			Stage: o.stageName(run), Ability: "", Kind: FaultKindConfig,
			Cause: fmt.Errorf("resume called in state %s", run.state),
		})
	}

	o.mailbox.Supply(run.request.ID, run.pending.Ability, answer)
	if !o.transition(run, StateRunning) {
		return o.fail(run, &Fault{
			Stage: o.stageName(run), Ability: run.pending.Ability,
			Kind: FaultKindConfig, Cause: fmt.Errorf("invalid resume transition"),
		})
	}
	run.pending = nil
	return o.drive(ctx, run)
}

// Load reconstructs a suspended run from the persistence store.
func (o *Orchestrator) Load(id string) (*Run, error) {
	if o.store == nil {
		return nil, fmt.Errorf("no persistence store configured")
	}
	rec, err := o.store.LoadRun(id)
	if err != nil {
		return nil, err
	}
	if rec.Status != strings.ToLower(string(StateAwaitingHumanInput)) {
		return nil, fmt.Errorf("run %s is %s: %w", id, rec.Status, ErrNotResumable)
	}

	run := &Run{
		request: rec.Request,
		state:   StateAwaitingHumanInput,
	}

	if rec.Ability == o.pipeline.Escalation.Handler {
		run.awaitingHandler = true
	}

	for i, stage := range o.pipeline.Stages {
		if stage.Name != rec.Stage {
			continue
		}
		run.stageIdx = i
		if !run.awaitingHandler {
			for j, ab := range stage.Abilities {
				if ab.Name == rec.Ability {
					run.abilityIdx = j
					break
				}
			}
		}
		break
	}

	run.pending = &human.Prompt{
		RequestID: run.request.ID,
		Ability:   rec.Ability,
		Question:  human.PromptFor(rec.Ability, run.request.Snapshot()).Question,
	}
	return run, nil
}

// drive executes abilities until the run suspends or terminates. An ESCALATED
// run stays in the loop so the handler review is dispatched on the next pass.
func (o *Orchestrator) drive(ctx context.Context, run *Run) Outcome {
	for run.state == StateRunning || run.state == StateEscalated {
		if run.awaitingHandler {
			if outcome, stop := o.runEscalationHandler(ctx, run); stop {
				return outcome
			}
			continue
		}

		if run.stageIdx >= len(o.pipeline.Stages) {
			return o.complete(run)
		}

		stage := o.pipeline.Stages[run.stageIdx]
		if run.abilityIdx >= len(stage.Abilities) {
			if run.request.Escalated() && !run.escalationHandled {
				if !o.transition(run, StateEscalated) {
					return o.fail(run, &Fault{
						Stage: stage.Name, Kind: FaultKindConfig,
						Cause: fmt.Errorf("invalid escalation transition"),
					})
				}
				run.awaitingHandler = true
				o.logger.Info("run %s escalated after stage %s", run.request.ID, stage.Name)
			}
			run.stageIdx++
			run.abilityIdx = 0
			continue
		}

		ab := stage.Abilities[run.abilityIdx]
		if outcome, stop := o.dispatch(ctx, run, stage.Name, ab); stop {
			return outcome
		}
		run.abilityIdx++
	}

	return o.outcomeFor(run)
}

// dispatch executes one ability by mode. A true second return means the run
// left RUNNING and drive must hand control back.
func (o *Orchestrator) dispatch(ctx context.Context, run *Run, stageName string, ab config.Ability) (Outcome, bool) {
	mode, err := o.registry.Mode(ab.Name)
	if err != nil {
		return o.fail(run, &Fault{
			Stage: stageName, Ability: ab.Name,
			Kind: FaultKindUnknownAbility, Cause: err,
		}), true
	}

	snapshot := run.request.Snapshot()
	o.logger.Debug("run %s stage %s ability %s (%s)", run.request.ID, stageName, ab.Name, mode)

	switch mode {
	case config.ModeLocal:
		fn, err := o.registry.Local(ab.Name)
		if err != nil {
			return o.fail(run, &Fault{
				Stage: stageName, Ability: ab.Name,
				Kind: FaultKindUnknownAbility, Cause: err,
			}), true
		}
		res, err := fn(ctx, snapshot)
		if err != nil {
			if !errors.Is(err, ability.ErrRecoverable) {
				return o.fail(run, &Fault{
					Stage: stageName, Ability: ab.Name,
					Kind: FaultKindAbility, Cause: err,
				}), true
			}
			o.recordError(run, stageName, ab.Name, err)
		}
		run.request.Merge(res)
		return Outcome{}, false

	case config.ModeHuman:
		res, err := o.humans.Execute(ctx, ab.Name, snapshot)
		if err != nil {
			if errors.Is(err, human.ErrAwaitingInput) {
				return o.suspend(run, stageName, ab.Name, snapshot), true
			}
			return o.fail(run, &Fault{
				Stage: stageName, Ability: ab.Name,
				Kind: FaultKindAbility, Cause: err,
			}), true
		}
		run.request.Merge(res)
		return Outcome{}, false

	case config.ModeModel:
		outcome, err := o.models.Execute(ctx, ab.Name, snapshot)
		if err != nil {
			kind := FaultKindProvider
			if errors.Is(err, atlas.ErrPromptTemplate) {
				kind = FaultKindTemplate
			}
			return o.fail(run, &Fault{
				Stage: stageName, Ability: ab.Name, Kind: kind, Cause: err,
			}), true
		}
		run.request.Merge(outcome.Result)
		if outcome.Degraded {
			o.markDegraded(run, stageName, ab.Name, outcome.Cause)
		}
		return Outcome{}, false

	default:
		return o.fail(run, &Fault{
			Stage: stageName, Ability: ab.Name, Kind: FaultKindConfig,
			Cause: fmt.Errorf("unhandled mode %q", mode),
		}), true
	}
}

// runEscalationHandler routes an escalated run to the configured human
// handler. A true second return means the run suspended or failed.
func (o *Orchestrator) runEscalationHandler(ctx context.Context, run *Run) (Outcome, bool) {
	handler := o.pipeline.Escalation.Handler
	snapshot := run.request.Snapshot()

	res, err := o.humans.Execute(ctx, handler, snapshot)
	if err != nil {
		if errors.Is(err, human.ErrAwaitingInput) {
			return o.suspend(run, o.stageName(run), handler, snapshot), true
		}
		return o.fail(run, &Fault{
			Stage: o.stageName(run), Ability: handler,
			Kind: FaultKindAbility, Cause: err,
		}), true
	}

	run.request.Merge(res)
	run.awaitingHandler = false
	run.escalationHandled = true
	if run.state != StateRunning && !o.transition(run, StateRunning) {
		return o.fail(run, &Fault{
			Stage: o.stageName(run), Ability: handler,
			Kind: FaultKindConfig, Cause: fmt.Errorf("invalid handler transition"),
		}), true
	}
	return Outcome{}, false
}

// suspend parks the run on a human prompt, persisting a snapshot so it can
// be resumed elsewhere.
func (o *Orchestrator) suspend(run *Run, stageName, abilityName string, snapshot state.Snapshot) Outcome {
	if !o.transition(run, StateAwaitingHumanInput) {
		return o.fail(run, &Fault{
			Stage: stageName, Ability: abilityName, Kind: FaultKindConfig,
			Cause: fmt.Errorf("invalid suspend transition from %s", run.state),
		})
	}
	prompt := human.PromptFor(abilityName, snapshot)
	run.pending = &prompt

	o.persist(run, stageName, abilityName)
	o.logger.Info("run %s awaiting human input for %s", run.request.ID, abilityName)
	return o.outcomeFor(run)
}

func (o *Orchestrator) complete(run *Run) Outcome {
	if !o.transition(run, StateComplete) {
		return o.fail(run, &Fault{
			Stage: "COMPLETE", Kind: FaultKindConfig,
			Cause: fmt.Errorf("invalid completion transition from %s", run.state),
		})
	}
	if o.store != nil {
		if err := o.store.DeleteRun(run.request.ID); err != nil {
			o.logger.Warn("failed to clear run %s: %v", run.request.ID, err)
		}
	}
	o.logger.Info("run %s complete", run.request.ID)
	return o.outcomeFor(run)
}

func (o *Orchestrator) fail(run *Run, fault *Fault) Outcome {
	run.state = StateFailed
	o.logger.Error("run %s failed: %v", run.request.ID, fault)
	o.persist(run, fault.Stage, fault.Ability)
	return Outcome{
		State:     StateFailed,
		Fault:     fault,
		Escalated: run.request.Escalated(),
		Degraded:  run.degraded,
	}
}

func (o *Orchestrator) outcomeFor(run *Run) Outcome {
	outcome := Outcome{
		State:     run.state,
		Pending:   run.pending,
		Escalated: run.request.Escalated(),
		Degraded:  run.degraded,
	}
	if run.state == StateComplete {
		outcome.Payload = run.request.Payload()
	}
	return outcome
}

// transition moves the run between lifecycle states, rejecting moves the
// table does not allow.
func (o *Orchestrator) transition(run *Run, to State) bool {
	if !IsValidTransition(run.state, to) {
		o.logger.Error("run %s: invalid transition %s -> %s", run.request.ID, run.state, to)
		return false
	}
	o.logger.Debug("run %s: %s -> %s", run.request.ID, run.state, to)
	run.state = to
	return true
}

// recordError appends a recoverable failure to the request's error list.
func (o *Orchestrator) recordError(run *Run, stageName, abilityName string, err error) {
	existing, _ := run.request.Field(state.KeyErrors)
	errList, _ := existing.([]any)
	errList = append(errList, map[string]any{
		"stage":   stageName,
		"ability": abilityName,
		"error":   err.Error(),
	})
	run.request.Merge(state.NewResult(abilityName, map[string]any{state.KeyErrors: errList}))
	o.logger.Warn("run %s stage %s ability %s: %v", run.request.ID, stageName, abilityName, err)
}

// markDegraded flags the run as running on canned model output.
func (o *Orchestrator) markDegraded(run *Run, stageName, abilityName string, cause error) {
	run.degraded = true
	existing, _ := run.request.Field(state.KeyFlags)
	flags, _ := existing.(map[string]any)
	if flags == nil {
		flags = map[string]any{}
	}
	flags["degraded_mode"] = true
	run.request.Merge(state.NewResult(abilityName, map[string]any{state.KeyFlags: flags}))
	if cause != nil {
		o.recordError(run, stageName, abilityName, cause)
	}
}

// persist saves a run snapshot when a store is configured. Persistence
// failures are logged, not fatal.
func (o *Orchestrator) persist(run *Run, stageName, abilityName string) {
	if o.store == nil {
		return
	}
	err := o.store.SaveRun(&persistence.RunRecord{
		ID:      run.request.ID,
		Status:  strings.ToLower(string(run.state)),
		Stage:   stageName,
		Ability: abilityName,
		Request: run.request,
	})
	if err != nil {
		o.logger.Warn("failed to persist run %s: %v", run.request.ID, err)
	}
}

// stageName names the stage the run is currently positioned at.
func (o *Orchestrator) stageName(run *Run) string {
	if run.stageIdx < len(o.pipeline.Stages) {
		return o.pipeline.Stages[run.stageIdx].Name
	}
	return "COMPLETE"
}
