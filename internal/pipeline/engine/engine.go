package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
)

// Engine advances run state: it creates runs from a definition plus trigger
// event, hands out runnable stages, and folds stage results back in. All
// snapshots go through the StateStore so restarts and observers see the same
// picture.
type Engine struct {
	store StateStore
	clock func() time.Time
	newID func() string
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator overrides run ID generation (primarily for tests).
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// New wires an engine to a persistence store.
func New(store StateStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: state store is required")
	}
	engine := &Engine{
		store: store,
		clock: time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Start creates a fresh run for the trigger event: every stage pending, run
// status running. Each trigger event yields exactly one invocation per stage.
func (e *Engine) Start(def pipeline.Definition, evt trigger.Event) (State, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return State{}, err
	}
	now := e.clock()
	state := State{
		RunID:      e.newID(),
		PipelineID: normalized.ID,
		Definition: normalized,
		Event:      evt,
		Status:     RunStatusRunning,
		UpdatedAt:  now,
	}
	state.Stages = make([]StageStatus, 0, len(normalized.Stages))
	for _, ref := range normalized.Stages {
		id := ref.InstanceID()
		state.Stages = append(state.Stages, StageStatus{
			ID:           id,
			StageID:      ref.StageID,
			Name:         pickName(ref),
			Dependencies: normalized.Dependencies(id),
			State:        StageStatePending,
		})
	}
	if err := e.store.Save(state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Claim reserves runnable stages: pending, dependencies satisfied, and within
// the pipeline's max_parallel budget counting stages already running. Claimed
// stages are marked running and the snapshot is persisted so observers see
// them in flight.
func (e *Engine) Claim(runID string, limit int) ([]string, State, error) {
	state, err := e.store.Load(runID)
	if err != nil {
		return nil, State{}, err
	}
	budget := claimBudget(state, limit)
	var claimed []string
	now := e.clock()
	for i := range state.Stages {
		if budget == 0 {
			break
		}
		status := &state.Stages[i]
		if status.State != StageStatePending {
			continue
		}
		if !dependenciesSatisfied(state, status.Dependencies) {
			continue
		}
		status.State = StageStateRunning
		status.StartedAt = now
		claimed = append(claimed, status.ID)
		if budget > 0 {
			budget--
		}
	}
	if len(claimed) == 0 {
		return nil, state, nil
	}
	state.Running = append(state.Running, claimed...)
	state.UpdatedAt = now
	if err := e.store.Save(state); err != nil {
		return nil, State{}, err
	}
	return cloneStrings(claimed), state, nil
}

// StageUpdate informs the engine that a stage finished.
type StageUpdate struct {
	ID         string
	Result     stage.Result
	Err        error
	LogPath    string
	FinishedAt time.Time
}

// Update folds stage results into the run: terminal states recorded, running
// slots released, dependents of failed stages settled, overall status
// rederived and persisted.
func (e *Engine) Update(runID string, updates []StageUpdate) (State, error) {
	state, err := e.store.Load(runID)
	if err != nil {
		return State{}, err
	}
	now := e.clock()
	for _, update := range updates {
		if update.ID == "" {
			continue
		}
		idx := stageIndex(state, update.ID)
		if idx < 0 {
			continue
		}
		status := &state.Stages[idx]
		finished := update.FinishedAt
		if finished.IsZero() {
			finished = now
		}
		status.FinishedAt = finished
		if update.LogPath != "" {
			status.LogPath = update.LogPath
		}
		if update.Err != nil {
			status.State = StageStateFailure
			status.Class = stage.Classify(update.Err)
			status.Message = update.Err.Error()
		} else if update.Result.Outcome == stage.OutcomeSuccess {
			status.State = StageStateSuccess
			status.Message = update.Result.Message
		} else {
			status.State = StageStateFailure
			status.Class = update.Result.Class
			status.Message = update.Result.Message
		}
		state.Running = removeID(state.Running, update.ID)
	}
	settleBlockedStages(&state, now)
	state.Status, state.StatusReason = deriveStatus(state.Stages)
	state.UpdatedAt = now
	if err := e.store.Save(state); err != nil {
		return State{}, err
	}
	return state, nil
}

// View returns the persisted snapshot for a run.
func (e *Engine) View(runID string) (State, error) {
	return e.store.Load(runID)
}

// Latest returns the most recent run snapshot.
func (e *Engine) Latest() (State, error) {
	return e.store.Latest()
}

// settleBlockedStages fails pending stages whose dependencies can no longer
// succeed, so the run reaches a terminal status instead of stalling. The
// builtin pipeline has no dependencies and never hits this path.
func settleBlockedStages(state *State, now time.Time) {
	for {
		changed := false
		for i := range state.Stages {
			status := &state.Stages[i]
			if status.State != StageStatePending {
				continue
			}
			failedDep := firstFailedDependency(*state, status.Dependencies)
			if failedDep == "" {
				continue
			}
			status.State = StageStateFailure
			status.Class = stage.ClassProvisioning
			status.Message = fmt.Sprintf("dependency %s failed", failedDep)
			status.FinishedAt = now
			changed = true
		}
		if !changed {
			return
		}
	}
}

func claimBudget(state State, limit int) int {
	budget := -1 // unlimited
	if max := state.Definition.Runtime.MaxParallel; max > 0 {
		budget = max - len(state.Running)
		if budget < 0 {
			budget = 0
		}
	}
	if limit > 0 && (budget < 0 || limit < budget) {
		budget = limit
	}
	return budget
}

func dependenciesSatisfied(state State, deps []string) bool {
	for _, dep := range deps {
		status, ok := state.Stage(dep)
		if !ok || status.State != StageStateSuccess {
			return false
		}
	}
	return true
}

func firstFailedDependency(state State, deps []string) string {
	for _, dep := range deps {
		if status, ok := state.Stage(dep); ok && status.State == StageStateFailure {
			return dep
		}
	}
	return ""
}

func stageIndex(state State, id string) int {
	for i, status := range state.Stages {
		if status.ID == id {
			return i
		}
	}
	return -1
}

func removeID(values []string, id string) []string {
	if len(values) == 0 {
		return values
	}
	filtered := values[:0]
	for _, value := range values {
		if value == id {
			continue
		}
		filtered = append(filtered, value)
	}
	return filtered
}

func pickName(ref pipeline.StageRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	return ref.InstanceID()
}
