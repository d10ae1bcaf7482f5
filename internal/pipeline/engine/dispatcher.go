package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gauntlet-ci/gauntlet/internal/checkout"
	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/runlog"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
)

// Dispatcher drives a run to completion in-process. Each claimed stage gets
// its own goroutine and its own provisioned workspace: checkout, toolchain
// install, then the stage's verification commands. A provisioning failure
// fails the stage without running any verification command.
type Dispatcher struct {
	engine     *Engine
	registry   *stage.Registry
	runner     execute.Runner
	checkout   *checkout.Client
	installer  *toolchain.Installer
	logs       *runlog.Store
	workspaces string
	source     checkout.Source
	channel    string
	logger     trigger.Logger
}

// DispatcherOption customizes a dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRunner overrides the command runner used for provisioning and stages.
func WithRunner(runner execute.Runner) DispatcherOption {
	return func(d *Dispatcher) {
		if runner != nil {
			d.runner = runner
		}
	}
}

// WithCheckout overrides the checkout client.
func WithCheckout(client *checkout.Client) DispatcherOption {
	return func(d *Dispatcher) { d.checkout = client }
}

// WithInstaller overrides the toolchain installer.
func WithInstaller(installer *toolchain.Installer) DispatcherOption {
	return func(d *Dispatcher) { d.installer = installer }
}

// WithRunLogs wires a log store; without one stage output is discarded.
func WithRunLogs(store *runlog.Store) DispatcherOption {
	return func(d *Dispatcher) { d.logs = store }
}

// WithWorkspaces sets the directory stage workspaces are provisioned under.
func WithWorkspaces(dir string) DispatcherOption {
	return func(d *Dispatcher) { d.workspaces = dir }
}

// WithSource sets the default source to verify when the trigger event does
// not carry a repository.
func WithSource(src checkout.Source) DispatcherOption {
	return func(d *Dispatcher) { d.source = src }
}

// WithChannel pins the toolchain channel for every stage, overriding each
// stage's declared default.
func WithChannel(channel string) DispatcherOption {
	return func(d *Dispatcher) { d.channel = channel }
}

// WithDispatchLogger wires diagnostic logging.
func WithDispatchLogger(l trigger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NewDispatcher wires a dispatcher to an engine and stage registry.
func NewDispatcher(eng *Engine, registry *stage.Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if eng == nil {
		return nil, fmt.Errorf("dispatcher: engine is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("dispatcher: stage registry is required")
	}
	d := &Dispatcher{
		engine:   eng,
		registry: registry,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.runner == nil {
		d.runner = execute.NewLocal()
	}
	if d.checkout == nil {
		client, err := checkout.NewClient(d.runner)
		if err != nil {
			return nil, err
		}
		d.checkout = client
	}
	if d.installer == nil {
		installer, err := toolchain.NewInstaller(d.runner)
		if err != nil {
			return nil, err
		}
		d.installer = installer
	}
	return d, nil
}

// Dispatch runs one trigger event through the pipeline and returns the
// terminal run state. Re-dispatching the same event starts a new run with the
// same inputs; stages themselves hold no state across runs.
func (d *Dispatcher) Dispatch(ctx context.Context, def pipeline.Definition, evt trigger.Event) (State, error) {
	state, err := d.engine.Start(def, evt)
	if err != nil {
		return State{}, err
	}
	d.logger.Printf("run %s: started for %s event on %s", state.RunID, evt.Kind, evt.CheckoutTarget())
	return d.drive(ctx, state)
}

// Resume picks up a persisted run and drives it to completion.
func (d *Dispatcher) Resume(ctx context.Context, runID string) (State, error) {
	state, err := d.engine.View(runID)
	if err != nil {
		return State{}, err
	}
	if state.Terminal() {
		return state, nil
	}
	return d.drive(ctx, state)
}

func (d *Dispatcher) drive(ctx context.Context, state State) (State, error) {
	// Buffered to the stage count so every worker can post its result even
	// when drive bails out early on an engine error.
	updates := make(chan StageUpdate, len(state.Stages))
	inFlight := 0
	for {
		claimed, next, err := d.engine.Claim(state.RunID, 0)
		if err != nil {
			return State{}, err
		}
		state = next
		for _, id := range claimed {
			inFlight++
			go func(snapshot State, id string) {
				updates <- d.executeStage(ctx, snapshot, id)
			}(state, id)
		}
		if inFlight == 0 {
			if !state.Terminal() {
				return State{}, fmt.Errorf("run %s: no runnable stages and run not terminal", state.RunID)
			}
			d.logger.Printf("run %s: %s", state.RunID, state.Status)
			return state, nil
		}
		update := <-updates
		inFlight--
		state, err = d.engine.Update(state.RunID, []StageUpdate{update})
		if err != nil {
			return State{}, err
		}
	}
}

// executeStage provisions and runs a single stage. Failures in provisioning
// (checkout, toolchain install) terminate the stage before any verification
// command runs.
func (d *Dispatcher) executeStage(ctx context.Context, state State, instanceID string) StageUpdate {
	update := StageUpdate{ID: instanceID}
	ref, ok := findStageRef(state.Definition, instanceID)
	if !ok {
		update.Err = fmt.Errorf("stage %s: not in pipeline definition", instanceID)
		return update
	}
	stg, err := d.registry.Resolve(ref.StageID, ref.Config)
	if err != nil {
		update.Err = err
		return update
	}

	var log *runlog.Log
	if d.logs != nil {
		log, err = d.logs.Create(state.RunID, instanceID)
		if err != nil {
			update.Err = err
			return update
		}
		defer log.Close()
		update.LogPath = log.Path()
	}

	workDir, cleanup, err := d.provisionWorkspace(state.RunID, instanceID)
	if err != nil {
		update.Result = provisioningFailure(err)
		return update
	}
	defer cleanup()

	output(log).Section("checkout " + d.sourceFor(state.Event).Describe())
	if err := d.checkout.Fetch(ctx, d.sourceFor(state.Event), state.Event.CheckoutTarget(), workDir); err != nil {
		d.logger.Printf("run %s stage %s: checkout failed: %v", state.RunID, instanceID, err)
		update.Result = provisioningFailure(err)
		return update
	}

	spec := d.toolchainFor(stg.Info())
	output(log).Section("toolchain " + spec.String())
	if err := d.installer.Install(ctx, spec); err != nil {
		d.logger.Printf("run %s stage %s: toolchain install failed: %v", state.RunID, instanceID, err)
		update.Result = stage.Fail(err)
		return update
	}

	rc := stage.RunContext{
		WorkDir: workDir,
		Channel: spec.Channel,
		Runner:  d.runner,
		Log:     log,
	}
	result, runErr := stg.Run(ctx, rc)
	if runErr != nil {
		d.logger.Printf("run %s stage %s: %v", state.RunID, instanceID, runErr)
		update.Err = runErr
		return update
	}
	update.Result = result
	return update
}

// provisionWorkspace creates an empty directory reserved for one stage
// execution. Stages never share a workspace.
func (d *Dispatcher) provisionWorkspace(runID, instanceID string) (string, func(), error) {
	if d.workspaces == "" {
		dir, err := os.MkdirTemp("", "gauntlet-"+instanceID+"-")
		if err != nil {
			return "", nil, fmt.Errorf("dispatcher: provision workspace: %w", err)
		}
		return dir, func() { os.RemoveAll(dir) }, nil
	}
	dir := filepath.Join(d.workspaces, runID, instanceID)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return "", nil, fmt.Errorf("dispatcher: provision workspace: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", nil, fmt.Errorf("dispatcher: provision workspace: %w", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func (d *Dispatcher) sourceFor(evt trigger.Event) checkout.Source {
	if evt.Repository != "" {
		return checkout.Source{Repository: evt.Repository}
	}
	return d.source
}

func (d *Dispatcher) toolchainFor(info stage.Info) toolchain.Spec {
	spec := info.Toolchain.Normalized()
	if d.channel != "" {
		spec.Channel = d.channel
	}
	return spec
}

func provisioningFailure(err error) stage.Result {
	return stage.Result{
		Outcome: stage.OutcomeFailure,
		Class:   stage.ClassProvisioning,
		Message: err.Error(),
	}
}

func output(log *runlog.Log) stage.OutputLog {
	if log == nil {
		return stage.NopLog{}
	}
	return log
}

func findStageRef(def pipeline.Definition, instanceID string) (pipeline.StageRef, bool) {
	for _, ref := range def.Stages {
		if ref.InstanceID() == instanceID {
			return ref, true
		}
	}
	return pipeline.StageRef{}, false
}
