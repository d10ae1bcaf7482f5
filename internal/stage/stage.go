package stage

import (
	"context"
	"fmt"
	"io"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Info describes a stage's identity and the toolchain it needs.
type Info struct {
	ID          string
	Name        string
	Description string
	Toolchain   toolchain.Spec
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("stage: id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("stage: name is required for %s", i.ID)
	}
	if err := i.Toolchain.Validate(); err != nil {
		return fmt.Errorf("stage %s: %w", i.ID, err)
	}
	return nil
}

// Outcome is a stage's terminal status. There are exactly two: a stage either
// succeeds or fails, with no partial result and no automatic retry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Result captures the outcome of a stage execution.
type Result struct {
	Outcome Outcome
	Class   Class
	Message string
}

// Pass builds a success result.
func Pass(message string) Result {
	return Result{Outcome: OutcomeSuccess, Message: message}
}

// Fail builds a failure result from a taxonomy error.
func Fail(err error) Result {
	return Result{Outcome: OutcomeFailure, Class: Classify(err), Message: errorMessage(err)}
}

// OutputLog receives the raw output of a stage's commands.
type OutputLog interface {
	io.Writer
	Section(title string)
}

// NopLog discards output; used when no log store is wired.
type NopLog struct{}

func (NopLog) Write(p []byte) (int, error) { return len(p), nil }
func (NopLog) Section(string)              {}

// RunContext carries the provisioned environment a stage runs against: its own
// checked-out tree, the resolved toolchain channel, and the command runner.
// Stages share nothing with their siblings.
type RunContext struct {
	WorkDir string
	Channel string
	Runner  execute.Runner
	Log     OutputLog
}

// Output returns the log sink, defaulting to a discard writer.
func (rc RunContext) Output() OutputLog {
	if rc.Log == nil {
		return NopLog{}
	}
	return rc.Log
}

// Stage is one independently provisioned, independently scored verification
// unit. Run executes the stage's verification command(s) against an already
// provisioned workspace; a non-nil error means the command never produced a
// verdict (and still fails the stage).
type Stage interface {
	Info() Info
	Run(ctx context.Context, rc RunContext) (Result, error)
}
