package engine

import (
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
)

// RunStatus enumerates coarse run phases. A run passes only when every stage
// succeeded: the overall result is a logical AND across stage outcomes.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// StageState tracks one stage through its two-terminal-state machine. There is
// no intermediate persisted state beyond "running", and no retry transition.
type StageState string

const (
	StageStatePending StageState = "pending"
	StageStateRunning StageState = "running"
	StageStateSuccess StageState = "success"
	StageStateFailure StageState = "failure"
)

// Terminal reports whether the stage has reached an outcome.
func (s StageState) Terminal() bool {
	return s == StageStateSuccess || s == StageStateFailure
}

// StageStatus is the persisted view of one stage within a run.
type StageStatus struct {
	ID           string      `json:"id"`
	StageID      string      `json:"stage_id"`
	Name         string      `json:"name"`
	Dependencies []string    `json:"dependencies,omitempty"`
	State        StageState  `json:"state"`
	Class        stage.Class `json:"class,omitempty"`
	Message      string      `json:"message,omitempty"`
	LogPath      string      `json:"log_path,omitempty"`
	StartedAt    time.Time   `json:"started_at,omitempty"`
	FinishedAt   time.Time   `json:"finished_at,omitempty"`
}

// State captures the persisted snapshot of one pipeline run.
type State struct {
	RunID        string              `json:"run_id"`
	PipelineID   string              `json:"pipeline_id"`
	Definition   pipeline.Definition `json:"definition"`
	Event        trigger.Event       `json:"event"`
	Status       RunStatus           `json:"status"`
	StatusReason string              `json:"status_reason,omitempty"`
	Running      []string            `json:"running,omitempty"`
	Stages       []StageStatus       `json:"stages"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Stage returns the status entry for a stage instance.
func (s State) Stage(id string) (StageStatus, bool) {
	for _, status := range s.Stages {
		if status.ID == id {
			return status, true
		}
	}
	return StageStatus{}, false
}

// Terminal reports whether the run has reached its final status.
func (s State) Terminal() bool {
	return s.Status == RunStatusPassed || s.Status == RunStatusFailed
}

// deriveStatus recomputes the run status from stage states: failed as soon as
// every stage is terminal and any failed, passed when all succeeded, running
// otherwise.
func deriveStatus(stages []StageStatus) (RunStatus, string) {
	allTerminal := true
	var firstFailure string
	for _, status := range stages {
		if !status.State.Terminal() {
			allTerminal = false
			continue
		}
		if status.State == StageStateFailure && firstFailure == "" {
			firstFailure = status.ID
		}
	}
	if !allTerminal {
		return RunStatusRunning, ""
	}
	if firstFailure != "" {
		return RunStatusFailed, firstFailure + " failed"
	}
	return RunStatusPassed, ""
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
