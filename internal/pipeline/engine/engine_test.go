package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/gauntlet-ci/gauntlet/internal/pipeline"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/trigger"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	repo := NewRepository(t.TempDir())
	counter := 0
	eng, err := New(repo,
		WithClock(func() time.Time { return time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("run-%d", counter)
		}),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func pushEvent() trigger.Event {
	return trigger.Event{
		DeliveryID: "delivery-1",
		Kind:       trigger.KindPush,
		Repository: "https://example.com/lists.git",
		Revision:   "abc123",
	}
}

func TestEngineRunLifecycle(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	state, err := eng.Start(pipeline.Default(), pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if state.Status != RunStatusRunning {
		t.Fatalf("status = %s, want %s", state.Status, RunStatusRunning)
	}
	if len(state.Stages) != 3 {
		t.Fatalf("stages = %d, want 3", len(state.Stages))
	}
	for _, status := range state.Stages {
		if status.State != StageStatePending {
			t.Fatalf("stage %s state = %s, want pending", status.ID, status.State)
		}
	}

	claimed, state, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed = %v, want all 3 stages", claimed)
	}
	for _, status := range state.Stages {
		if status.State != StageStateRunning {
			t.Fatalf("stage %s state = %s, want running after claim", status.ID, status.State)
		}
	}

	var updates []StageUpdate
	for _, id := range claimed {
		updates = append(updates, StageUpdate{ID: id, Result: stage.Pass("ok")})
	}
	state, err = eng.Update(state.RunID, updates)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.Status != RunStatusPassed {
		t.Fatalf("status = %s (%s), want passed", state.Status, state.StatusReason)
	}
	if len(state.Running) != 0 {
		t.Fatalf("running = %v, want empty after completion", state.Running)
	}
}

func TestEngineSingleFailureFailsRun(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	state, err := eng.Start(pipeline.Default(), pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	claimed, state, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	updates := []StageUpdate{
		{ID: "check", Result: stage.Pass("ok")},
		{ID: "test", Result: stage.Pass("ok")},
		{ID: "lints", Result: stage.Fail(&stage.LintViolation{})},
	}
	if len(claimed) != len(updates) {
		t.Fatalf("claimed = %v, want all stages", claimed)
	}
	state, err = eng.Update(state.RunID, updates)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status = %s, want failed", state.Status)
	}
	if state.StatusReason != "lints failed" {
		t.Fatalf("reason = %q, want %q", state.StatusReason, "lints failed")
	}
	lints, ok := state.Stage("lints")
	if !ok || lints.Class != stage.ClassLint {
		t.Fatalf("lints class = %q, want %q", lints.Class, stage.ClassLint)
	}
}

func TestEngineClaimHonorsDependencies(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	def := pipeline.Definition{
		ID: "gated",
		Stages: []pipeline.StageRef{
			{StageID: "check"},
			{StageID: "test", DependsOn: []string{"check"}},
		},
	}
	state, err := eng.Start(def, pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	claimed, state, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0] != "check" {
		t.Fatalf("claimed = %v, want only check while test is gated", claimed)
	}

	state, err = eng.Update(state.RunID, []StageUpdate{{ID: "check", Result: stage.Pass("ok")}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	claimed, _, err = eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0] != "test" {
		t.Fatalf("claimed = %v, want test once check succeeded", claimed)
	}
}

func TestEngineFailedDependencySettlesDependent(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	def := pipeline.Definition{
		ID: "gated",
		Stages: []pipeline.StageRef{
			{StageID: "check"},
			{StageID: "test", DependsOn: []string{"check"}},
		},
	}
	state, err := eng.Start(def, pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, state, err = eng.Claim(state.RunID, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}

	state, err = eng.Update(state.RunID, []StageUpdate{{ID: "check", Result: stage.Fail(&stage.CheckError{})}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status = %s, want failed without claiming test", state.Status)
	}
	blocked, ok := state.Stage("test")
	if !ok {
		t.Fatalf("test stage missing from state")
	}
	if blocked.State != StageStateFailure || blocked.Class != stage.ClassProvisioning {
		t.Fatalf("test state = %s class = %s, want settled failure", blocked.State, blocked.Class)
	}
}

func TestEngineClaimRespectsMaxParallel(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	def := pipeline.Default()
	def.Runtime.MaxParallel = 1
	state, err := eng.Start(def, pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	claimed, state, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("claimed = %v, want exactly one stage under max_parallel=1", claimed)
	}
	again, _, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("claimed = %v, want none while the slot is busy", again)
	}

	state, err = eng.Update(state.RunID, []StageUpdate{{ID: claimed[0], Result: stage.Pass("ok")}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	next, _, err := eng.Claim(state.RunID, 0)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(next) != 1 {
		t.Fatalf("claimed = %v, want the freed slot reused", next)
	}
}

func TestEngineErrorUpdateRecordsExecutionClass(t *testing.T) {
	t.Parallel()
	eng := testEngine(t)

	state, err := eng.Start(pipeline.Default(), pushEvent())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, _, err = eng.Claim(state.RunID, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	state, err = eng.Update(state.RunID, []StageUpdate{
		{ID: "check", Err: fmt.Errorf("cargo: command not found")},
		{ID: "test", Result: stage.Pass("ok")},
		{ID: "lints", Result: stage.Pass("ok")},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	check, _ := state.Stage("check")
	if check.State != StageStateFailure || check.Class != stage.ClassExecution {
		t.Fatalf("check state = %s class = %s, want execution failure", check.State, check.Class)
	}
	if state.Status != RunStatusFailed {
		t.Fatalf("status = %s, want failed", state.Status)
	}
}
