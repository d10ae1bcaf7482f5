package stages

import (
	"context"
	"strings"
	"testing"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// scriptedRunner returns canned results keyed by a substring of the command.
type scriptedRunner struct {
	results  map[string]execute.Result
	commands []string
}

func (s *scriptedRunner) Run(ctx context.Context, cmd execute.Command) (execute.Result, error) {
	rendered := cmd.String()
	s.commands = append(s.commands, rendered)
	for key, result := range s.results {
		if strings.Contains(rendered, key) {
			return result, nil
		}
	}
	return execute.Result{}, nil
}

func TestRegisterBuiltins(t *testing.T) {
	reg := stage.NewRegistry()
	RegisterBuiltins(reg)
	ids := reg.IDs()
	want := []string{IDCheck, IDLints, IDTest}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestCheckPassesOnCleanExit(t *testing.T) {
	runner := &scriptedRunner{}
	st, err := NewCheck(nil)
	if err != nil {
		t.Fatalf("new check: %v", err)
	}
	result, err := st.Run(context.Background(), stage.RunContext{WorkDir: "/ws", Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(runner.commands) != 1 || runner.commands[0] != "cargo +stable check" {
		t.Fatalf("unexpected commands: %v", runner.commands)
	}
}

func TestCheckFailsWithCheckClass(t *testing.T) {
	runner := &scriptedRunner{results: map[string]execute.Result{
		"check": {ExitCode: 101, Output: "error[E0382]: borrow of moved value"},
	}}
	st, _ := NewCheck(nil)
	result, err := st.Run(context.Background(), stage.RunContext{Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != stage.OutcomeFailure || result.Class != stage.ClassCheck {
		t.Fatalf("expected check failure, got %+v", result)
	}
}

func TestTestFailureFailsWholeStage(t *testing.T) {
	runner := &scriptedRunner{results: map[string]execute.Result{
		"test": {ExitCode: 101, Output: "test first::peek ... FAILED"},
	}}
	st, _ := NewTest(nil)
	result, err := st.Run(context.Background(), stage.RunContext{Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Class != stage.ClassTest {
		t.Fatalf("expected test class, got %+v", result)
	}
}

func TestLintsRequiresFormatterAndLinterComponents(t *testing.T) {
	st, err := NewLints(nil)
	if err != nil {
		t.Fatalf("new lints: %v", err)
	}
	spec := st.Info().Toolchain.Normalized()
	if len(spec.Components) != 2 {
		t.Fatalf("expected two components, got %v", spec.Components)
	}
	if spec.Components[0] != toolchain.ComponentLinter || spec.Components[1] != toolchain.ComponentFormatter {
		t.Fatalf("unexpected components: %v", spec.Components)
	}
}

func TestLintsFormatMismatchSkipsLintCheck(t *testing.T) {
	runner := &scriptedRunner{results: map[string]execute.Result{
		"fmt --check": {ExitCode: 1, Output: "Diff in src/first.rs"},
	}}
	st, _ := NewLints(nil)
	result, err := st.Run(context.Background(), stage.RunContext{Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Class != stage.ClassFormat {
		t.Fatalf("expected format class, got %+v", result)
	}
	if len(runner.commands) != 1 {
		t.Fatalf("lint sub-check must not run after format mismatch: %v", runner.commands)
	}
}

func TestLintsZeroWarningPolicy(t *testing.T) {
	runner := &scriptedRunner{results: map[string]execute.Result{
		"clippy": {ExitCode: 101, Output: "warning: unused variable `node`"},
	}}
	st, _ := NewLints(nil)
	result, err := st.Run(context.Background(), stage.RunContext{Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Class != stage.ClassLint {
		t.Fatalf("expected lint class, got %+v", result)
	}
	if len(runner.commands) != 2 {
		t.Fatalf("expected fmt then clippy, got %v", runner.commands)
	}
	if !strings.Contains(runner.commands[1], "-D warnings") {
		t.Fatalf("clippy must escalate warnings: %v", runner.commands[1])
	}
}

func TestLintsCleanTreePasses(t *testing.T) {
	runner := &scriptedRunner{}
	st, _ := NewLints(nil)
	result, err := st.Run(context.Background(), stage.RunContext{Channel: "stable", Runner: runner})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected success on clean tree, got %+v", result)
	}
}

func TestChannelOverrideFromConfig(t *testing.T) {
	runner := &scriptedRunner{}
	st, err := NewCheck(stage.Config{"channel": "beta"})
	if err != nil {
		t.Fatalf("new check: %v", err)
	}
	if _, err := st.Run(context.Background(), stage.RunContext{Runner: runner}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if runner.commands[0] != "cargo +beta check" {
		t.Fatalf("config channel not honored: %v", runner.commands)
	}
}
