package stages

import (
	"context"
	"io"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Test runs the project's test suite. Success requires every test to pass;
// one failing test fails the whole stage, and flaky tests are not retried.
type Test struct {
	info  stage.Info
	cargo string
}

// NewTest builds the test stage. Config keys: "channel", "cargo".
func NewTest(cfg stage.Config) (stage.Stage, error) {
	cargo := configString(cfg, "cargo")
	if cargo == "" {
		cargo = "cargo"
	}
	return &Test{
		info: stage.Info{
			ID:          IDTest,
			Name:        "Test Suite",
			Description: "full test suite, all tests must pass",
			Toolchain:   toolchain.Spec{Channel: configString(cfg, "channel")},
		},
		cargo: cargo,
	}, nil
}

// Info describes the stage.
func (s *Test) Info() stage.Info { return s.info }

// Run executes `cargo test` against the provisioned workspace.
func (s *Test) Run(ctx context.Context, rc stage.RunContext) (stage.Result, error) {
	out := rc.Output()
	channel := resolveChannel(rc, s.info.Toolchain)
	cmd := execute.Command{Name: s.cargo, Args: []string{"+" + channel, "test"}, Dir: rc.WorkDir}
	out.Section(cmd.String())
	result, err := rc.Runner.Run(ctx, cmd)
	if err != nil {
		return stage.Result{}, err
	}
	io.WriteString(out, result.Output)
	if !result.Ok() {
		return stage.Fail(&stage.TestFailure{Output: result.Output}), nil
	}
	return stage.Pass("all tests passed"), nil
}
