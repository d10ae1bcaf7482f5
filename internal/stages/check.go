package stages

import (
	"context"
	"io"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Check runs the static analysis pass: a compile-without-link check of the
// whole tree. It succeeds only when no error-class diagnostics are reported.
type Check struct {
	info  stage.Info
	cargo string
}

// NewCheck builds the check stage. Config keys: "channel", "cargo".
func NewCheck(cfg stage.Config) (stage.Stage, error) {
	cargo := configString(cfg, "cargo")
	if cargo == "" {
		cargo = "cargo"
	}
	return &Check{
		info: stage.Info{
			ID:          IDCheck,
			Name:        "Check",
			Description: "compile-without-link static check",
			Toolchain:   toolchain.Spec{Channel: configString(cfg, "channel")},
		},
		cargo: cargo,
	}, nil
}

// Info describes the stage.
func (s *Check) Info() stage.Info { return s.info }

// Run executes `cargo check` against the provisioned workspace. The exit
// status is the sole verdict.
func (s *Check) Run(ctx context.Context, rc stage.RunContext) (stage.Result, error) {
	out := rc.Output()
	channel := resolveChannel(rc, s.info.Toolchain)
	cmd := execute.Command{Name: s.cargo, Args: []string{"+" + channel, "check"}, Dir: rc.WorkDir}
	out.Section(cmd.String())
	result, err := rc.Runner.Run(ctx, cmd)
	if err != nil {
		return stage.Result{}, err
	}
	io.WriteString(out, result.Output)
	if !result.Ok() {
		return stage.Fail(&stage.CheckError{Output: result.Output}), nil
	}
	return stage.Pass("check completed without error diagnostics"), nil
}
