package stages

import (
	"context"
	"io"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// Lints runs two sequential sub-checks: formatting conformance (check-only,
// zero tolerance) and lint conformance with warnings escalated to errors. A
// formatting mismatch fails the stage before the linter ever runs.
type Lints struct {
	info  stage.Info
	cargo string
}

// NewLints builds the lints stage. Config keys: "channel", "cargo".
func NewLints(cfg stage.Config) (stage.Stage, error) {
	cargo := configString(cfg, "cargo")
	if cargo == "" {
		cargo = "cargo"
	}
	return &Lints{
		info: stage.Info{
			ID:          IDLints,
			Name:        "Lints",
			Description: "formatting conformance plus zero-warning lint pass",
			Toolchain: toolchain.Spec{
				Channel:    configString(cfg, "channel"),
				Components: []toolchain.Component{toolchain.ComponentFormatter, toolchain.ComponentLinter},
			},
		},
		cargo: cargo,
	}, nil
}

// Info describes the stage, including the formatter and linter components its
// toolchain spec requires.
func (s *Lints) Info() stage.Info { return s.info }

// Run executes the formatting check, then the lint check.
func (s *Lints) Run(ctx context.Context, rc stage.RunContext) (stage.Result, error) {
	out := rc.Output()
	channel := resolveChannel(rc, s.info.Toolchain)

	fmtCmd := execute.Command{Name: s.cargo, Args: []string{"+" + channel, "fmt", "--check"}, Dir: rc.WorkDir}
	out.Section(fmtCmd.String())
	result, err := rc.Runner.Run(ctx, fmtCmd)
	if err != nil {
		return stage.Result{}, err
	}
	io.WriteString(out, result.Output)
	if !result.Ok() {
		return stage.Fail(&stage.FormatMismatch{Output: result.Output}), nil
	}

	clippyCmd := execute.Command{
		Name: s.cargo,
		Args: []string{"+" + channel, "clippy", "--", "-D", "warnings"},
		Dir:  rc.WorkDir,
	}
	out.Section(clippyCmd.String())
	result, err = rc.Runner.Run(ctx, clippyCmd)
	if err != nil {
		return stage.Result{}, err
	}
	io.WriteString(out, result.Output)
	if !result.Ok() {
		return stage.Fail(&stage.LintViolation{Output: result.Output}), nil
	}
	return stage.Pass("formatting canonical, no lint diagnostics"), nil
}
