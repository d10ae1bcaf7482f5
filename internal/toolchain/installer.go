package toolchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
)

// Installer resolves toolchain specs through rustup. It either yields a
// working toolchain or fails fast with an *InstallError.
type Installer struct {
	runner execute.Runner
	rustup string
}

// InstallerOption customizes Installer construction.
type InstallerOption func(*Installer)

// WithRustupPath overrides the rustup binary (primarily for tests).
func WithRustupPath(path string) InstallerOption {
	return func(i *Installer) {
		if path != "" {
			i.rustup = path
		}
	}
}

// NewInstaller wires an installer to a command runner.
func NewInstaller(runner execute.Runner, opts ...InstallerOption) (*Installer, error) {
	if runner == nil {
		return nil, errors.New("toolchain: installer requires a runner")
	}
	installer := &Installer{runner: runner, rustup: "rustup"}
	for _, opt := range opts {
		if opt != nil {
			opt(installer)
		}
	}
	return installer, nil
}

// Install resolves the spec: the channel first, then each component. The first
// failing step aborts the install and surfaces as an *InstallError.
func (i *Installer) Install(ctx context.Context, spec Spec) error {
	norm := spec.Normalized()
	if err := norm.Validate(); err != nil {
		return &InstallError{Spec: norm, Step: "validate", Err: err}
	}
	steps := []struct {
		name string
		args []string
	}{
		{
			name: "toolchain install",
			args: []string{"toolchain", "install", norm.Channel, "--profile", "minimal", "--no-self-update"},
		},
	}
	for _, comp := range norm.Components {
		steps = append(steps, struct {
			name string
			args []string
		}{
			name: fmt.Sprintf("component add %s", comp),
			args: []string{"component", "add", string(comp), "--toolchain", norm.Channel},
		})
	}
	for _, step := range steps {
		result, err := i.runner.Run(ctx, execute.Command{Name: i.rustup, Args: step.args})
		if err != nil {
			return &InstallError{Spec: norm, Step: step.name, Err: err}
		}
		if !result.Ok() {
			return &InstallError{
				Spec:   norm,
				Step:   step.name,
				Output: result.Output,
				Err:    fmt.Errorf("exit status %d", result.ExitCode),
			}
		}
	}
	return nil
}
