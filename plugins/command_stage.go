package plugins

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
)

// commandStage runs a plugin definition's command list inside the stage's
// provisioned workspace. Commands run in order and the first non-zero exit
// fails the stage; later commands do not run.
type commandStage struct {
	definition StageDefinition
}

func newCommandStage(def StageDefinition) (*commandStage, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &commandStage{definition: def.Normalized()}, nil
}

func (s *commandStage) Info() stage.Info {
	return stage.Info{
		ID:          s.definition.ID,
		Name:        s.definition.Name,
		Description: s.definition.Description,
		Toolchain:   s.definition.Toolchain,
	}
}

func (s *commandStage) Run(ctx context.Context, rc stage.RunContext) (stage.Result, error) {
	for _, spec := range s.definition.Commands {
		cmd, err := s.renderCommand(spec, rc)
		if err != nil {
			return stage.Result{}, err
		}
		rc.Output().Section(spec.String())
		result, err := rc.Runner.Run(ctx, cmd)
		if err != nil {
			return stage.Result{}, fmt.Errorf("%s: %s: %w", s.definition.ID, spec.Run, err)
		}
		fmt.Fprint(rc.Output(), result.Output)
		if !result.Ok() {
			return stage.Result{
				Outcome: stage.OutcomeFailure,
				Class:   stage.ClassExecution,
				Message: fmt.Sprintf("%s: exit status %d", spec.String(), result.ExitCode),
			}, nil
		}
	}
	return stage.Pass(fmt.Sprintf("%d command(s) succeeded", len(s.definition.Commands))), nil
}

// renderCommand expands {{.Channel}} and {{.WorkDir}} references in the
// command's program and arguments.
func (s *commandStage) renderCommand(spec CommandSpec, rc stage.RunContext) (execute.Command, error) {
	vars := struct {
		Channel string
		WorkDir string
	}{Channel: rc.Channel, WorkDir: rc.WorkDir}

	run, err := renderTemplate(spec.Run, vars)
	if err != nil {
		return execute.Command{}, fmt.Errorf("%s: render %q: %w", s.definition.ID, spec.Run, err)
	}
	args := make([]string, 0, len(spec.Args))
	for _, arg := range spec.Args {
		rendered, err := renderTemplate(arg, vars)
		if err != nil {
			return execute.Command{}, fmt.Errorf("%s: render %q: %w", s.definition.ID, arg, err)
		}
		args = append(args, rendered)
	}
	return execute.Command{Name: run, Args: args, Dir: rc.WorkDir}, nil
}

func renderTemplate(text string, vars any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New("command").Parse(text)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", err
	}
	return out.String(), nil
}
