package plugins

import (
	"fmt"
	"strings"

	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

// StageDefinition describes a custom verification stage loaded from
// .gauntlet/stages/*.yaml (or declared from an interpreted Go file).
//
// The struct mirrors the on-disk schema and is intentionally narrow so the
// runtime can validate plugin metadata before wiring it into a pipeline.
type StageDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Toolchain   toolchain.Spec `json:"toolchain,omitempty" yaml:"toolchain,omitempty"`
	Commands    []CommandSpec  `json:"commands" yaml:"commands"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def StageDefinition) Normalized() StageDefinition {
	clone := StageDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Toolchain:   def.Toolchain.Normalized(),
	}
	if clone.Name == "" {
		clone.Name = clone.ID
	}
	if len(def.Commands) > 0 {
		clone.Commands = make([]CommandSpec, len(def.Commands))
		for i, cmd := range def.Commands {
			clone.Commands[i] = cmd.normalized()
		}
	}
	return clone
}

// Validate ensures the stage definition is executable.
func (def StageDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if err := normalized.Toolchain.Validate(); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.ID, err)
	}
	if len(normalized.Commands) == 0 {
		return fmt.Errorf("plugin %s: at least one command is required", normalized.ID)
	}
	for idx, cmd := range normalized.Commands {
		if err := cmd.Validate(); err != nil {
			return fmt.Errorf("plugin %s: commands[%d]: %w", normalized.ID, idx, err)
		}
	}
	return nil
}

// CommandSpec declares one command the stage runs inside its workspace.
// Arguments may reference {{.Channel}} and {{.WorkDir}}; they are rendered
// against the stage's provisioned environment before execution.
type CommandSpec struct {
	Run  string   `json:"run" yaml:"run"`
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

func (cmd CommandSpec) normalized() CommandSpec {
	clone := CommandSpec{Run: strings.TrimSpace(cmd.Run)}
	if len(cmd.Args) > 0 {
		clone.Args = make([]string, 0, len(cmd.Args))
		for _, arg := range cmd.Args {
			clone.Args = append(clone.Args, strings.TrimSpace(arg))
		}
	}
	return clone
}

// Validate ensures the command names a program to run.
func (cmd CommandSpec) Validate() error {
	if cmd.normalized().Run == "" {
		return fmt.Errorf("run is required")
	}
	return nil
}

// String renders the command for log lines.
func (cmd CommandSpec) String() string {
	normalized := cmd.normalized()
	return strings.Join(append([]string{normalized.Run}, normalized.Args...), " ")
}
