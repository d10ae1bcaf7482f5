package plugins

import (
	"strings"
	"testing"

	"github.com/gauntlet-ci/gauntlet/internal/toolchain"
)

func validDefinition() StageDefinition {
	return StageDefinition{
		ID:        "audit",
		Name:      "Dependency Audit",
		Toolchain: toolchain.Spec{Channel: "stable"},
		Commands: []CommandSpec{
			{Run: "cargo", Args: []string{"+{{.Channel}}", "audit"}},
		},
	}
}

func TestStageDefinitionValidate(t *testing.T) {
	t.Parallel()
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("valid definition rejected: %v", err)
	}

	missing := validDefinition()
	missing.ID = "  "
	if err := missing.Validate(); err == nil {
		t.Fatalf("expected error for blank id")
	}

	noCommands := validDefinition()
	noCommands.Commands = nil
	if err := noCommands.Validate(); err == nil || !strings.Contains(err.Error(), "command") {
		t.Fatalf("expected command error, got %v", err)
	}

	blankRun := validDefinition()
	blankRun.Commands = []CommandSpec{{Run: "   "}}
	if err := blankRun.Validate(); err == nil {
		t.Fatalf("expected error for blank command")
	}

	badComponent := validDefinition()
	badComponent.Toolchain.Components = []toolchain.Component{"miri"}
	if err := badComponent.Validate(); err == nil {
		t.Fatalf("expected error for unknown toolchain component")
	}
}

func TestStageDefinitionNormalized(t *testing.T) {
	t.Parallel()
	def := StageDefinition{
		ID:       "  audit  ",
		Commands: []CommandSpec{{Run: " cargo ", Args: []string{" audit "}}},
	}
	normalized := def.Normalized()
	if normalized.ID != "audit" {
		t.Fatalf("id = %q, want trimmed", normalized.ID)
	}
	if normalized.Name != "audit" {
		t.Fatalf("name = %q, want defaulted from id", normalized.Name)
	}
	if normalized.Toolchain.Channel != toolchain.DefaultChannel {
		t.Fatalf("channel = %q, want %q", normalized.Toolchain.Channel, toolchain.DefaultChannel)
	}
	if got := normalized.Commands[0].String(); got != "cargo audit" {
		t.Fatalf("command = %q, want trimmed", got)
	}
}
