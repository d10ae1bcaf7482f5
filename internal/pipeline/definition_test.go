package pipeline

import (
	"path/filepath"
	"testing"
)

func TestDefaultPipelineHasThreeIndependentStages(t *testing.T) {
	def, err := Default().Normalized()
	if err != nil {
		t.Fatalf("normalize default: %v", err)
	}
	ids := def.StageIDs()
	want := []string{"check", "test", "lints"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
	for _, id := range ids {
		if deps := def.Dependencies(id); len(deps) != 0 {
			t.Fatalf("stage %s must be independent, has deps %v", id, deps)
		}
	}
}

func TestValidateRejectsDuplicateInstances(t *testing.T) {
	def := Definition{
		ID:     "p",
		Stages: []StageRef{{StageID: "check"}, {StageID: "check"}},
	}
	if err := def.Validate(); err == nil {
		t.Fatalf("expected duplicate instance error")
	}
}

func TestValidateRejectsUnknownGraphReference(t *testing.T) {
	def := Definition{
		ID:     "p",
		Stages: []StageRef{{StageID: "check"}},
		Graph:  DependencyGraph{"check": {"missing"}},
	}
	if err := def.Validate(); err == nil {
		t.Fatalf("expected unknown dependency error")
	}
}

func TestNormalizedMergesInlineDependencies(t *testing.T) {
	def := Definition{
		ID: "p",
		Stages: []StageRef{
			{StageID: "check"},
			{ID: "audit", StageID: "custom-audit", DependsOn: []string{"check"}},
		},
	}
	normalized, err := def.Normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	deps := normalized.Dependencies("audit")
	if len(deps) != 1 || deps[0] != "check" {
		t.Fatalf("inline depends_on not merged: %v", deps)
	}
}

func TestParseDefinitionYAML(t *testing.T) {
	payload := []byte(`
id: verify
stages:
  - stage: check
  - stage: test
  - stage: lints
    config:
      channel: stable
runtime:
  max_parallel: 2
`)
	def, err := ParseDefinitionYAML(payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Runtime.MaxParallel != 2 {
		t.Fatalf("runtime not decoded: %+v", def.Runtime)
	}
	if def.Stages[2].Config["channel"] != "stable" {
		t.Fatalf("stage config not decoded: %+v", def.Stages[2])
	}
}

func TestParseDefinitionYAMLEmpty(t *testing.T) {
	if _, err := ParseDefinitionYAML([]byte("  \n")); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestLoadDefinitionFileFallsBackToDefault(t *testing.T) {
	def, err := LoadDefinitionFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if def.ID != DefaultID {
		t.Fatalf("expected default pipeline, got %s", def.ID)
	}
	if len(def.Stages) != 3 {
		t.Fatalf("expected three stages, got %d", len(def.Stages))
	}
}
