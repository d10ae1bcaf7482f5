package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const auditYAML = `id: audit
name: Dependency Audit
toolchain:
  channel: stable
commands:
  - run: cargo
    args: ["+{{.Channel}}", "audit"]
`

func TestParseDefinitionYAML(t *testing.T) {
	t.Parallel()
	def, err := ParseDefinitionYAML([]byte(auditYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.ID != "audit" || len(def.Commands) != 1 {
		t.Fatalf("parsed = %+v, want audit stage with one command", def)
	}

	if _, err := ParseDefinitionYAML([]byte("   \n")); err == nil {
		t.Fatalf("expected error for empty payload")
	}
	if _, err := ParseDefinitionYAML([]byte("id: broken\ncommands: []\n")); err == nil {
		t.Fatalf("expected validation error for empty command list")
	}
}

func TestLoadDefinitionDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "audit.yaml"), []byte(auditYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	defs, err := LoadDefinitionDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 || defs[0].Definition.ID != "audit" {
		t.Fatalf("defs = %+v, want only the audit stage", defs)
	}
}

func TestLoadDefinitionDirMissingIsEmpty(t *testing.T) {
	t.Parallel()
	defs, err := LoadDefinitionDir(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 0 {
		t.Fatalf("defs = %+v, want none for a missing directory", defs)
	}
}
