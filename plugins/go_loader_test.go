package plugins

import (
	"os"
	"path/filepath"
	"testing"
)

const goPluginSource = `package stages

func StageDefinitions() ([]map[string]any, error) {
	return []map[string]any{
		{
			"id":   "bench",
			"name": "Benchmarks",
			"commands": []map[string]any{
				{"run": "cargo", "args": []any{"+{{.Channel}}", "bench"}},
			},
		},
	}, nil
}
`

func TestLoadGoDefinitionDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bench.go"), []byte(goPluginSource), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	defs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) != 1 {
		t.Fatalf("defs = %+v, want one stage", defs)
	}
	def := defs[0].Definition
	if def.ID != "bench" || len(def.Commands) != 1 || def.Commands[0].Run != "cargo" {
		t.Fatalf("definition = %+v, want bench stage", def)
	}
}

func TestLoadGoDefinitionDirRejectsMissingFunc(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := "package stages\n\nfunc Other() {}\n"
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadGoDefinitionDir(dir); err == nil {
		t.Fatalf("expected error for file without StageDefinitions")
	}
}
