package plugins

import (
	"fmt"

	"github.com/gauntlet-ci/gauntlet/internal/config"
	"github.com/gauntlet-ci/gauntlet/internal/stage"
)

// RegisterCustomStages discovers YAML and Go stage definitions under
// .gauntlet/stages and registers them alongside the builtin stages.
func RegisterCustomStages(reg *stage.Registry, cfg *config.Config) error {
	if reg == nil || cfg == nil {
		return nil
	}
	return RegisterStagesFromDir(reg, cfg.StagesDir())
}

// RegisterStagesFromDir registers every stage definition found in dir.
func RegisterStagesFromDir(reg *stage.Registry, dir string) error {
	defs, err := loadAllDefinitionFiles(dir)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return fmt.Errorf("plugin: duplicate stage id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		defCopy := def
		if err := reg.Register(defCopy.ID, func(stage.Config) (stage.Stage, error) {
			return newCommandStage(defCopy)
		}); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.ID, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
