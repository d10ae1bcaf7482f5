package pipeline

import (
	"fmt"
	"sort"

	"github.com/gauntlet-ci/gauntlet/internal/stage"
)

// DefaultID names the canonical three-stage verification pipeline.
const DefaultID = "verify"

// DependencyGraph maps pipeline-scoped stage identifiers to the stage IDs they
// depend on. The keys are aliases corresponding to StageRef.InstanceID().
// The builtin pipeline keeps this empty: its stages are fully independent and
// may run concurrently or sequentially with identical observable outcomes.
type DependencyGraph map[string][]string

// Clone returns a deep copy of the graph.
func (g DependencyGraph) Clone() DependencyGraph {
	if len(g) == 0 {
		return nil
	}
	out := make(DependencyGraph, len(g))
	for key, deps := range g {
		if len(deps) == 0 {
			out[key] = nil
			continue
		}
		clone := make([]string, len(deps))
		copy(clone, deps)
		out[key] = clone
	}
	return out
}

// Definition declares an executable pipeline: which stages run for a trigger
// event and under what concurrency constraints.
type Definition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Stages      []StageRef        `json:"stages" yaml:"stages"`
	Graph       DependencyGraph   `json:"graph,omitempty" yaml:"graph,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Runtime     RuntimeConfig     `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Default returns the canonical verification pipeline: three mutually
// independent stages, each scored on its own.
func Default() Definition {
	return Definition{
		ID:   DefaultID,
		Name: "Verification Pipeline",
		Stages: []StageRef{
			{StageID: "check"},
			{StageID: "test"},
			{StageID: "lints"},
		},
	}
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Metadata:    cloneStringMap(def.Metadata),
		Graph:       def.Graph.Clone(),
		Runtime:     def.Runtime,
	}
	if len(def.Stages) > 0 {
		clone.Stages = make([]StageRef, len(def.Stages))
		for i, ref := range def.Stages {
			clone.Stages[i] = ref.Clone()
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("pipeline: id is required")
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("pipeline %s: at least one stage is required", def.ID)
	}
	seen := map[string]struct{}{}
	for idx, ref := range def.Stages {
		if err := ref.Validate(); err != nil {
			return fmt.Errorf("pipeline %s stage[%d]: %w", def.ID, idx, err)
		}
		instanceID := ref.InstanceID()
		if _, exists := seen[instanceID]; exists {
			return fmt.Errorf("pipeline %s: duplicate stage instance id %s", def.ID, instanceID)
		}
		seen[instanceID] = struct{}{}
	}
	for key, deps := range def.Graph {
		if _, ok := seen[key]; !ok {
			return fmt.Errorf("pipeline %s: graph references unknown stage %s", def.ID, key)
		}
		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("pipeline %s: graph dependency %s -> %s references unknown stage", def.ID, key, dep)
			}
		}
	}
	if err := def.Runtime.validate(); err != nil {
		return fmt.Errorf("pipeline %s runtime: %w", def.ID, err)
	}
	return nil
}

// Normalized clones the definition, merges inline stage dependencies into the
// graph, and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	if clone.Graph == nil {
		clone.Graph = DependencyGraph{}
	}
	for _, ref := range clone.Stages {
		id := ref.InstanceID()
		clone.Graph[id] = mergeDependencies(clone.Graph[id], ref.DependsOn)
	}
	clone.Runtime = clone.Runtime.normalized()
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// StageIDs returns the pipeline-scoped identifiers in declaration order.
func (def Definition) StageIDs() []string {
	ids := make([]string, 0, len(def.Stages))
	for _, ref := range def.Stages {
		ids = append(ids, ref.InstanceID())
	}
	return ids
}

// Dependencies returns the dependency list for a stage instance.
func (def Definition) Dependencies(id string) []string {
	if def.Graph == nil {
		return nil
	}
	deps := def.Graph[id]
	if len(deps) == 0 {
		return nil
	}
	clone := make([]string, len(deps))
	copy(clone, deps)
	return clone
}

// RuntimeConfig configures execution constraints for a pipeline.
type RuntimeConfig struct {
	MaxParallel int `json:"max_parallel,omitempty" yaml:"max_parallel,omitempty"`
}

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.MaxParallel < 0 {
		cfg.MaxParallel = 0
	}
	return cfg
}

func (cfg RuntimeConfig) validate() error {
	if cfg.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 0")
	}
	return nil
}

// StageRef describes how a pipeline composes and configures a stage.
type StageRef struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	StageID     string       `json:"stage" yaml:"stage"`
	Name        string       `json:"name,omitempty" yaml:"name,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string     `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Config      stage.Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// Clone returns a deep copy of the stage reference.
func (ref StageRef) Clone() StageRef {
	clone := StageRef{
		ID:          ref.ID,
		StageID:     ref.StageID,
		Name:        ref.Name,
		Description: ref.Description,
	}
	if len(ref.DependsOn) > 0 {
		clone.DependsOn = cloneStringSlice(ref.DependsOn)
	}
	if len(ref.Config) > 0 {
		clone.Config = make(stage.Config, len(ref.Config))
		for key, value := range ref.Config {
			clone.Config[key] = value
		}
	}
	return clone
}

// InstanceID returns the pipeline-local identifier used by dependency graphs.
func (ref StageRef) InstanceID() string {
	if ref.ID != "" {
		return ref.ID
	}
	return ref.StageID
}

// Validate ensures the reference is usable.
func (ref StageRef) Validate() error {
	if ref.StageID == "" {
		return fmt.Errorf("pipeline: stage id is required")
	}
	deps := append([]string{}, ref.DependsOn...)
	sort.Strings(deps)
	for i := 1; i < len(deps); i++ {
		if deps[i] == deps[i-1] {
			return fmt.Errorf("pipeline: stage %s has duplicate dependency on %s", ref.InstanceID(), deps[i])
		}
	}
	return nil
}

func mergeDependencies(existing, adds []string) []string {
	if len(adds) == 0 && len(existing) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, id := range existing {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	for _, id := range adds {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}

func cloneStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	clone := make(map[string]string, len(values))
	for key, value := range values {
		clone[key] = value
	}
	return clone
}
