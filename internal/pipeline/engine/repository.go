package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrStateNotFound is returned when no persisted run state exists.
var ErrStateNotFound = errors.New("engine: run state not found")

// StateStore persists run state snapshots.
type StateStore interface {
	Load(runID string) (State, error)
	Latest() (State, error)
	Save(State) error
}

// Repository stores run states as JSON files under the runs directory, with a
// latest.json pointer for consumers that only care about the newest run.
type Repository struct {
	dir string
}

// NewRepository creates a repository rooted at the runs directory.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir}
}

// Load reads one run's persisted state.
func (r *Repository) Load(runID string) (State, error) {
	return r.read(filepath.Join(r.dir, runID+".json"))
}

// Latest reads the most recently saved run state.
func (r *Repository) Latest() (State, error) {
	return r.read(filepath.Join(r.dir, "latest.json"))
}

// Save writes the run state to disk with best-effort atomicity.
func (r *Repository) Save(state State) error {
	if state.RunID == "" {
		return fmt.Errorf("engine: state requires a run id")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	if err := os.WriteFile(filepath.Join(r.dir, state.RunID+".json"), encoded, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, "latest.json"), encoded, 0o644)
}

func (r *Repository) read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, ErrStateNotFound
		}
		return State{}, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, err
	}
	return state, nil
}
