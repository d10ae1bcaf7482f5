package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Store hands out one log file per stage execution under
// .gauntlet/logs/<run-id>/<stage-id>.log. The log is the only artifact a
// stage leaves behind besides its status.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the project's log directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Create opens the log file for a single stage execution.
func (s *Store) Create(runID, stageID string) (*Log, error) {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(stageID) == "" {
		return nil, fmt.Errorf("runlog: run and stage ids are required")
	}
	runDir := filepath.Join(s.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: ensure run dir: %w", err)
	}
	path := filepath.Join(runDir, stageID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Log collects the captured output of one stage.
type Log struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// Path returns the file backing this log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Section writes a timestamped header before a command's output block.
func (l *Log) Section(title string) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "--- %s [%s]\n", title, time.Now().Format(time.RFC3339))
}

// Write appends raw command output, satisfying io.Writer.
func (l *Log) Write(p []byte) (int, error) {
	if l == nil || l.file == nil {
		return len(p), nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Write(p)
}

// Close releases the file handle.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
