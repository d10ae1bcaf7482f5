// internal/tui/app.go
//
// Terminal run monitor for Gauntlet. It uses bubbletea, which follows The Elm
// Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gauntlet-ci/gauntlet/internal/pipeline/engine"
)

const stateRefreshInterval = time.Second

type stateMsg struct {
	state engine.State
	err   error
}

type refreshRequest struct{}

// Model is the run monitor's application state. It polls the state store so
// it observes the same snapshots any other consumer would.
type Model struct {
	store engine.StateStore
	runID string

	state    engine.State
	loaded   bool
	err      error
	spin     spinner.Model
	quitting bool
}

// ModelOption customizes Model construction for tests.
type ModelOption func(*Model)

// WithRefreshSpinner overrides the spinner component.
func WithRefreshSpinner(s spinner.Model) ModelOption {
	return func(m *Model) { m.spin = s }
}

// NewModel builds a monitor for one run. An empty runID follows the newest run.
func NewModel(store engine.StateStore, runID string, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	m := Model{store: store, runID: runID, spin: s}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner and the first state fetch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.fetchState())
}

// Update routes messages per the Elm loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case stateMsg:
		if msg.err != nil {
			// A run may not exist yet when the monitor starts first.
			if errors.Is(msg.err, engine.ErrStateNotFound) {
				return m, m.scheduleRefresh()
			}
			m.err = msg.err
			return m, tea.Quit
		}
		m.err = nil
		m.loaded = true
		m.state = msg.state
		if m.state.Terminal() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.scheduleRefresh()
	case refreshRequest:
		return m, m.fetchState()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m Model) fetchState() tea.Cmd {
	return func() tea.Msg {
		if m.runID == "" {
			state, err := m.store.Latest()
			return stateMsg{state: state, err: err}
		}
		state, err := m.store.Load(m.runID)
		return stateMsg{state: state, err: err}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	return tea.Tick(stateRefreshInterval, func(time.Time) tea.Msg {
		return refreshRequest{}
	})
}

// State returns the last snapshot the monitor observed.
func (m Model) State() (engine.State, bool) {
	return m.state, m.loaded
}

// Err returns the error that stopped the monitor, if any.
func (m Model) Err() error {
	return m.err
}

// Run blocks until the monitored run reaches a terminal status or the user
// quits, then returns the final observed state.
func Run(store engine.StateStore, runID string) (engine.State, error) {
	program := tea.NewProgram(NewModel(store, runID))
	final, err := program.Run()
	if err != nil {
		return engine.State{}, err
	}
	model, ok := final.(Model)
	if !ok {
		return engine.State{}, errors.New("tui: unexpected model type")
	}
	if model.err != nil {
		return engine.State{}, model.err
	}
	return model.state, nil
}
