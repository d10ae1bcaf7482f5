package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gauntlet-ci/gauntlet/internal/pipeline/engine"
)

var (
	titleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStylePending = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// View renders the run snapshot.
func (m Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Run monitor error: %v\n", m.err)
	}
	if !m.loaded {
		return m.spin.View() + " Waiting for a run…\n"
	}
	lines := []string{
		titleStyle.Render("GAUNTLET") + " · " + m.headerLine(),
		"",
	}
	for _, status := range m.state.Stages {
		lines = append(lines, m.renderStageLine(status))
		if detail := stageDetail(status); detail != "" {
			lines = append(lines, detailTextStyle.Render("    "+detail))
		}
	}
	lines = append(lines, "", m.verdictLine(), "")
	if !m.state.Terminal() {
		lines = append(lines, "q=quit")
	}
	return strings.Join(lines, "\n")
}

func (m Model) headerLine() string {
	header := fmt.Sprintf("run %s · pipeline %s", m.state.RunID, m.state.PipelineID)
	if target := m.state.Event.CheckoutTarget(); target != "" {
		header += " · " + target
	}
	return header
}

func (m Model) renderStageLine(status engine.StageStatus) string {
	var label string
	switch status.State {
	case engine.StageStateSuccess:
		label = labelStyleSuccess.Render("passed")
	case engine.StageStateFailure:
		text := "failed"
		if status.Class != "" {
			text = fmt.Sprintf("failed · %s", status.Class)
		}
		label = labelStyleFailure.Render(text)
	case engine.StageStateRunning:
		label = m.spin.View() + labelStyleRunning.Render("running")
	default:
		label = labelStylePending.Render("pending")
	}
	return fmt.Sprintf("  %-12s [%s]", status.Name, label)
}

func stageDetail(status engine.StageStatus) string {
	var parts []string
	if status.State == engine.StageStateFailure && status.Message != "" {
		parts = append(parts, status.Message)
	}
	if status.LogPath != "" && status.State.Terminal() {
		parts = append(parts, "log: "+status.LogPath)
	}
	return strings.Join(parts, " · ")
}

func (m Model) verdictLine() string {
	switch m.state.Status {
	case engine.RunStatusPassed:
		return labelStyleSuccess.Render("PASSED") + detailTextStyle.Render(" · all stages succeeded")
	case engine.RunStatusFailed:
		line := labelStyleFailure.Render("FAILED")
		if m.state.StatusReason != "" {
			line += detailTextStyle.Render(" · " + m.state.StatusReason)
		}
		return line
	default:
		return labelStyleRunning.Render("RUNNING")
	}
}
