// SPDX-License-Identifier: MIT

// Package tui draws the live pitch class profile and the current chord in
// the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chordscope/internal/analysis"
	"chordscope/internal/pipeline"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	barHeight = 12
	barWidth  = 3
	barGap    = 1
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	chordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	uncertainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5C07B"))

	noteStyle = lipgloss.NewStyle().
			Width(barWidth).
			Align(lipgloss.Center)
)

// barColors gives each pitch class its own hue. Pitch classes a fifth
// apart get neighbouring hues.
var barColors = func() [12]lipgloss.Color {
	var out [12]lipgloss.Color
	for pc := range out {
		c := colorful.Hsl(float64(pc*7%12)*30, 0.65, 0.55)
		out[pc] = lipgloss.Color(c.Hex())
	}
	return out
}()

type tickMsg time.Time

// Model is the Bubble Tea model for the live chord display.
type Model struct {
	provider pipeline.SnapshotProvider
	gate     *analysis.Gate
	refresh  time.Duration
	device   string

	snap *pipeline.Snapshot
	keys keyMap
	help help.Model
}

// NewModel creates a display that polls provider every refresh interval.
// gate may be nil, in which case the gate key does nothing.
func NewModel(provider pipeline.SnapshotProvider, gate *analysis.Gate, refresh time.Duration, device string) Model {
	return Model{
		provider: provider,
		gate:     gate,
		refresh:  refresh,
		device:   device,
		keys:     defaultKeyMap(),
		help:     help.New(),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the refresh timer.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles refresh ticks and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if snap := m.provider.Latest(); snap != nil {
			m.snap = snap
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Gate):
			if m.gate != nil {
				m.gate.Toggle()
			}
		}
	}
	return m, nil
}

// View renders the UI
func (m Model) View() string {
	var sb strings.Builder

	title := "chordscope"
	if m.device != "" {
		title += " · " + m.device
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	if m.snap == nil {
		sb.WriteString(uncertainStyle.Render("Listening..."))
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(renderDecision(m.snap))
		sb.WriteString("\n\n")
		sb.WriteString(renderBars(m.snap.Profile.Fold12(), barHeight))
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func renderDecision(snap *pipeline.Snapshot) string {
	text := snap.Decision.String()
	if snap.Decision.Confident() {
		return chordStyle.Render(text)
	}
	return uncertainStyle.Render(text)
}

func (m Model) renderStatus() string {
	var parts []string
	if m.gate != nil {
		if m.gate.Enabled() {
			parts = append(parts, fmt.Sprintf("gate on (%.4f)", m.gate.Threshold()))
		} else {
			parts = append(parts, "gate off")
		}
	}
	if m.snap != nil {
		parts = append(parts, fmt.Sprintf("#%d", m.snap.Seq))
	}
	status := statusStyle.Render(strings.Join(parts, " · "))

	if m.snap != nil {
		switch {
		case m.snap.Failed:
			status += " " + warnStyle.Render("analysis failed")
		case m.snap.Gated:
			status += " " + warnStyle.Render("silence")
		}
	}
	return status
}

// renderBars draws one vertical bar per pitch class scaled to the largest
// bin, with note names underneath.
func renderBars(profile [12]float64, height int) string {
	var peak float64
	for _, v := range profile {
		peak = max(peak, v)
	}

	var levels [12]int
	if peak > 0 {
		for pc, v := range profile {
			levels[pc] = int(v/peak*float64(height) + 0.5)
		}
	}

	gap := strings.Repeat(" ", barGap)
	block := strings.Repeat("█", barWidth)
	empty := strings.Repeat(" ", barWidth)

	var sb strings.Builder
	for row := height; row >= 1; row-- {
		for pc := range profile {
			if pc > 0 {
				sb.WriteString(gap)
			}
			if levels[pc] >= row {
				sb.WriteString(lipgloss.NewStyle().Foreground(barColors[pc]).Render(block))
			} else {
				sb.WriteString(empty)
			}
		}
		sb.WriteString("\n")
	}
	for pc := range profile {
		if pc > 0 {
			sb.WriteString(gap)
		}
		sb.WriteString(noteStyle.Render(analysis.PitchClassName(pc)))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Run shows the display until the user quits or ctx is canceled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil) {
		return nil
	}
	return err
}
