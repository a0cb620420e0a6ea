// Package tui renders a live view of the analysis session: the current
// note, input level and a scrolling pitch lane. All drawing decisions live
// here; the timeline and viewport stay renderer-agnostic.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cyrus07424/hummingMelodyTranscriber/session"
	"github.com/cyrus07424/hummingMelodyTranscriber/timeline"
)

const (
	// refresh interval of the view; capture runs independently
	tickInterval = 100 * time.Millisecond

	// time constant for the smoothed frequency readout; display only,
	// never applied to timeline data
	smoothingTau = 0.35

	// width of the recent window the z key zooms to
	zoomWindow = 5.0
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			PaddingLeft(2).
			PaddingRight(2).
			MarginBottom(1)

	noteStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1E6E50")).
			Padding(0, 2)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	laneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BE9FD"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// TickMsg drives the periodic refresh
type TickMsg time.Time

// Model is the bubbletea model for the live view
type Model struct {
	session  *session.Session
	viewport timeline.Viewport

	width  int
	height int

	smoothedFreq float64
	lastTick     time.Time
	quitting     bool
}

// NewModel creates the live view for a session
func NewModel(s *session.Session) Model {
	return Model{session: s}
}

// Init starts the refresh ticker
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles input and refresh ticks
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.viewport.Reset()
			return m, nil
		case "z":
			if _, end, ok := m.session.Span(); ok {
				m.viewport.SelectTimeRange(end-zoomWindow, end)
			}
			return m, nil
		case "p":
			events := m.session.Snapshot()
			if len(events) > 0 {
				last := events[len(events)-1]
				m.viewport.SelectPitchRange(last.MIDI-6, last.MIDI+6)
			}
			return m, nil
		}
		return m, nil

	case TickMsg:
		now := time.Time(msg)
		if !m.lastTick.IsZero() {
			m.smoothedFreq = m.smooth(now.Sub(m.lastTick))
		}
		m.lastTick = now
		return m, tick()
	}

	return m, nil
}

// smooth moves the displayed frequency toward the latest estimate with an
// exponential time constant, so the readout does not flicker between hops.
func (m Model) smooth(dt time.Duration) float64 {
	events := m.session.Snapshot()
	if len(events) == 0 {
		return 0
	}
	target := events[len(events)-1].Frequency
	if m.smoothedFreq == 0 {
		return target
	}
	alpha := 1 - math.Exp(-dt.Seconds()/smoothingTau)
	return m.smoothedFreq + alpha*(target-m.smoothedFreq)
}

// View renders the full screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Humming Melody Transcriber"))
	b.WriteString("\n\n")

	b.WriteString(m.renderCurrentNote())
	b.WriteString("\n")
	b.WriteString(m.renderLevel())
	b.WriteString("\n\n")
	b.WriteString(m.renderLane())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("z zoom recent · p zoom pitch · r reset · q quit"))

	return b.String()
}

func (m Model) renderCurrentNote() string {
	events := m.session.Snapshot()
	if len(events) == 0 {
		return infoStyle.Render("listening…")
	}

	last := events[len(events)-1]
	label := fmt.Sprintf(" %s ", last.Note)

	freq := m.smoothedFreq
	if freq == 0 {
		freq = last.Frequency
	}

	return noteStyle.Render(label) + infoStyle.Render(fmt.Sprintf("  %.1f Hz · midi %d", freq, last.MIDI))
}

func (m Model) renderLevel() string {
	lvl := m.session.Level()

	// map [-60, 0] dBFS onto the meter
	width := 30
	filled := int((lvl.DB + 60) / 60 * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return infoStyle.Render(fmt.Sprintf("level %s %6.1f dB", bar, lvl.DB))
}

// renderLane draws the pitch-over-time lane for the visible window. The
// session's locked queries hand out copies, so drawing never races the
// capture producer.
func (m Model) renderLane() string {
	fullStart, fullEnd, ok := m.session.Span()
	if !ok {
		return ""
	}

	start, end := m.viewport.TimeRange(fullStart, fullEnd)
	visible := m.session.EventsBetween(start, end)
	minMIDI, maxMIDI := m.viewport.PitchRange(visible)

	width := m.width - 10
	if width < 20 {
		width = 60
	}
	rows := maxMIDI - minMIDI + 1
	if rows > 24 {
		rows = 24
	}

	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", width))
	}

	span := end - start
	if span <= 0 {
		span = timeline.MinTimeSpan
	}
	for _, ev := range visible {
		col := int((ev.Time - start) / span * float64(width-1))
		row := rows - 1 - (ev.MIDI-minMIDI)*rows/(maxMIDI-minMIDI+1)
		if col < 0 || col >= width || row < 0 || row >= rows {
			continue
		}
		grid[row][col] = '•'
	}

	// grid lines from the timeline's adaptive tick spacing
	for _, tickTime := range timeline.GridLines(start, end) {
		col := int((tickTime - start) / span * float64(width-1))
		if col < 0 || col >= width {
			continue
		}
		for r := range grid {
			if grid[r][col] == ' ' {
				grid[r][col] = '·'
			}
		}
	}

	var b strings.Builder
	for r, line := range grid {
		midiAtRow := maxMIDI - r*(maxMIDI-minMIDI+1)/rows
		b.WriteString(infoStyle.Render(fmt.Sprintf("%4d ", midiAtRow)))
		b.WriteString(laneStyle.Render(string(line)))
		b.WriteString("\n")
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("     %.1fs – %.1fs", start, end)))

	return b.String()
}
