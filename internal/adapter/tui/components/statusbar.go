package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"suitcase-link/internal/adapter/tui/theme"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/session"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "s"
	Desc string // e.g. "Scan"
}

// StatusBarModel renders the bottom line: key hints on the left and the
// link status from the last session snapshot on the right.
type StatusBarModel struct {
	Hints []KeyHint
	snap  session.Snapshot
	width int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{snap: session.Snapshot{State: domain.Idle()}}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// SetSnapshot replaces the session state the bar renders.
func (m *StatusBarModel) SetSnapshot(s session.Snapshot) {
	m.snap = s
}

// linkSegment is the connection state, with the device name once one is
// chosen.
func (m StatusBarModel) linkSegment() string {
	st := m.snap.State
	switch st.Kind {
	case domain.StateConnected:
		return theme.TextSuccess.Render(theme.G.Link + " " + st.Device.DisplayName())
	case domain.StateConnecting:
		return theme.TextInfo.Render("Connecting to " + st.Device.DisplayName() + theme.G.More)
	case domain.StateScanning:
		return theme.TextInfo.Render(fmt.Sprintf("Scanning%s %d found", theme.G.More, len(m.snap.Devices)))
	case domain.StateDisconnecting:
		return theme.TextWarning.Render("Disconnecting" + theme.G.More)
	default:
		return theme.TextMuted.Render(theme.G.NoLink + " Idle")
	}
}

// segments returns the right-hand parts, most important first.
func (m StatusBarModel) segments() []string {
	parts := []string{m.linkSegment()}
	if m.snap.RSSI != nil {
		parts = append(parts, theme.TextMuted.Render(
			fmt.Sprintf("%s %d dBm", theme.SignalBars(*m.snap.RSSI), *m.snap.RSSI)))
	}
	if m.snap.Transport != "" {
		parts = append(parts, theme.TextMuted.Render(string(m.snap.Transport)))
	}
	if m.snap.Class != "" {
		parts = append(parts, theme.TextMuted.Render(m.snap.Class.Title()))
	}
	return parts
}

// View renders the status bar as a single line. When the line is too narrow
// the right-hand segments are dropped from the end, then the hints.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	sep := " " + theme.Dim.Render(theme.G.Sep) + " "
	parts := m.segments()
	right := strings.Join(parts, sep)
	for len(parts) > 1 && m.width > 0 && lipgloss.Width(left)+lipgloss.Width(right)+1 > m.width {
		parts = parts[:len(parts)-1]
		right = strings.Join(parts, sep)
	}
	if m.width > 0 && lipgloss.Width(left)+lipgloss.Width(right)+1 > m.width {
		left = ""
	}

	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return theme.StatusBar.Width(m.width).Render(bar)
}
