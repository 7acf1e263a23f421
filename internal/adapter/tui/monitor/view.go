package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"suitcase-link/internal/adapter/tui/theme"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/threshold"
)

const (
	// fixedRows is the height reserved for everything but the event log.
	fixedRows = 26

	maxVisibleDevices = 5
)

// View renders the monitor.
func (m *Model) View() string {
	w := min(m.width, theme.MaxContentWidth)
	if w <= 0 {
		w = 80
	}

	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.viewHeader(),
			theme.Panel.Width(w-2).Render(m.help.View(w-2)),
			m.statusBar.View(),
		)
	}

	sections := []string{
		m.viewHeader(),
		m.viewConnection(w),
		m.viewWeight(w),
	}
	if m.snap.State.Is(domain.StateScanning) {
		sections = append(sections, m.viewDevices(w))
	}
	if m.alert != nil {
		sections = append(sections, theme.AlertPanel.Width(w-2).Render(
			theme.TextError.Render(theme.G.Alert+" "+m.alert.Title)+"\n"+m.alert.Body))
	}
	if m.notice != nil {
		sections = append(sections, theme.TextWarning.Render(m.notice.Render()))
	}
	sections = append(sections,
		theme.Panel.Width(w-2).Render(m.events.View()),
		m.statusBar.View(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) viewHeader() string {
	return theme.Title.Render(theme.G.Bag + " Suitcase Monitor")
}

func (m *Model) viewConnection(w int) string {
	transport := "none"
	if m.snap.Transport != "" {
		transport = string(m.snap.Transport)
	}

	lines := []string{
		theme.StatLabel.Render("State      ") + m.stateLabel(),
		theme.StatLabel.Render("Transport  ") + theme.StatValue.Render(transport),
	}
	if m.snap.RSSI != nil {
		lines = append(lines, theme.StatLabel.Render("Signal     ")+
			fmt.Sprintf("%s %d dBm", theme.SignalBars(*m.snap.RSSI), *m.snap.RSSI))
	}
	return theme.Panel.Width(w - 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) stateLabel() string {
	label := m.snap.State.String()
	switch m.snap.State.Kind {
	case domain.StateConnected:
		return theme.TextSuccess.Render(theme.G.Within + " " + label)
	case domain.StateScanning, domain.StateConnecting:
		return m.spinner.View() + " " + theme.TextInfo.Render(label)
	case domain.StateDisconnecting:
		return theme.TextWarning.Render(label)
	default:
		return theme.TextMuted.Render(label)
	}
}

func (m *Model) viewWeight(w int) string {
	class := m.snap.Class
	limit := formatLimit(class.ThresholdPounds(), m.unit)

	var head, status string
	fill := 0.0
	zone := threshold.ZoneGreen
	if r := m.snap.Latest; r != nil {
		head = theme.StatValue.Render(formatWeight(r.In(m.unit), m.unit)) +
			theme.StatLabel.Render(" / "+limit+"  "+class.Title())
		fill = threshold.Fill(r.Pounds(), class)
		if m.snap.Zone != "" {
			zone = m.snap.Zone
		}
		if m.snap.OverLimit {
			status = theme.TextError.Render(theme.G.Over + " Over the " + class.Title() + " allowance")
		} else {
			status = theme.TextSuccess.Render(theme.G.Within + " Within allowance")
		}
	} else {
		head = theme.TextMuted.Render("No reading yet") +
			theme.StatLabel.Render("  limit "+limit+"  "+class.Title())
		status = theme.Dim.Render("Connect to a suitcase to weigh it")
	}

	gauge := m.gauges[zone].ViewAs(fill)
	return theme.Panel.Width(w - 2).Render(strings.Join([]string{head, gauge, status}, "\n"))
}

func (m *Model) viewDevices(w int) string {
	devices := m.snap.Devices
	title := theme.Bold.Render("Nearby suitcases")
	if len(devices) == 0 {
		return theme.ActivePanel.Width(w - 2).Render(
			title + "\n" + m.spinner.View() + " " + theme.TextMuted.Render("Looking for suitcases"+theme.G.More))
	}

	start := 0
	if m.cursor >= maxVisibleDevices {
		start = m.cursor - maxVisibleDevices + 1
	}
	end := min(start+maxVisibleDevices, len(devices))

	lines := []string{title}
	for i := start; i < end; i++ {
		d := devices[i]
		row := fmt.Sprintf("%-24s %4d dBm  %s", d.DisplayName(), d.RSSI, theme.Dim.Render(d.ID))
		if i == m.cursor {
			lines = append(lines, theme.Selected.Render(theme.G.Cursor+" "+row))
		} else {
			lines = append(lines, "  "+row)
		}
	}
	if len(devices) > maxVisibleDevices {
		lines = append(lines, theme.Dim.Render(fmt.Sprintf("%d of %d", m.cursor+1, len(devices))))
	}
	return theme.ActivePanel.Width(w - 2).Render(strings.Join(lines, "\n"))
}

func formatWeight(v float64, unit domain.DisplayUnit) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " " + string(unit)
}

// formatLimit renders an allowance given in pounds. Pound limits are whole
// numbers; their kilogram equivalents are not.
func formatLimit(pounds float64, unit domain.DisplayUnit) string {
	if unit == domain.DisplayKilograms {
		return formatWeight(pounds*domain.KilogramsPerPound, unit)
	}
	return strconv.FormatFloat(pounds, 'f', -1, 64) + " " + string(unit)
}
