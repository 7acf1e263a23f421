package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"suitcase-link/internal/adapter/tui/theme"
	"suitcase-link/internal/domain"
)

const maxEventEntries = 500

// EventStreamModel displays a scrollable log of session events with smart
// auto-scroll.
type EventStreamModel struct {
	Viewport viewport.Model
	events   []domain.Event
	unit     domain.DisplayUnit
	ready    bool
	atBottom bool
	width    int
	height   int
}

// NewEventStream creates an event stream viewer.
func NewEventStream() EventStreamModel {
	return EventStreamModel{atBottom: true, unit: domain.DisplayPounds}
}

// SetSize sets the viewport dimensions.
func (m *EventStreamModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if !m.ready {
		m.Viewport = viewport.New(w, h)
		m.Viewport.MouseWheelEnabled = true
		m.Viewport.MouseWheelDelta = 3
		m.ready = true
	} else {
		m.Viewport.Width = w
		m.Viewport.Height = h
	}
	m.refreshContent()
}

// SetUnit changes the unit readings are summarized in.
func (m *EventStreamModel) SetUnit(u domain.DisplayUnit) {
	m.unit = u
	m.refreshContent()
}

// AddEvent appends an event and auto-scrolls if at bottom.
func (m *EventStreamModel) AddEvent(event domain.Event) {
	m.events = append(m.events, event)
	if len(m.events) > maxEventEntries {
		m.events = m.events[len(m.events)-maxEventEntries:]
	}
	m.refreshContent()
	if m.atBottom {
		m.Viewport.GotoBottom()
	}
}

// Update handles viewport scrolling.
func (m EventStreamModel) Update(msg tea.Msg) (EventStreamModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	m.atBottom = m.Viewport.AtBottom()
	return m, cmd
}

// EventCount returns the number of retained events.
func (m EventStreamModel) EventCount() int {
	return len(m.events)
}

// View renders the event stream.
func (m EventStreamModel) View() string {
	if !m.ready {
		return ""
	}
	return m.Viewport.View()
}

func (m *EventStreamModel) refreshContent() {
	if !m.ready {
		return
	}

	if len(m.events) == 0 {
		m.Viewport.SetContent(theme.TextMuted.Render("  Waiting for events..."))
		return
	}

	var sb strings.Builder
	for _, evt := range m.events {
		ts := evt.Timestamp.Format("15:04:05")
		paddedType := fmt.Sprintf("%-24s", string(evt.Type))

		var typeStyled string
		switch evt.Type {
		case domain.EventAlertFired:
			typeStyled = theme.TextError.Render(paddedType)
		case domain.EventTransportError:
			typeStyled = theme.TextWarning.Render(paddedType)
		case domain.EventReading:
			typeStyled = theme.TextInfo.Render(paddedType)
		case domain.EventStateChanged, domain.EventTransportSet:
			typeStyled = theme.TextAccent.Render(paddedType)
		default:
			typeStyled = theme.TextMuted.Render(paddedType)
		}

		sb.WriteString(fmt.Sprintf("  %s  %s %s\n",
			theme.Dim.Render(ts),
			typeStyled,
			theme.TextMuted.Render(SummarizeEvent(evt, m.unit)),
		))
	}

	m.Viewport.SetContent(sb.String())
}

// SummarizeEvent renders the interesting part of an event payload as one
// short line. Undecodable payloads summarize to "".
func SummarizeEvent(evt domain.Event, unit domain.DisplayUnit) string {
	switch evt.Type {
	case domain.EventStateChanged:
		p, err := domain.DecodePayload[domain.StatePayload](evt)
		if err != nil {
			return ""
		}
		return p.State.String()
	case domain.EventDevicesUpdated:
		p, err := domain.DecodePayload[domain.DevicesPayload](evt)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%d device(s)", len(p.Devices))
	case domain.EventLinkQuality:
		p, err := domain.DecodePayload[domain.LinkQualityPayload](evt)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%s %d dBm", p.DeviceID, p.RSSI)
	case domain.EventReading:
		p, err := domain.DecodePayload[domain.ReadingPayload](evt)
		if err != nil {
			return ""
		}
		line := fmt.Sprintf("%.2f %s", p.Reading.In(unit), unit)
		if p.OverLimit {
			line += " over limit"
		}
		return line
	case domain.EventAlertFired:
		a, err := domain.DecodePayload[domain.Alert](evt)
		if err != nil {
			return ""
		}
		return a.Body
	case domain.EventTransportError:
		p, err := domain.DecodePayload[domain.TransportErrorPayload](evt)
		if err != nil {
			return ""
		}
		return string(p.Transport) + ": " + p.Message
	case domain.EventTransportSet:
		p, err := domain.DecodePayload[domain.TransportPayload](evt)
		if err != nil {
			return ""
		}
		if p.Transport == "" {
			return "none"
		}
		return string(p.Transport)
	case domain.EventClassChanged:
		p, err := domain.DecodePayload[domain.ClassPayload](evt)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("%s (%g lbs)", p.Class.Title(), p.Threshold)
	}
	return ""
}
