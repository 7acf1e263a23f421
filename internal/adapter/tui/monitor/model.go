package monitor

import (
	"context"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"suitcase-link/internal/adapter/tui/components"
	"suitcase-link/internal/adapter/tui/theme"
	"suitcase-link/internal/adapter/tui/uxerror"
	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/session"
	"suitcase-link/internal/usecase/threshold"
)

// Ensure *Model satisfies tea.Model.
var _ tea.Model = (*Model)(nil)

// Session is the part of the connectivity session the monitor drives.
type Session interface {
	SelectTransport(ctx context.Context, kind domain.TransportKind) error
	RequestScan(ctx context.Context) error
	Connect(ctx context.Context, deviceID string) error
	Disconnect(ctx context.Context) error
	SetClassOfTravel(ctx context.Context, class domain.ClassOfTravel) error
	Snapshot() session.Snapshot
}

// Deps are dependencies for the monitor.
type Deps struct {
	Session Session
	Bus     domain.EventBus
	Unit    domain.DisplayUnit
}

// Model is the root Bubble Tea model for the luggage monitor.
type Model struct {
	deps Deps

	snap   session.Snapshot
	unit   domain.DisplayUnit
	cursor int
	alert  *domain.Alert
	notice *uxerror.FriendlyError

	showHelp bool
	help     helpView

	gauges    map[threshold.Zone]progress.Model
	spinner   spinner.Model
	events    components.EventStreamModel
	statusBar components.StatusBarModel

	width  int
	height int

	programSend func(tea.Msg)
	unsubscribe func()
}

// New creates the monitor model.
func New(deps Deps) *Model {
	unit := deps.Unit
	if unit == "" {
		unit = domain.DisplayPounds
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	gauges := map[threshold.Zone]progress.Model{
		threshold.ZoneGreen:  newGauge(theme.GaugeGreen),
		threshold.ZoneYellow: newGauge(theme.GaugeYellow),
		threshold.ZoneRed:    newGauge(theme.GaugeRed),
	}

	sb := components.NewStatusBar()
	sb.Hints = defaultHints()

	events := components.NewEventStream()
	events.SetUnit(unit)

	m := &Model{
		deps:      deps,
		unit:      unit,
		gauges:    gauges,
		spinner:   s,
		events:    events,
		statusBar: sb,
	}
	m.refresh()
	return m
}

func newGauge(color string) progress.Model {
	return progress.New(
		progress.WithSolidFill(color),
		progress.WithoutPercentage(),
		progress.WithWidth(40),
	)
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "s", Desc: "Scan"},
		{Key: "enter", Desc: "Connect"},
		{Key: "d", Desc: "Disconnect"},
		{Key: "b/n", Desc: "Bluetooth/Network"},
		{Key: "c", Desc: "Class"},
		{Key: "u", Desc: "Units"},
		{Key: "?", Desc: "Help"},
		{Key: "q", Desc: "Quit"},
	}
}

// SetProgramSender sets the function used to inject messages from the EventBus.
// Must be called before Run().
func (m *Model) SetProgramSender(send func(tea.Msg)) {
	m.programSend = send
}

// Init subscribes to the EventBus and starts the spinner and refresh ticks.
func (m *Model) Init() tea.Cmd {
	if m.deps.Bus != nil && m.programSend != nil {
		m.unsubscribe = m.deps.Bus.SubscribeAll(func(_ context.Context, event domain.Event) {
			m.programSend(EventBusMsg{Event: event})
		})
	}
	return tea.Batch(m.spinner.Tick, refreshCmd())
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventBusMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case IntentDoneMsg:
		if msg.Err != nil {
			fe := uxerror.Humanize(msg.Err)
			m.notice = &fe
		}
		m.refresh()
		return m, nil

	case RefreshMsg:
		m.refresh()
		return m, refreshCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, m.quit()
	case tea.KeyUp:
		m.moveCursor(-1)
		return m, nil
	case tea.KeyDown:
		m.moveCursor(1)
		return m, nil
	case tea.KeyEnter:
		return m, m.connectSelected()
	case tea.KeyEsc:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		m.notice = nil
		m.alert = nil
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.events, cmd = m.events.Update(msg)
		return m, cmd
	}

	if msg.Type != tea.KeyRunes {
		return m, nil
	}

	sess := m.deps.Session
	switch string(msg.Runes) {
	case "q":
		return m, m.quit()
	case "?":
		m.showHelp = !m.showHelp
	case "k":
		m.moveCursor(-1)
	case "j":
		m.moveCursor(1)
	case "s":
		m.notice = nil
		return m, intentCmd("scan", sess.RequestScan)
	case "d":
		return m, intentCmd("disconnect", sess.Disconnect)
	case "b", "p":
		return m, m.selectTransport(domain.TransportPeripheral)
	case "n", "w":
		return m, m.selectTransport(domain.TransportNetwork)
	case "c":
		next := domain.ClassBusiness
		if m.snap.Class == domain.ClassBusiness {
			next = domain.ClassEconomy
		}
		return m, intentCmd("set class", func(ctx context.Context) error {
			return sess.SetClassOfTravel(ctx, next)
		})
	case "u":
		if m.unit == domain.DisplayPounds {
			m.unit = domain.DisplayKilograms
		} else {
			m.unit = domain.DisplayPounds
		}
		m.events.SetUnit(m.unit)
	}
	return m, nil
}

func (m *Model) selectTransport(kind domain.TransportKind) tea.Cmd {
	m.notice = nil
	return intentCmd("select transport", func(ctx context.Context) error {
		return m.deps.Session.SelectTransport(ctx, kind)
	})
}

func (m *Model) connectSelected() tea.Cmd {
	if !m.snap.State.Is(domain.StateScanning) || len(m.snap.Devices) == 0 {
		return nil
	}
	id := m.snap.Devices[m.cursor].ID
	return intentCmd("connect", func(ctx context.Context) error {
		return m.deps.Session.Connect(ctx, id)
	})
}

func (m *Model) moveCursor(delta int) {
	if len(m.snap.Devices) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = theme.Clamp(m.cursor+delta, 0, len(m.snap.Devices)-1)
}

func (m *Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	return tea.Quit
}

// handleEvent logs the event and reacts to alerts and transport errors.
func (m *Model) handleEvent(evt domain.Event) {
	m.events.AddEvent(evt)

	switch evt.Type {
	case domain.EventAlertFired:
		if a, err := domain.DecodePayload[domain.Alert](evt); err == nil {
			m.alert = &a
		}
	case domain.EventTransportError:
		if p, err := domain.DecodePayload[domain.TransportErrorPayload](evt); err == nil {
			fe := uxerror.HumanizeMessage(p.Message)
			m.notice = &fe
		}
	case domain.EventReading:
		if p, err := domain.DecodePayload[domain.ReadingPayload](evt); err == nil && !p.OverLimit {
			m.alert = nil
		}
	case domain.EventStateChanged:
		p, err := domain.DecodePayload[domain.StatePayload](evt)
		if err != nil {
			break
		}
		switch p.State.Kind {
		case domain.StateConnected:
			m.notice = nil
		case domain.StateIdle, domain.StateDisconnecting:
			m.alert = nil
		}
	}
	m.refresh()
}

// refresh re-reads the session snapshot. Bus events can arrive before the
// snapshot reflects them, so RefreshMsg keeps polling too.
func (m *Model) refresh() {
	if m.deps.Session == nil {
		return
	}
	m.snap = m.deps.Session.Snapshot()
	m.moveCursor(0)

	m.statusBar.SetSnapshot(m.snap)
}

func (m *Model) layout() {
	w := min(m.width, theme.MaxContentWidth)
	m.statusBar.SetWidth(m.width)

	gaugeWidth := max(w-8, 10)
	for zone, g := range m.gauges {
		g.Width = gaugeWidth
		m.gauges[zone] = g
	}

	// The event log gets whatever the fixed panels leave.
	eventsHeight := max(m.height-fixedRows, 3)
	m.events.SetSize(w-2, eventsHeight)
}
