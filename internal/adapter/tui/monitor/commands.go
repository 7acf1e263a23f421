package monitor

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// intentTimeout bounds how long a key press waits on the session loop.
const intentTimeout = 5 * time.Second

// refreshInterval is how often the snapshot is re-read without events.
const refreshInterval = 500 * time.Millisecond

// intentCmd runs a session intent off the UI goroutine.
func intentCmd(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		return IntentDoneMsg{Op: op, Err: fn(ctx)}
	}
}

// refreshCmd fires a RefreshMsg after refreshInterval.
func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(_ time.Time) tea.Msg {
		return RefreshMsg{}
	})
}
