// Package monitor implements the Bubble Tea luggage monitor: live weight
// gauge, discovery list and session controls.
package monitor

import "suitcase-link/internal/domain"

// EventBusMsg wraps a domain.Event from the EventBus subscription.
type EventBusMsg struct {
	Event domain.Event
}

// IntentDoneMsg reports the outcome of a session intent issued from a key.
type IntentDoneMsg struct {
	Op  string
	Err error
}

// RefreshMsg asks the model to re-read the session snapshot.
type RefreshMsg struct{}
