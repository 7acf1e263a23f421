package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventStateChanged   EventType = "session.state"
	EventDevicesUpdated EventType = "session.devices"
	EventLinkQuality    EventType = "session.link_quality"
	EventReading        EventType = "session.reading"
	EventAlertFired     EventType = "session.alert"
	EventTransportError EventType = "session.transport_error"
	EventTransportSet   EventType = "session.transport"
	EventClassChanged   EventType = "session.class"
)

// Event is the envelope published on the event bus.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unmarshals the event payload into T.
func DecodePayload[T any](e Event) (T, error) {
	var v T
	if len(e.Payload) == 0 {
		return v, fmt.Errorf("decode %s payload: empty", e.Type)
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return v, nil
}

// Payloads carried by session events.
type (
	StatePayload struct {
		State     ConnectionState `json:"state"`
		Transport TransportKind   `json:"transport,omitempty"`
	}

	DevicesPayload struct {
		Devices []Device `json:"devices"`
	}

	LinkQualityPayload struct {
		DeviceID string `json:"device_id"`
		RSSI     int    `json:"rssi"`
	}

	ReadingPayload struct {
		Reading   Reading       `json:"reading"`
		Pounds    float64       `json:"pounds"`
		Threshold float64       `json:"threshold"`
		OverLimit bool          `json:"over_limit"`
		Class     ClassOfTravel `json:"class"`
	}

	TransportErrorPayload struct {
		Transport TransportKind `json:"transport"`
		Message   string        `json:"message"`
	}

	TransportPayload struct {
		Transport TransportKind `json:"transport,omitempty"`
	}

	ClassPayload struct {
		Class     ClassOfTravel `json:"class"`
		Threshold float64       `json:"threshold"`
	}
)

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for session events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// DrainingBus is an EventBus whose subscriptions can be detached without
// losing queued events.
type DrainingBus interface {
	EventBus
	// SubscribeDrained is Subscribe, except the returned function delivers
	// events already queued for handler and waits for it to finish. It must
	// not be called from inside handler.
	SubscribeDrained(eventType EventType, handler EventHandler) func()
}
