package domain

import "fmt"

// Device is a discoverable peripheral. ID is assigned by the transport and is
// unique within one discovery session.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	RSSI int    `json:"rssi"`
}

// DisplayName returns the advertised name, or a placeholder when the
// peripheral did not advertise one.
func (d Device) DisplayName() string {
	if d.Name == "" {
		return "Unknown Device"
	}
	return d.Name
}

// StateKind enumerates the connection state machine.
type StateKind string

const (
	StateIdle          StateKind = "idle"
	StateScanning      StateKind = "scanning"
	StateConnecting    StateKind = "connecting"
	StateConnected     StateKind = "connected"
	StateDisconnecting StateKind = "disconnecting"
)

// ConnectionState is the single live state of a session. Device is set only
// for Connecting and Connected.
type ConnectionState struct {
	Kind   StateKind `json:"kind"`
	Device *Device   `json:"device,omitempty"`
}

// Convenience constructors for each state.
func Idle() ConnectionState          { return ConnectionState{Kind: StateIdle} }
func Scanning() ConnectionState      { return ConnectionState{Kind: StateScanning} }
func Disconnecting() ConnectionState { return ConnectionState{Kind: StateDisconnecting} }

func Connecting(d Device) ConnectionState {
	return ConnectionState{Kind: StateConnecting, Device: &d}
}

func Connected(d Device) ConnectionState {
	return ConnectionState{Kind: StateConnected, Device: &d}
}

// Is reports whether the state has the given kind.
func (s ConnectionState) Is(k StateKind) bool { return s.Kind == k }

func (s ConnectionState) String() string {
	if s.Device != nil {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Device.DisplayName())
	}
	return string(s.Kind)
}
