package domain

// SourceEvent is one item of the stream a MeasurementSource produces. The
// concrete types below form a closed set.
type SourceEvent interface {
	sourceEvent()
}

// DeviceSeen reports a discovered peripheral. New is false when the event
// refreshes an entry that is already in the discovery list.
type DeviceSeen struct {
	Device Device
	New    bool
}

// LinkQuality reports a signal-strength sample. It is never a measurement.
type LinkQuality struct {
	DeviceID string
	RSSI     int
}

// ReadingReceived carries a decoded measurement.
type ReadingReceived struct {
	Reading Reading
}

// LinkStateChanged reports the transport's own connection state.
type LinkStateChanged struct {
	State ConnectionState
}

// ConnectionFailed reports an operational failure with a human-readable reason.
type ConnectionFailed struct {
	Reason string
}

func (DeviceSeen) sourceEvent()       {}
func (LinkQuality) sourceEvent()      {}
func (ReadingReceived) sourceEvent()  {}
func (LinkStateChanged) sourceEvent() {}
func (ConnectionFailed) sourceEvent() {}

// SourceSink receives events from a MeasurementSource. Implementations must
// not block for long; sources call it from their own goroutines.
type SourceSink func(SourceEvent)

// MeasurementSource produces readings from one transport.
//
// Begin starts the source and is a no-op when already started. End stops it,
// cancels in-flight work and returns only after the source has stopped calling
// the sink. End is safe to call on a source that was never started, and Begin
// may be called again after End. Failures are reported as events, never as
// return values.
type MeasurementSource interface {
	Kind() TransportKind
	Begin(sink SourceSink)
	End()
}

// Scanner is implemented by sources that discover devices before connecting.
type Scanner interface {
	StartScan()
}

// Connector is implemented by sources with an explicit connect phase.
type Connector interface {
	Connect(d Device)
	Disconnect()
}
