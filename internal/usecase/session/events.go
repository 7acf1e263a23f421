package session

import (
	"slices"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/threshold"
)

// handleSourceEvent folds one event from the source of generation gen into
// session state. Events from a superseded generation are dropped.
func (s *Session) handleSourceEvent(gen uint64, ev domain.SourceEvent) {
	if gen != s.gen || s.active == nil {
		s.logger.Debug("dropping stale source event", "generation", gen, "current", s.gen)
		return
	}

	switch e := ev.(type) {
	case domain.LinkStateChanged:
		s.setState(e.State)

	case domain.DeviceSeen:
		if !s.state.Is(domain.StateScanning) {
			return
		}
		if i := s.deviceIndex(e.Device.ID); i >= 0 {
			s.devices[i] = e.Device
		} else {
			s.devices = append(s.devices, e.Device)
		}
		s.publish(domain.EventDevicesUpdated, domain.DevicesPayload{Devices: s.devicesCopy()})

	case domain.LinkQuality:
		if i := s.deviceIndex(e.DeviceID); i >= 0 && s.state.Is(domain.StateScanning) {
			s.devices[i].RSSI = e.RSSI
			s.publish(domain.EventDevicesUpdated, domain.DevicesPayload{Devices: s.devicesCopy()})
		}
		if s.state.Device != nil && s.state.Device.ID == e.DeviceID {
			rssi := e.RSSI
			s.rssi = &rssi
		}
		s.publish(domain.EventLinkQuality, domain.LinkQualityPayload{DeviceID: e.DeviceID, RSSI: e.RSSI})

	case domain.ReadingReceived:
		if !s.state.Is(domain.StateConnected) {
			s.logger.Debug("dropping reading outside connected state", "state", s.state.String())
			return
		}
		s.acceptReading(e.Reading)

	case domain.ConnectionFailed:
		s.logger.Warn("transport error", "transport", string(s.active.Kind()), "reason", e.Reason)
		s.publish(domain.EventTransportError, domain.TransportErrorPayload{
			Transport: s.active.Kind(),
			Message:   e.Reason,
		})
		s.setState(domain.Idle())
	}
}

// acceptReading overwrites the latest reading, evaluates it and fires an
// alert on the edge into breach.
func (s *Session) acceptReading(r domain.Reading) {
	s.latest = &r
	d := threshold.Evaluate(r, s.class, s.alert)
	s.alert = d.State

	s.logger.Debug("reading accepted", "value", r.Value, "unit", string(r.Unit), "over_limit", d.OverLimit)
	s.publish(domain.EventReading, domain.ReadingPayload{
		Reading:   r,
		Pounds:    d.Pounds,
		Threshold: d.Threshold,
		OverLimit: d.OverLimit,
		Class:     s.class,
	})

	if d.ShouldAlert {
		alert := domain.NewAlert(s.newID(), r, s.class)
		s.logger.Info("overweight alert", "alert_id", alert.ID, "pounds", alert.Pounds, "threshold", alert.Threshold)
		s.publish(domain.EventAlertFired, alert)
	}
}

// setState moves to next and publishes the change. Repeating the current
// state is a no-op, so optimistic updates made by intents are not announced
// twice when the source confirms them.
func (s *Session) setState(next domain.ConnectionState) {
	if sameState(s.state, next) {
		return
	}
	prev := s.state
	s.state = next

	// The discovery list lives from Scanning through Connecting and Connected;
	// returning to Idle ends the scan session.
	switch next.Kind {
	case domain.StateScanning:
		s.clearDevices()
	case domain.StateIdle, domain.StateDisconnecting:
		if prev.Is(domain.StateConnected) || prev.Is(domain.StateConnecting) {
			s.clearReading()
			s.rssi = nil
		}
		if next.Is(domain.StateIdle) {
			s.clearDevices()
		}
	}

	var kind domain.TransportKind
	if s.active != nil {
		kind = s.active.Kind()
	}
	s.logger.Info("connection state changed", "from", prev.String(), "to", next.String())
	s.publish(domain.EventStateChanged, domain.StatePayload{State: next, Transport: kind})
}

// clearReading forgets the latest reading and any outstanding alert.
func (s *Session) clearReading() {
	s.latest = nil
	s.alert = threshold.AlertState{}
}

func (s *Session) clearDevices() {
	if len(s.devices) == 0 {
		return
	}
	s.devices = nil
	s.publish(domain.EventDevicesUpdated, domain.DevicesPayload{Devices: []domain.Device{}})
}

func (s *Session) deviceIndex(id string) int {
	return slices.IndexFunc(s.devices, func(d domain.Device) bool { return d.ID == id })
}

func (s *Session) devicesCopy() []domain.Device {
	out := make([]domain.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

func sameState(a, b domain.ConnectionState) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Device == nil || b.Device == nil {
		return a.Device == nil && b.Device == nil
	}
	return a.Device.ID == b.Device.ID
}
