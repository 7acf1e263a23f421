package session

import (
	"context"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/tracer"
)

// SelectTransport makes kind the active transport. A different active source
// is ended completely, and the session passes through Idle, before the new
// source begins. Selecting the active kind is a no-op.
func (s *Session) SelectTransport(ctx context.Context, kind domain.TransportKind) error {
	ctx, span := tracer.StartSpan(ctx, "session.select_transport")
	span.SetAttributes(tracer.StringAttr("transport", string(kind)))
	defer span.End()

	err := s.do(ctx, "Session.SelectTransport", func() error {
		src, ok := s.sources[kind]
		if !ok {
			return domain.NewDomainError("Session.SelectTransport", domain.ErrUnknownTransport, string(kind))
		}
		if s.active != nil && s.active.Kind() == kind {
			return nil
		}

		s.endActive()

		s.gen++
		s.active = src
		s.logger.Info("transport selected", "transport", string(kind))
		s.publish(domain.EventTransportSet, domain.TransportPayload{Transport: kind})
		src.Begin(s.sinkFor(s.gen))
		return nil
	})
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

// RequestScan starts discovery. It acts only when the active source can scan
// and the session is Idle; otherwise it does nothing.
func (s *Session) RequestScan(ctx context.Context) error {
	return s.do(ctx, "Session.RequestScan", func() error {
		scanner, ok := s.active.(domain.Scanner)
		if !ok || !s.state.Is(domain.StateIdle) {
			s.logger.Debug("scan request ignored", "state", s.state.String())
			return nil
		}
		s.setState(domain.Scanning())
		scanner.StartScan()
		return nil
	})
}

// Connect connects to a device from the current discovery list. It is only
// valid while scanning.
func (s *Session) Connect(ctx context.Context, deviceID string) error {
	return s.do(ctx, "Session.Connect", func() error {
		if !s.state.Is(domain.StateScanning) {
			return domain.NewDomainError("Session.Connect", domain.ErrNotScanning, s.state.String())
		}
		i := s.deviceIndex(deviceID)
		if i < 0 {
			return domain.NewDomainError("Session.Connect", domain.ErrDeviceNotFound, deviceID)
		}
		connector, ok := s.active.(domain.Connector)
		if !ok {
			return domain.NewDomainError("Session.Connect", domain.ErrInvalidState, "transport has no connect phase")
		}
		d := s.devices[i]
		s.setState(domain.Connecting(d))
		connector.Connect(d)
		return nil
	})
}

// Disconnect drops the link from Connected or Connecting, stops a running
// scan and is a no-op from Idle. A source without a connect phase is ended
// and the active slot cleared. The latest reading is cleared before
// Disconnect returns.
func (s *Session) Disconnect(ctx context.Context) error {
	return s.do(ctx, "Session.Disconnect", func() error {
		connector, isConnector := s.active.(domain.Connector)
		switch s.state.Kind {
		case domain.StateIdle:
			// A polling source sits in Idle between failed polls; stop it.
			if s.active != nil && !isConnector {
				s.stopPolling()
			}
			return nil
		case domain.StateScanning:
			if !isConnector {
				return domain.NewDomainError("Session.Disconnect", domain.ErrInvalidState, "transport cannot stop a scan")
			}
			s.setState(domain.Idle())
			connector.Disconnect()
			return nil
		case domain.StateConnected, domain.StateConnecting:
		default:
			return domain.NewDomainError("Session.Disconnect", domain.ErrInvalidState, s.state.String())
		}

		s.clearReading()
		if !isConnector {
			s.stopPolling()
			return nil
		}
		s.setState(domain.Disconnecting())
		connector.Disconnect()
		return nil
	})
}

// SetClassOfTravel changes the allowance readings are evaluated against.
// An outstanding alert stays outstanding.
func (s *Session) SetClassOfTravel(ctx context.Context, class domain.ClassOfTravel) error {
	class, err := domain.ParseClassOfTravel(string(class))
	if err != nil {
		return err
	}
	return s.do(ctx, "Session.SetClassOfTravel", func() error {
		if s.class == class {
			return nil
		}
		s.class = class
		s.publish(domain.EventClassChanged, domain.ClassPayload{Class: class, Threshold: class.ThresholdPounds()})
		return nil
	})
}

// stopPolling ends a source that has no connect phase and leaves no
// transport selected.
func (s *Session) stopPolling() {
	s.endActive()
	s.publish(domain.EventTransportSet, domain.TransportPayload{})
}

// endActive fully stops the active source and returns the session to Idle
// with no reading, devices or alert.
func (s *Session) endActive() {
	if s.active == nil {
		return
	}
	kind := s.active.Kind()
	// Bump first so anything the source emits while stopping is dropped.
	s.gen++
	s.active.End()
	s.active = nil
	s.clearReading()
	s.clearDevices()
	s.rssi = nil
	s.setState(domain.Idle())
	s.logger.Info("transport ended", "transport", string(kind))
}
