// Package peripheral implements the short-range wireless measurement source:
// scan for suitcases advertising the weight service, connect to one and
// stream its weight characteristic.
package peripheral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/infra/tracer"
)

// Config holds the peripheral contract and timing.
type Config struct {
	ServiceUUID        string
	CharacteristicUUID string
	ConnectTimeout     time.Duration
	// RSSIInterval is how often signal strength is sampled while connected.
	// Zero disables sampling.
	RSSIInterval time.Duration
}

const defaultConnectTimeout = 15 * time.Second

// Transport is a domain.MeasurementSource that also implements
// domain.Scanner and domain.Connector.
//
// Every sink call happens with mu held, so events leave the transport in the
// order their state changes were made. The sink must not block.
type Transport struct {
	radio  Radio
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	sink    domain.SourceSink
	ctx     context.Context
	cancel  context.CancelFunc
	state   domain.ConnectionState
	devices map[string]domain.Device

	// op increments whenever a scan or link is superseded; callbacks carrying
	// an older op are ignored.
	op         uint64
	scanCancel context.CancelFunc
	connCancel context.CancelFunc
	link       Link
	wg         sync.WaitGroup
}

// New creates a peripheral transport on top of radio.
func New(radio Radio, cfg Config, logger *slog.Logger) *Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &Transport{
		radio:   radio,
		cfg:     cfg,
		logger:  logger,
		state:   domain.Idle(),
		devices: make(map[string]domain.Device),
	}
}

// Kind implements domain.MeasurementSource.
func (t *Transport) Kind() domain.TransportKind { return domain.TransportPeripheral }

// Begin implements domain.MeasurementSource. The radio stays quiet until
// StartScan.
func (t *Transport) Begin(sink domain.SourceSink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink != nil {
		return
	}
	t.sink = sink
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.state = domain.Idle()
	clear(t.devices)
	t.logger.Info("peripheral transport started", "service", t.cfg.ServiceUUID)
}

// End implements domain.MeasurementSource.
func (t *Transport) End() {
	t.mu.Lock()
	if t.sink == nil {
		t.mu.Unlock()
		return
	}
	t.op++
	t.cancel()
	t.closeLinkLocked()
	t.sink = nil
	t.state = domain.Idle()
	clear(t.devices)
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Info("peripheral transport stopped")
}

// StartScan implements domain.Scanner. A live link is torn down first and the
// discovery list always starts empty.
func (t *Transport) StartScan() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		return
	}

	switch t.state.Kind {
	case domain.StateConnected, domain.StateConnecting:
		t.teardownLocked()
	case domain.StateScanning:
		t.scanCancel()
	}

	t.op++
	op := t.op
	clear(t.devices)
	scanCtx, cancel := context.WithCancel(t.ctx)
	t.scanCancel = cancel
	t.setStateLocked(domain.Scanning())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer cancel()
		err := t.radio.Scan(scanCtx, t.cfg.ServiceUUID, func(a Advertisement) {
			t.onAdvertisement(op, a)
		})
		if err != nil && scanCtx.Err() == nil {
			t.fail(op, fmt.Sprintf("scan failed: %v", err))
		}
	}()
	t.logger.Info("peripheral scan started")
}

// Connect implements domain.Connector. It is ignored unless scanning.
func (t *Transport) Connect(d domain.Device) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil || !t.state.Is(domain.StateScanning) {
		return
	}

	t.scanCancel()
	t.op++
	op := t.op
	connCtx, cancel := context.WithTimeout(t.ctx, t.cfg.ConnectTimeout)
	t.connCancel = cancel
	t.setStateLocked(domain.Connecting(d))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.dial(connCtx, cancel, op, d)
	}()
}

// Disconnect implements domain.Connector. It cancels a pending connect or
// closes the live link, and stops a running scan.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sink == nil {
		return
	}
	switch t.state.Kind {
	case domain.StateConnected, domain.StateConnecting:
		t.teardownLocked()
	case domain.StateScanning:
		t.op++
		t.scanCancel()
		clear(t.devices)
		t.setStateLocked(domain.Idle())
		t.logger.Info("peripheral scan stopped")
	}
}

func (t *Transport) dial(ctx context.Context, cancel context.CancelFunc, op uint64, d domain.Device) {
	ctx, span := tracer.StartSpan(ctx, "peripheral.connect")
	span.SetAttributes(tracer.StringAttr("device.id", d.ID), tracer.IntAttr("device.rssi", d.RSSI))
	defer span.End()

	link, err := t.radio.Connect(ctx, d.ID, t.cfg.ServiceUUID, t.cfg.CharacteristicUUID)
	if err == nil {
		err = link.Subscribe(func(b []byte) { t.onPayload(op, b) })
		if err != nil {
			_ = link.Close()
			err = fmt.Errorf("subscribe: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if op != t.op {
		// Superseded by Disconnect, StartScan or End while dialing.
		if err == nil {
			_ = link.Close()
		}
		cancel()
		return
	}
	if err != nil {
		tracer.RecordError(span, err)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = domain.NewDomainError("peripheral.Connect", domain.ErrTimeout, t.cfg.ConnectTimeout.String())
		}
		t.failLocked(fmt.Sprintf("connect to %s failed: %v", d.DisplayName(), err))
		return
	}
	tracer.SetOK(span)

	// The link outlives the connect timeout; watch it under the transport
	// context instead.
	cancel()
	linkCtx, linkCancel := context.WithCancel(t.ctx)
	t.connCancel = linkCancel
	t.link = link
	t.setStateLocked(domain.Connected(d))
	t.logger.Info("peripheral connected", "device", d.ID, "name", d.DisplayName())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.watch(linkCtx, op, d, link)
	}()
}

// watch follows a live link until it drops or is superseded.
func (t *Transport) watch(ctx context.Context, op uint64, d domain.Device, link Link) {
	var ticks <-chan time.Time
	rssi, canSample := link.(RSSIReader)
	if canSample && t.cfg.RSSIInterval > 0 {
		ticker := time.NewTicker(t.cfg.RSSIInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-link.Lost():
			t.mu.Lock()
			if op == t.op {
				t.logger.Warn("peripheral link lost", "device", d.ID)
				t.teardownLocked()
				t.emitLocked(domain.ConnectionFailed{Reason: fmt.Sprintf("lost connection to %s", d.DisplayName())})
			}
			t.mu.Unlock()
			return
		case <-ticks:
			v, err := rssi.RSSI()
			if err != nil {
				t.logger.Debug("rssi sample failed", "device", d.ID, "error", err)
				continue
			}
			t.mu.Lock()
			if op == t.op {
				t.emitLocked(domain.LinkQuality{DeviceID: d.ID, RSSI: v})
			}
			t.mu.Unlock()
		}
	}
}

func (t *Transport) onAdvertisement(op uint64, a Advertisement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op != t.op || t.sink == nil {
		return
	}

	d := domain.Device{ID: a.ID, Name: a.Name, RSSI: a.RSSI}
	prev, known := t.devices[a.ID]
	if known && d.Name == "" {
		d.Name = prev.Name
	}
	t.devices[a.ID] = d

	switch {
	case !known:
		t.logger.Debug("peripheral discovered", "device", d.ID, "name", d.Name, "rssi", d.RSSI)
		t.emitLocked(domain.DeviceSeen{Device: d, New: true})
	case prev.Name != d.Name:
		t.emitLocked(domain.DeviceSeen{Device: d})
	case prev.RSSI != d.RSSI:
		t.emitLocked(domain.LinkQuality{DeviceID: d.ID, RSSI: d.RSSI})
	}
}

func (t *Transport) onPayload(op uint64, b []byte) {
	v, err := DecodePayload(b)
	if err != nil {
		t.logger.Warn("discarding malformed payload", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if op != t.op || !t.state.Is(domain.StateConnected) {
		return
	}
	r := domain.NewReading(v, domain.UnitPounds, domain.TransportPeripheral)
	t.logger.Debug("peripheral reading", "value", v)
	t.emitLocked(domain.ReadingReceived{Reading: r})
}

func (t *Transport) fail(op uint64, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op != t.op || t.sink == nil {
		return
	}
	t.failLocked(reason)
}

func (t *Transport) failLocked(reason string) {
	t.op++
	t.logger.Warn("peripheral operation failed", "reason", reason)
	t.emitLocked(domain.ConnectionFailed{Reason: reason})
	t.setStateLocked(domain.Idle())
}

// teardownLocked walks Connected/Connecting through Disconnecting to Idle.
func (t *Transport) teardownLocked() {
	t.op++
	if t.connCancel != nil {
		t.connCancel()
		t.connCancel = nil
	}
	t.setStateLocked(domain.Disconnecting())
	t.closeLinkLocked()
	t.setStateLocked(domain.Idle())
}

func (t *Transport) closeLinkLocked() {
	if t.link == nil {
		return
	}
	if err := t.link.Close(); err != nil {
		t.logger.Debug("close link", "error", err)
	}
	t.link = nil
}

func (t *Transport) setStateLocked(s domain.ConnectionState) {
	t.state = s
	t.emitLocked(domain.LinkStateChanged{State: s})
}

func (t *Transport) emitLocked(ev domain.SourceEvent) {
	if t.sink != nil {
		t.sink(ev)
	}
}

// Compile-time interface checks.
var (
	_ domain.MeasurementSource = (*Transport)(nil)
	_ domain.Scanner           = (*Transport)(nil)
	_ domain.Connector         = (*Transport)(nil)
)
