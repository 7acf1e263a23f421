package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"suitcase-link/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// callLog records source calls across sources in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	l.calls = append(l.calls, c)
	l.mu.Unlock()
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeSource is a source with no discovery or connect phase.
type fakeSource struct {
	kind domain.TransportKind
	log  *callLog

	mu    sync.Mutex
	sink  domain.SourceSink
	onEnd func(domain.SourceSink)
}

func (f *fakeSource) Kind() domain.TransportKind { return f.kind }

func (f *fakeSource) Begin(sink domain.SourceSink) {
	f.log.add(string(f.kind) + ".Begin")
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
}

func (f *fakeSource) End() {
	f.log.add(string(f.kind) + ".End")
	f.mu.Lock()
	sink, onEnd := f.sink, f.onEnd
	f.sink = nil
	f.mu.Unlock()
	if onEnd != nil && sink != nil {
		onEnd(sink)
	}
}

func (f *fakeSource) currentSink() domain.SourceSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

func (f *fakeSource) emit(evs ...domain.SourceEvent) {
	sink := f.currentSink()
	if sink == nil {
		return
	}
	for _, ev := range evs {
		sink(ev)
	}
}

// fakePeripheral adds the scan and connect phases.
type fakePeripheral struct {
	fakeSource
}

func (f *fakePeripheral) StartScan() { f.log.add(string(f.kind) + ".StartScan") }

func (f *fakePeripheral) Connect(d domain.Device) {
	f.log.add(string(f.kind) + ".Connect:" + d.ID)
}

func (f *fakePeripheral) Disconnect() { f.log.add(string(f.kind) + ".Disconnect") }

// recordingBus keeps every published event synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, e domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, e)
	b.mu.Unlock()
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func() { return func() {} }
func (b *recordingBus) Close() {}

func (b *recordingBus) ofType(t domain.EventType) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, e := range b.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	s       *Session
	log     *callLog
	bus     *recordingBus
	periph  *fakePeripheral
	network *fakeSource
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := &callLog{}
	h := &harness{
		log:     log,
		bus:     &recordingBus{},
		periph:  &fakePeripheral{fakeSource{kind: domain.TransportPeripheral, log: log}},
		network: &fakeSource{kind: domain.TransportNetwork, log: log},
	}
	h.s = New([]domain.MeasurementSource{h.periph, h.network}, h.bus, domain.ClassEconomy, testLogger())
	t.Cleanup(h.s.Close)
	return h
}

// flush waits until every event queued so far has been processed.
func (h *harness) flush() {
	_ = h.s.do(context.Background(), "flush", func() error { return nil })
}

// scanning selects the peripheral transport and enters Scanning with the
// given devices discovered.
func (h *harness) scanning(t *testing.T, devices ...domain.Device) {
	t.Helper()
	ctx := context.Background()
	if err := h.s.SelectTransport(ctx, domain.TransportPeripheral); err != nil {
		t.Fatalf("SelectTransport: %v", err)
	}
	if err := h.s.RequestScan(ctx); err != nil {
		t.Fatalf("RequestScan: %v", err)
	}
	h.periph.emit(domain.LinkStateChanged{State: domain.Scanning()})
	for _, d := range devices {
		h.periph.emit(domain.DeviceSeen{Device: d, New: true})
	}
	h.flush()
}

// connected drives the peripheral transport all the way to Connected(d).
func (h *harness) connected(t *testing.T, d domain.Device) {
	t.Helper()
	h.scanning(t, d)
	if err := h.s.Connect(context.Background(), d.ID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	h.periph.emit(
		domain.LinkStateChanged{State: domain.Connecting(d)},
		domain.LinkStateChanged{State: domain.Connected(d)},
	)
	h.flush()
}

func lbs(v float64) domain.ReadingReceived {
	return domain.ReadingReceived{Reading: domain.NewReading(v, domain.UnitPounds, domain.TransportPeripheral)}
}
