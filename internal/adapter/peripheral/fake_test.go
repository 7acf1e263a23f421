package peripheral

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"suitcase-link/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRadio is a scriptable Radio. Tests push advertisements through
// advertise and control dial results through connectErr / connectBlock.
type fakeRadio struct {
	mu           sync.Mutex
	found        func(Advertisement)
	scanGen      int
	scanning     chan struct{}
	scanErr      error
	connectErr   error
	connectBlock bool
	links        []*fakeLink
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{scanning: make(chan struct{}, 8)}
}

func (r *fakeRadio) Scan(ctx context.Context, _ string, found func(Advertisement)) error {
	r.mu.Lock()
	r.scanGen++
	gen := r.scanGen
	r.found = found
	err := r.scanErr
	r.mu.Unlock()
	r.scanning <- struct{}{}
	if err != nil {
		return err
	}
	<-ctx.Done()
	r.mu.Lock()
	if r.scanGen == gen {
		r.found = nil
	}
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) advertise(a Advertisement) {
	r.mu.Lock()
	found := r.found
	r.mu.Unlock()
	if found != nil {
		found(a)
	}
}

func (r *fakeRadio) Connect(ctx context.Context, id, _, _ string) (Link, error) {
	r.mu.Lock()
	block, err := r.connectBlock, r.connectErr
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	l := &fakeLink{id: id, lost: make(chan struct{}), rssi: -60}
	r.mu.Lock()
	r.links = append(r.links, l)
	r.mu.Unlock()
	return l, nil
}

func (r *fakeRadio) lastLink() *fakeLink {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.links) == 0 {
		return nil
	}
	return r.links[len(r.links)-1]
}

type fakeLink struct {
	id       string
	mu       sync.Mutex
	notify   func([]byte)
	lost     chan struct{}
	lostOnce sync.Once
	closed   bool
	rssi     int
}

func (l *fakeLink) Subscribe(onPayload func([]byte)) error {
	l.mu.Lock()
	l.notify = onPayload
	l.mu.Unlock()
	return nil
}

func (l *fakeLink) Lost() <-chan struct{} { return l.lost }

func (l *fakeLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("already closed")
	}
	l.closed = true
	return nil
}

func (l *fakeLink) RSSI() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rssi, nil
}

func (l *fakeLink) send(payload string) {
	l.mu.Lock()
	notify := l.notify
	l.mu.Unlock()
	if notify != nil {
		notify([]byte(payload))
	}
}

func (l *fakeLink) drop() { l.lostOnce.Do(func() { close(l.lost) }) }

func (l *fakeLink) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// recorder is a non-blocking sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []domain.SourceEvent
}

func (r *recorder) sink(ev domain.SourceEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []domain.SourceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SourceEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// states returns the LinkStateChanged kinds in order.
func (r *recorder) states() []domain.StateKind {
	var out []domain.StateKind
	for _, ev := range r.snapshot() {
		if sc, ok := ev.(domain.LinkStateChanged); ok {
			out = append(out, sc.State.Kind)
		}
	}
	return out
}

func (r *recorder) readings() []domain.Reading {
	var out []domain.Reading
	for _, ev := range r.snapshot() {
		if rr, ok := ev.(domain.ReadingReceived); ok {
			out = append(out, rr.Reading)
		}
	}
	return out
}

func (r *recorder) failures() []string {
	var out []string
	for _, ev := range r.snapshot() {
		if cf, ok := ev.(domain.ConnectionFailed); ok {
			out = append(out, cf.Reason)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
