// Package session owns the single live connection to a suitcase. It routes
// user intents to the active measurement source, folds source events into
// one connection state and publishes the result on the event bus.
package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"suitcase-link/internal/domain"
	"suitcase-link/internal/usecase/threshold"
)

// task is one unit of work for the event loop. reply is nil for source
// events.
type task struct {
	fn    func() error
	reply chan error
}

// Session is the connectivity session. All state below the loop marker is
// owned by the loop goroutine; other goroutines read it through Snapshot.
type Session struct {
	sources map[domain.TransportKind]domain.MeasurementSource
	bus     domain.EventBus
	logger  *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []task
	closing bool
	stopped chan struct{}

	snapMu sync.RWMutex
	snap   Snapshot

	// loop-owned
	state   domain.ConnectionState
	active  domain.MeasurementSource
	gen     uint64
	devices []domain.Device
	latest  *domain.Reading
	rssi    *int
	class   domain.ClassOfTravel
	alert   threshold.AlertState
	entropy io.Reader
}

// New creates a session over the given sources, one per transport kind, and
// starts its event loop. No source is active until SelectTransport.
func New(sources []domain.MeasurementSource, bus domain.EventBus, class domain.ClassOfTravel, logger *slog.Logger) *Session {
	if class == "" {
		class = domain.ClassEconomy
	}
	s := &Session{
		sources: make(map[domain.TransportKind]domain.MeasurementSource, len(sources)),
		bus:     bus,
		logger:  logger,
		stopped: make(chan struct{}),
		state:   domain.Idle(),
		class:   class,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, src := range sources {
		s.sources[src.Kind()] = src
	}
	s.cond = sync.NewCond(&s.mu)
	s.publishSnapshot()
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, t := range batch {
			err := t.fn()
			s.publishSnapshot()
			if t.reply != nil {
				t.reply <- err
			}
		}
	}
}

// post queues fn without waiting. It reports false once the session is
// closing.
func (s *Session) post(t task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.queue = append(s.queue, t)
	s.cond.Signal()
	return true
}

// do runs fn on the loop and waits for its result.
func (s *Session) do(ctx context.Context, op string, fn func() error) error {
	reply := make(chan error, 1)
	if !s.post(task{fn: fn, reply: reply}) {
		return domain.NewDomainError(op, domain.ErrSessionClosed, "")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sinkFor returns the sink handed to a source for generation gen. It never
// blocks: events are queued for the loop, which drops those of a superseded
// generation.
func (s *Session) sinkFor(gen uint64) domain.SourceSink {
	return func(ev domain.SourceEvent) {
		s.post(task{fn: func() error {
			s.handleSourceEvent(gen, ev)
			return nil
		}})
	}
}

// Close ends the active source and stops the loop. Intents issued afterwards
// fail with domain.ErrSessionClosed.
func (s *Session) Close() {
	_ = s.do(context.Background(), "Session.Close", func() error {
		s.endActive()
		return nil
	})
	s.mu.Lock()
	s.closing = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.stopped
}

// publish sends a session event on the bus.
func (s *Session) publish(typ domain.EventType, payload any) {
	if s.bus == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", "type", string(typ), "error", err)
		return
	}
	s.bus.Publish(context.Background(), domain.Event{
		ID:        s.newID(),
		Type:      typ,
		Timestamp: time.Now(),
		Payload:   raw,
	})
}

func (s *Session) newID() string {
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}
