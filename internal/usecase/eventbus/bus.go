package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"suitcase-link/internal/domain"
)

type delivery struct {
	ctx   context.Context
	event domain.Event
}

// subscription owns a mailbox and a worker goroutine. Events reach the
// handler one at a time in publish order.
type subscription struct {
	id      uint64
	handler domain.EventHandler

	done chan struct{} // closed when the worker exits

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []delivery
	closed   bool // no more events accepted; pending still delivered
	canceled bool // pending dropped
}

func newSubscription(id uint64, handler domain.EventHandler) *subscription {
	s := &subscription{id: id, handler: handler, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *subscription) enqueue(d delivery) {
	s.mu.Lock()
	if !s.closed {
		s.pending = append(s.pending, d)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// stop closes the mailbox. When drain is false, queued events are discarded.
func (s *subscription) stop(drain bool) {
	s.mu.Lock()
	s.closed = true
	if !drain {
		s.canceled = true
		s.pending = nil
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *subscription) run(logger *slog.Logger) {
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, d := range batch {
			s.mu.Lock()
			canceled := s.canceled
			s.mu.Unlock()
			if canceled {
				return
			}
			s.invoke(d, logger)
		}
	}
}

func (s *subscription) invoke(d delivery, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event handler panicked",
				"event", string(d.event.Type),
				"panic", r,
			)
		}
	}()
	s.handler(d.ctx, d.event)
}

// Bus is an in-process, goroutine-safe event bus. Publish never blocks on a
// slow subscriber.
type Bus struct {
	mu      sync.RWMutex
	typed   map[domain.EventType][]*subscription
	allSubs []*subscription
	nextID  atomic.Uint64
	logger  *slog.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		typed:  make(map[domain.EventType][]*subscription),
		logger: logger,
	}
}

// Publish queues an event for matching typed subscribers and all-event
// subscribers. Panicking handlers are recovered.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	if b.closed.Load() {
		return
	}

	b.mu.RLock()
	typed := make([]*subscription, len(b.typed[event.Type]))
	copy(typed, b.typed[event.Type])
	allSubs := make([]*subscription, len(b.allSubs))
	copy(allSubs, b.allSubs)
	b.mu.RUnlock()

	d := delivery{ctx: ctx, event: event}
	for _, sub := range typed {
		sub.enqueue(d)
	}
	for _, sub := range allSubs {
		sub.enqueue(d)
	}
}

func (b *Bus) start(sub *subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(sub.done)
		sub.run(b.logger)
	}()
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function; events still queued for the handler are
// discarded.
func (b *Bus) Subscribe(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.subscribe(eventType, handler, false)
}

// SubscribeDrained registers a handler for a specific event type. The
// returned function stops new deliveries, lets the handler finish what is
// already queued and waits for it.
func (b *Bus) SubscribeDrained(eventType domain.EventType, handler domain.EventHandler) func() {
	return b.subscribe(eventType, handler, true)
}

func (b *Bus) subscribe(eventType domain.EventType, handler domain.EventHandler, drain bool) func() {
	sub := newSubscription(b.nextID.Add(1), handler)

	b.mu.Lock()
	b.typed[eventType] = append(b.typed[eventType], sub)
	b.mu.Unlock()
	b.start(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.typed[eventType] = remove(b.typed[eventType], sub.id)
			b.mu.Unlock()
			sub.stop(drain)
			if drain {
				<-sub.done
			}
		})
	}
}

// SubscribeAll registers a handler that receives every event.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	sub := newSubscription(b.nextID.Add(1), handler)

	b.mu.Lock()
	b.allSubs = append(b.allSubs, sub)
	b.mu.Unlock()
	b.start(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.allSubs = remove(b.allSubs, sub.id)
			b.mu.Unlock()
			sub.stop(false)
		})
	}
}

// Close prevents new publishes, delivers everything already queued and waits
// for the workers to exit. Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.RLock()
	var subs []*subscription
	for _, list := range b.typed {
		subs = append(subs, list...)
	}
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.stop(true)
	}
	b.wg.Wait()
}

func remove(subs []*subscription, id uint64) []*subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// Compile-time interface check.
var _ domain.DrainingBus = (*Bus)(nil)
