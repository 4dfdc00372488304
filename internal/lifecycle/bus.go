package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/koustreak/ConnRi/internal/logger"
)

// EventKind enumerates the event types the bus carries.
type EventKind string

const (
	EventError      EventKind = "error"      // asynchronous pool-level failure
	EventConnect    EventKind = "connect"    // pool established and probed
	EventDisconnect EventKind = "disconnect" // pool drained and closed
)

// Event is a single notification delivered to subscribers.
type Event struct {
	Kind    EventKind
	Payload any
	At      time.Time
}

// Handler receives events for the kind it subscribed to.
// Handlers run on the bus's dispatch goroutine, not the publisher's.
type Handler func(Event)

// Bus is a minimal typed publish/subscribe mechanism. Publishing never
// blocks the publisher and never surfaces handler failures to it: a handler
// panic is recovered, logged, and swallowed.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventKind][]Handler
	log  *logger.Logger
}

// NewBus returns an empty bus. A nil log disables handler-failure logging.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		subs: make(map[EventKind][]Handler),
		log:  log,
	}
}

// Subscribe registers a handler for the given kind. There is no unsubscribe:
// subscriptions live as long as the owning component.
func (b *Bus) Subscribe(kind EventKind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], h)
}

// Publish delivers an event to all handlers subscribed to kind.
// Dispatch happens asynchronously; the call returns immediately.
func (b *Bus) Publish(kind EventKind, payload any) {
	b.mu.RLock()
	handlers := b.subs[kind]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	ev := Event{Kind: kind, Payload: payload, At: time.Now()}

	go func() {
		for _, h := range handlers {
			b.dispatch(h, ev)
		}
	}()
}

// dispatch invokes one handler, isolating panics from the bus and publisher.
func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.With().
				Str("event", string(ev.Kind)).
				Err(fmt.Errorf("%v", r)).
				Logger().
				Error("event handler panicked")
		}
	}()
	h(ev)
}
