package event

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Listener handles an event. A listener must not publish back into the
// bus; the mutation it observes has already committed.
type Listener func(Event)

// Bus is a synchronous publish/subscribe bus. Publish invokes every
// listener for the event's topic in registration order and returns
// only after all of them have run. There is no queueing and no
// cross-process delivery.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Topic][]Listener
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Topic][]Listener)}
}

func (b *Bus) Subscribe(t Topic, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[t] = append(b.listeners[t], fn)
}

// Publish dispatches e synchronously. A panicking listener is recovered
// and logged so that sibling listeners still run; by the time listeners
// fire the triggering mutation has already committed.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := b.listeners[e.Topic()]
	b.mu.RUnlock()

	for _, fn := range fns {
		b.dispatch(e, fn)
	}
}

func (b *Bus) dispatch(e Event, fn Listener) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "event.bus").Str("topic", string(e.Topic())).Interface("panic", r).Msg("listener panicked")
		}
	}()
	fn(e)
}
