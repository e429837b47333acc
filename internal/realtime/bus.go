package realtime

import (
	"sync"

	"github.com/MKhiriev/tabsync/internal/logger"
	"github.com/MKhiriev/tabsync/models"
)

// Callback receives events published on an [EventBus].
type Callback func(event models.ChangeEvent)

// Token identifies a registration for later removal.
type Token uint64

type registration struct {
	token    Token
	callback Callback
}

// EventBus is an in-process publish/subscribe registry with synchronous
// fanout.
//
// The registration lists are replaced on every Register/Unregister and never
// mutated in place, so Publish iterates an immutable snapshot. A callback that
// unregisters itself (or registers another one) during delivery does not
// affect the event currently being delivered.
//
// Observers run after every subscriber has received the event.
type EventBus struct {
	mu            sync.Mutex
	registrations []registration
	observers     []registration
	nextToken     Token

	lastEvent  *models.ChangeEvent
	eventCount uint64

	logger *logger.Logger
}

// NewEventBus creates an empty EventBus.
func NewEventBus(log *logger.Logger) *EventBus {
	return &EventBus{logger: log.Component("event_bus")}
}

// Register adds callback to the bus. Callbacks are invoked in registration
// order.
func (b *EventBus) Register(callback Callback) Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextToken++
	b.registrations = appendRegistration(b.registrations, registration{token: b.nextToken, callback: callback})
	return b.nextToken
}

// Unregister removes the callback or observer registered under token.
// Unknown tokens are ignored.
func (b *EventBus) Unregister(token Token) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registrations = removeRegistration(b.registrations, token)
	b.observers = removeRegistration(b.observers, token)
}

// Subscribe registers callback and returns a disposer that removes it. The
// disposer may be called any number of times.
func (b *EventBus) Subscribe(callback Callback) (unsubscribe func()) {
	return b.disposer(b.Register(callback))
}

// Observe registers callback to run once every subscriber has received an
// event, and returns its disposer.
func (b *EventBus) Observe(callback Callback) (unsubscribe func()) {
	b.mu.Lock()
	b.nextToken++
	token := b.nextToken
	b.observers = appendRegistration(b.observers, registration{token: token, callback: callback})
	b.mu.Unlock()

	return b.disposer(token)
}

func (b *EventBus) disposer(token Token) func() {
	var once sync.Once
	return func() {
		once.Do(func() { b.Unregister(token) })
	}
}

func appendRegistration(regs []registration, reg registration) []registration {
	next := make([]registration, len(regs), len(regs)+1)
	copy(next, regs)
	return append(next, reg)
}

func removeRegistration(regs []registration, token Token) []registration {
	for i, reg := range regs {
		if reg.token != token {
			continue
		}
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		return append(next, regs[i+1:]...)
	}
	return regs
}

// Publish records event as the last event, increments the event count and
// invokes every callback registered at the moment of the call, then every
// observer. A panicking callback is recovered and logged; the remaining
// callbacks still run.
func (b *EventBus) Publish(event models.ChangeEvent) {
	b.mu.Lock()
	snapshot, observers := b.registrations, b.observers
	b.lastEvent = &event
	b.eventCount++
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.deliver(reg, event)
	}
	for _, reg := range observers {
		b.deliver(reg, event)
	}
}

func (b *EventBus) deliver(reg registration, event models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Uint64("token", uint64(reg.token)).
				Str("entity_type", string(event.EntityType)).
				Str("action", string(event.Action)).
				Interface("panic", r).
				Msg("subscriber callback panicked")
		}
	}()

	reg.callback(event)
}

// LastEvent returns the most recently published event. ok is false until the
// first Publish.
func (b *EventBus) LastEvent() (event models.ChangeEvent, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastEvent == nil {
		return models.ChangeEvent{}, false
	}
	return *b.lastEvent, true
}

// EventCount returns the number of Publish calls so far.
func (b *EventBus) EventCount() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eventCount
}

// Len returns the number of live registrations, observers included.
func (b *EventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registrations) + len(b.observers)
}
