// Package events provides in-process pub/sub for party lifecycle
// events. The queue engine publishes; the metrics accumulator and the
// prometheus counters subscribe.
package events

import (
	"sync"
	"time"

	"github.com/nicoespa/MesaYa/internal/models"
)

// Party event types.
const (
	TypePartyJoined   = "party_joined"
	TypePartyNotified = "party_notified"
	TypePartyOnTheWay = "party_on_the_way"
	TypePartySeated   = "party_seated"
	TypePartyNoShow   = "party_no_show"
	TypePartyCanceled = "party_canceled"
)

// PartyEvent describes one lifecycle change. Party is the state after
// the change.
type PartyEvent struct {
	Type  string
	Party models.Party
	At    time.Time
}

// Handler reacts to an event.
type Handler func(event PartyEvent)

// Bus provides in-process pub/sub for party events.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every party event type.
func (b *Bus) SubscribeAll(handler Handler) {
	for _, eventType := range []string{
		TypePartyJoined, TypePartyNotified, TypePartyOnTheWay,
		TypePartySeated, TypePartyNoShow, TypePartyCanceled,
	} {
		b.Subscribe(eventType, handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run
// synchronously; the caller decides the concurrency model.
func (b *Bus) Publish(event PartyEvent) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.At.IsZero() {
		event.At = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
