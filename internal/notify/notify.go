// Package notify is an in-process publish/subscribe bus for record change
// events. The document store posts an Event after each mutation; subscribers
// register for a single record type and receive a typed, mapped stream of
// notices until cancelled.
package notify

import (
	"encoding/json"
	"sync"

	"satchel/internal/logging"
)

var logger = logging.For("notify")

// Kind tags an Event as an add, update, or delete.
type Kind uint8

const (
	KindAdd Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a raw change notification as posted by the store. Old is set only
// for updates; New is set for adds and updates; deletes carry only the ID.
type Event struct {
	Type string // record type name, used for subscription filtering
	Kind Kind
	ID   string
	Old  json.RawMessage
	New  json.RawMessage
}

// subscriber is the type-erased view of a Subscription held by the Bus.
type subscriber interface {
	typeName() string
	deliver(Event)
}

// Bus fans Events out to registered subscriptions. Posting is synchronous:
// every matching subscription has the event enqueued (in posting order)
// before Post returns; consumption happens on each subscription's own
// delivery goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]subscriber)}
}

// Post broadcasts an event to all subscriptions registered for ev.Type.
// Events for other types are never delivered to a subscription.
func (b *Bus) Post(ev Event) {
	b.mu.RLock()
	matched := make([]subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.typeName() == ev.Type {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	// Deliver outside the lock so a map function or consumer may cancel
	// its subscription without deadlocking against Register/remove.
	for _, s := range matched {
		s.deliver(ev)
	}
	logger.Debug("posted", "type", ev.Type, "kind", ev.Kind.String(), "id", ev.ID, "subscribers", len(matched))
}

func (b *Bus) add(id string, s subscriber) {
	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions (for testing).
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
