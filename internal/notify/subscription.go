package notify

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Notice is a typed change notification as seen by a subscriber. Old is
// valid only for updates; New for adds and updates. Deletes carry the ID
// and zero values for Old and New.
type Notice[V any] struct {
	Kind Kind
	ID   string
	Old  V
	New  V
}

// MapFunc converts a raw stored record into the subscriber's view type.
// Returning false drops the event for this subscriber instead of erroring.
type MapFunc[V any] func(raw json.RawMessage) (V, bool)

// Subscription is a live registration on a Bus. Notices arrive on C() in
// posting order until Cancel is called. The internal queue is unbounded:
// a slow consumer delays its own notices but never drops them and never
// blocks the poster.
type Subscription[V any] struct {
	id    string
	typ   string
	mapFn MapFunc[V]
	bus   *Bus

	mu        sync.Mutex
	cond      *sync.Cond
	queue     []Notice[V]
	cancelled bool

	out  chan Notice[V]
	done chan struct{}
	once sync.Once
}

// Register subscribes to events posted for typeName. Add and Update
// payloads are transformed through mapFn; an event whose payload fails to
// map is dropped silently. Delete events pass through carrying only the id.
func Register[V any](b *Bus, typeName string, mapFn MapFunc[V]) *Subscription[V] {
	s := &Subscription[V]{
		id:    uuid.NewString(),
		typ:   typeName,
		mapFn: mapFn,
		bus:   b,
		out:   make(chan Notice[V]),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	b.add(s.id, s)
	go s.pump()
	return s
}

// RegisterType subscribes with the canonical mapping: the raw payload is
// JSON-decoded straight into V.
func RegisterType[V any](b *Bus, typeName string) *Subscription[V] {
	return Register(b, typeName, func(raw json.RawMessage) (V, bool) {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, false
		}
		return v, true
	})
}

// C returns the notice channel. It is closed after Cancel once any
// in-flight delivery has drained.
func (s *Subscription[V]) C() <-chan Notice[V] {
	return s.out
}

// Cancel stops future delivery. It is idempotent and safe to call from
// within a consumer of C(). Notices already handed to the consumer are
// unaffected; queued but unconsumed notices are discarded.
func (s *Subscription[V]) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		s.cond.Broadcast()
		s.bus.remove(s.id)
	})
}

func (s *Subscription[V]) typeName() string {
	return s.typ
}

// deliver runs on the poster's goroutine: transform, then enqueue.
func (s *Subscription[V]) deliver(ev Event) {
	n, ok := s.transform(ev)
	if !ok {
		return
	}
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, n)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *Subscription[V]) transform(ev Event) (Notice[V], bool) {
	n := Notice[V]{Kind: ev.Kind, ID: ev.ID}
	switch ev.Kind {
	case KindAdd:
		v, ok := s.mapFn(ev.New)
		if !ok {
			return n, false
		}
		n.New = v
	case KindUpdate:
		oldV, ok := s.mapFn(ev.Old)
		if !ok {
			return n, false
		}
		newV, ok := s.mapFn(ev.New)
		if !ok {
			return n, false
		}
		n.Old, n.New = oldV, newV
	case KindDelete:
		// Nothing to map: deletes carry only the id.
	default:
		return n, false
	}
	return n, true
}

// pump moves notices from the queue to the out channel, one at a time,
// preserving posting order. It exits and closes out once cancelled.
func (s *Subscription[V]) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.cancelled {
			s.cond.Wait()
		}
		if s.cancelled {
			s.mu.Unlock()
			close(s.out)
			return
		}
		n := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- n:
		case <-s.done:
			close(s.out)
			return
		}
	}
}
