package prefs

import "sync"

// Change describes one observed transition of a key. Old is nil when the
// key was absent before; New is nil when the key was removed.
type Change struct {
	Key string
	Old []byte
	New []byte
}

const watchBuffer = 16

// Watch is a live observation of a single key. Changes arrive on C until
// Cancel; a watch that falls more than watchBuffer changes behind loses the
// oldest ones (observers are advisory, not a replication log).
type Watch struct {
	key   string
	id    uint64
	store *Store
	ch    chan Change
	once  sync.Once
}

// Observe registers an observer for key. The returned Watch owns its own
// cancellation; there is no global observer registry to clean up.
func (s *Store) Observe(key string) *Watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w := &Watch{
		key:   key,
		id:    s.nextID,
		store: s,
		ch:    make(chan Change, watchBuffer),
	}
	byID, ok := s.watches[key]
	if !ok {
		byID = make(map[uint64]*Watch)
		s.watches[key] = byID
	}
	byID[w.id] = w
	return w
}

// C returns the change channel. It is closed by Cancel.
func (w *Watch) C() <-chan Change {
	return w.ch
}

// Cancel stops delivery and closes the channel. Safe to call repeatedly
// and from a goroutine consuming C.
func (w *Watch) Cancel() {
	w.once.Do(func() {
		s := w.store
		s.mu.Lock()
		if byID, ok := s.watches[w.key]; ok {
			delete(byID, w.id)
			if len(byID) == 0 {
				delete(s.watches, w.key)
			}
		}
		close(w.ch)
		s.mu.Unlock()
	})
}

// notifyLocked fans a change out to the key's observers. Caller holds s.mu,
// which also serializes sends against Cancel's close. Sends never block:
// a full observer buffer drops the change.
func (s *Store) notifyLocked(key string, oldVal, newVal []byte) {
	byID := s.watches[key]
	if len(byID) == 0 {
		return
	}
	c := Change{Key: key, Old: oldVal, New: newVal}
	for _, w := range byID {
		select {
		case w.ch <- c:
		default:
			logger.Warn("dropping change for slow observer", "key", key)
		}
	}
}
