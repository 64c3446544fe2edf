// Package memory provides an in-memory kv.Store for tests and ephemeral use.
package memory

import (
	"sort"
	"strings"
	"sync"
)

// Store is a mutex-guarded map implementing kv.Store. Values are copied on
// the way in and out so callers cannot alias internal state.
type Store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Set(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.mu.Lock()
	s.values[string(key)] = v
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(key []byte) error {
	s.mu.Lock()
	delete(s.values, string(key))
	s.mu.Unlock()
	return nil
}

// ForEachPrefix iterates keys in sorted order so tests are deterministic.
func (s *Store) ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	for _, k := range keys {
		s.mu.RLock()
		v, ok := s.values[k]
		var val []byte
		if ok {
			val = make([]byte, len(v))
			copy(val, v)
		}
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn([]byte(k), val); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored keys (for testing).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
