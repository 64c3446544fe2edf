// Package prefs is a small JSON-file settings store with key observation,
// standing in for a platform key-value settings store. Local writes rewrite
// the file atomically; external writes to the same file (another process,
// or the user with an editor) are picked up through fsnotify so observers
// see those too.
package prefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"satchel/internal/logging"
)

var logger = logging.For("prefs")

// Store is a persistent string-keyed settings store. All methods are safe
// for concurrent use.
type Store struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	values  map[string]json.RawMessage
	watches map[string]map[uint64]*Watch // key -> watch id -> watch
	nextID  uint64
}

// Open loads the settings file at path, creating an empty store if the
// file does not exist, and starts watching the file's directory for
// external modifications. Close releases the watcher.
func Open(path string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving settings path: %w", err)
	}
	values, err := loadFile(abs)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	// Watch the directory, not the file: atomic rewrites replace the inode
	// and a watch on the old file would go quiet after the first write.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching settings dir: %w", err)
	}

	s := &Store{
		path:    abs,
		watcher: w,
		done:    make(chan struct{}),
		values:  values,
		watches: make(map[string]map[uint64]*Watch),
	}
	go s.watchLoop()
	return s, nil
}

func loadFile(path string) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	return values, nil
}

// Get returns the decoded value for key, or false if the key is absent or
// the stored value does not decode into T.
func Get[T any](s *Store, key string) (T, bool) {
	var v T
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// Set stores value under key and persists the whole store. Observers of
// key receive the old and new values.
func (s *Store) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %q: %w", key, err)
	}

	s.mu.Lock()
	old := s.values[key]
	if bytes.Equal(old, raw) {
		s.mu.Unlock()
		return nil
	}
	s.values[key] = raw
	err = s.persistLocked()
	s.notifyLocked(key, old, raw)
	s.mu.Unlock()
	return err
}

// Remove deletes key from the store. Removing an absent key is a no-op and
// notifies nobody.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	old, ok := s.values[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.values, key)
	err := s.persistLocked()
	s.notifyLocked(key, old, nil)
	s.mu.Unlock()
	return err
}

// Keys returns all present keys, in no particular order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// persistLocked rewrites the settings file atomically (temp file + rename).
// Caller holds s.mu.
func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}

// watchLoop reloads the file on external changes and notifies observers of
// any key whose value differs from the in-memory copy. Self-writes update
// the in-memory copy first, so the reload diff is empty for them.
func (s *Store) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != s.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				s.reload()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("settings watcher error", "err", err)
		}
	}
}

func (s *Store) reload() {
	fresh, err := loadFile(s.path)
	if err != nil {
		logger.Warn("ignoring unreadable settings file", "path", s.path, "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, newRaw := range fresh {
		old, had := s.values[key]
		if !had || !bytes.Equal(old, newRaw) {
			s.values[key] = newRaw
			s.notifyLocked(key, old, newRaw)
		}
	}
	for key, old := range s.values {
		if _, still := fresh[key]; !still {
			delete(s.values, key)
			s.notifyLocked(key, old, nil)
		}
	}
}

// Close stops the watcher and cancels all observers.
func (s *Store) Close() error {
	close(s.done)
	err := s.watcher.Close()

	s.mu.Lock()
	all := make([]*Watch, 0)
	for _, byID := range s.watches {
		for _, w := range byID {
			all = append(all, w)
		}
	}
	s.mu.Unlock()
	for _, w := range all {
		w.Cancel()
	}
	return err
}
