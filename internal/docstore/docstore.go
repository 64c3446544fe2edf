// Package docstore is a tiny document database layered on a key-value
// backend. Records are grouped into one table per record type; every table
// entry is mirrored to a normalized per-record key so a companion process
// sharing the same backend can look a record up directly without loading
// the table. Every successful mutation is published on a notify.Bus.
//
// The store holds no locks of its own: callers serialize mutations of the
// same type's table externally. Read-modify-write across the load, mutate,
// persist steps is not atomic.
package docstore

import (
	"encoding/json"
	"fmt"

	"satchel/internal/kv"
	"satchel/internal/logging"
	"satchel/internal/notify"
)

var logger = logging.For("docstore")

// Record is a named entity with a unique string identifier. Records must
// round-trip through JSON objects; equality is field equality of the
// decoded value.
type Record interface {
	RecordID() string
}

// Type names a record type at compile time. The name becomes part of the
// storage keys, so it must be stable and unique across the application;
// deriving it from a runtime type descriptor is deliberately unsupported.
type Type[T Record] struct {
	Name string
}

func NewType[T Record](name string) Type[T] {
	return Type[T]{Name: name}
}

// Options configures a Store. Zero values fall back to the defaults used
// throughout the module ("satchel" / "normalized").
type Options struct {
	// Namespace prefixes table keys: "<Namespace>_<TypeName>".
	Namespace string
	// NormalizedNamespace prefixes per-record keys:
	// "<NormalizedNamespace>.<TypeName>.<id>".
	NormalizedNamespace string
	// DumpDir is where Dump writes diagnostic table dumps.
	DumpDir string
	// PublishAfterPersist delays Add/Update notifications until the table
	// write has committed. The default (false) publishes per record before
	// the batch persists, so subscribers may observe a write that a crash
	// then loses; with this set, a persist failure means no notifications,
	// but normalized entries may still have been written.
	PublishAfterPersist bool
}

const (
	defaultNamespace     = "satchel"
	defaultNormNamespace = "normalized"
)

// Store owns per-type tables of records persisted in a kv.Store and
// publishes change events on a notify.Bus. Both collaborators are injected;
// the store keeps no global state.
type Store struct {
	backend      kv.Store
	bus          *notify.Bus
	ns           string
	normNS       string
	dumpDir      string
	deferPublish bool
}

func New(backend kv.Store, bus *notify.Bus, opts Options) *Store {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.NormalizedNamespace == "" {
		opts.NormalizedNamespace = defaultNormNamespace
	}
	return &Store{
		backend:      backend,
		bus:          bus,
		ns:           opts.Namespace,
		normNS:       opts.NormalizedNamespace,
		dumpDir:      opts.DumpDir,
		deferPublish: opts.PublishAfterPersist,
	}
}

// Bus returns the store's notification bus, for registering subscriptions.
func (s *Store) Bus() *notify.Bus {
	return s.bus
}

func (s *Store) tableKey(typeName string) []byte {
	return []byte(s.ns + "_" + typeName)
}

func (s *Store) tablePrefix() []byte {
	return []byte(s.ns + "_")
}

func (s *Store) normKey(typeName, id string) []byte {
	return []byte(s.normNS + "." + typeName + "." + id)
}

// table is the in-memory form of a persisted table: record id to the
// record's serialized value.
type table map[string]json.RawMessage

// loadTable reads the table for typeName. A missing table yields an empty
// one; an unreadable table value is treated as empty (tolerant read) rather
// than failing the whole operation.
func (s *Store) loadTable(typeName string) (table, error) {
	raw, err := s.backend.Get(s.tableKey(typeName))
	if err != nil {
		return nil, fmt.Errorf("loading table %s: %w", typeName, err)
	}
	tbl := make(table)
	if len(raw) == 0 {
		return tbl, nil
	}
	if err := json.Unmarshal(raw, &tbl); err != nil {
		logger.Warn("treating unreadable table as empty", "type", typeName, "err", err)
		return make(table), nil
	}
	return tbl, nil
}

func (s *Store) persistTable(typeName string, tbl table) error {
	raw, err := json.Marshal(tbl)
	if err != nil {
		return fmt.Errorf("encoding table %s: %w", typeName, err)
	}
	if err := s.backend.Set(s.tableKey(typeName), raw); err != nil {
		return fmt.Errorf("persisting table %s: %w", typeName, err)
	}
	return nil
}

// GetAll returns every record of the given type, empty when no table
// exists. Entries that fail to decode are dropped silently. The result
// carries no ordering guarantee.
func GetAll[T Record](s *Store, typ Type[T]) ([]T, error) {
	tbl, err := s.loadTable(typ.Name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(tbl))
	for id, raw := range tbl {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			logger.Warn("dropping undecodable record", "type", typ.Name, "id", id, "err", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the record with the given id, or false if the table or the
// entry is absent, or the stored value fails to decode.
func Get[T Record](s *Store, typ Type[T], id string) (T, bool, error) {
	var rec T
	tbl, err := s.loadTable(typ.Name)
	if err != nil {
		return rec, false, err
	}
	raw, ok := tbl[id]
	if !ok {
		return rec, false, nil
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.Warn("dropping undecodable record", "type", typ.Name, "id", id, "err", err)
		var zero T
		return zero, false, nil
	}
	return rec, true, nil
}

// Add inserts or replaces the given records. For each record the previous
// entry (if any) is captured first, then the table entry and the normalized
// entry are written, then the change is published: Update(old, new) when an
// old value existed and decoded, Add(new) otherwise. The table is persisted
// once after the whole batch.
//
// Notifications fire in input order and, by default, before the table write
// commits: a crash after a publish and before the persist leaves subscribers
// believing a write succeeded that was lost. This window is accepted rather
// than papered over; Options.PublishAfterPersist trades it for the stronger
// ordering.
func Add[T Record](s *Store, typ Type[T], recs ...T) error {
	if len(recs) == 0 {
		return nil
	}
	tbl, err := s.loadTable(typ.Name)
	if err != nil {
		return err
	}
	deferred := make([]notify.Event, 0, len(recs))
	for _, rec := range recs {
		id := rec.RecordID()
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s %q: %w", typ.Name, id, err)
		}
		old, hadOld := tbl[id]
		tbl[id] = raw
		if err := s.backend.Set(s.normKey(typ.Name, id), raw); err != nil {
			return fmt.Errorf("writing normalized entry %s.%s: %w", typ.Name, id, err)
		}

		ev := notify.Event{Type: typ.Name, ID: id, New: raw}
		var prev T
		if hadOld && json.Unmarshal(old, &prev) == nil {
			ev.Kind = notify.KindUpdate
			ev.Old = old
		} else {
			ev.Kind = notify.KindAdd
		}
		if s.deferPublish {
			deferred = append(deferred, ev)
		} else {
			s.bus.Post(ev)
		}
	}
	if err := s.persistTable(typ.Name, tbl); err != nil {
		return err
	}
	for _, ev := range deferred {
		s.bus.Post(ev)
	}
	return nil
}

// Delete removes the given records by id. The table entry and the
// normalized entry are removed and the table persisted; then Delete(id) is
// published for every input record, whether or not the id was present.
func Delete[T Record](s *Store, typ Type[T], recs ...T) error {
	if len(recs) == 0 {
		return nil
	}
	tbl, err := s.loadTable(typ.Name)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		id := rec.RecordID()
		delete(tbl, id)
		if err := s.backend.Delete(s.normKey(typ.Name, id)); err != nil {
			return fmt.Errorf("removing normalized entry %s.%s: %w", typ.Name, id, err)
		}
	}
	if err := s.persistTable(typ.Name, tbl); err != nil {
		return err
	}
	for _, rec := range recs {
		s.bus.Post(notify.Event{Type: typ.Name, Kind: notify.KindDelete, ID: rec.RecordID()})
	}
	return nil
}

// Subscribe registers on the store's bus with the canonical mapping for T.
func Subscribe[T Record](s *Store, typ Type[T]) *notify.Subscription[T] {
	return notify.RegisterType[T](s.bus, typ.Name)
}

// Flush overwrites every table under the store's namespace with an empty
// table. Normalized entries are left in place. The operation walks the
// backend key space and writes each table independently; it is not
// transactional.
func (s *Store) Flush() error {
	empty, _ := json.Marshal(make(table))
	var keys [][]byte
	err := s.backend.ForEachPrefix(s.tablePrefix(), func(key, _ []byte) error {
		k := make([]byte, len(key))
		copy(k, key)
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerating tables: %w", err)
	}
	for _, k := range keys {
		if err := s.backend.Set(k, empty); err != nil {
			return fmt.Errorf("flushing table %s: %w", k, err)
		}
	}
	logger.Info("flushed tables", "count", len(keys))
	return nil
}
