package kv

// Store is a flat persisted key-value backend. The initial implementation
// uses bbolt; the interface allows swapping to a different embedded store
// (or the platform settings store on mobile) without touching callers.
//
// Multi-key writes are not transactional: callers that write several keys
// must tolerate a crash between writes.
type Store interface {
	// Get returns the value for key, or (nil, nil) if the key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// ForEachPrefix calls fn for every key starting with prefix.
	// Returning an error from fn stops the iteration.
	ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
