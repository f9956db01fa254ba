package cache

import "sync/atomic"

// Snapshot is a lock-free holder for an immutable value, used to publish
// the latest completed campaign report to readers without locking.
type Snapshot[T any] struct{ p atomic.Pointer[T] }

// Load returns the stored value, or nil and false when nothing has been
// published yet.
func (s *Snapshot[T]) Load() (*T, bool) {
	v := s.p.Load()
	return v, v != nil
}

// Store atomically swaps in the new value. The caller must not mutate v
// after publishing.
func (s *Snapshot[T]) Store(v *T) { s.p.Store(v) }
