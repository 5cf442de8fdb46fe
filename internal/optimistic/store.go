// Package optimistic applies mutations to a local cache before the remote
// store confirms them, and commits or rolls back once it answers.
package optimistic

import (
	"fmt"
	"sync"
)

// Key addresses one cached aggregate snapshot.
type Key struct {
	Kind        string
	AggregateID string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Kind, k.AggregateID)
}

// Store is a key-addressed snapshot cache. Implementations must be safe for
// concurrent use and must run Update's function atomically with respect to
// every other call on the same key.
type Store[V any] interface {
	Get(key Key) (V, bool)
	Set(key Key, v V)
	Delete(key Key)
	// Update replaces the value under key with fn's result. When fn returns
	// false the key is removed.
	Update(key Key, fn func(cur V, ok bool) (V, bool))
}

// MemoryStore is an in-process Store. Values are stored as given; callers
// must treat them as immutable.
type MemoryStore[V any] struct {
	mu   sync.Mutex
	data map[Key]V
}

func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{data: make(map[Key]V)}
}

func (s *MemoryStore[V]) Get(key Key) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStore[V]) Set(key Key, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = v
}

func (s *MemoryStore[V]) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *MemoryStore[V]) Update(key Key, fn func(cur V, ok bool) (V, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	next, keep := fn(cur, ok)
	if !keep {
		delete(s.data, key)
		return
	}
	s.data[key] = next
}

// Len returns the number of cached snapshots.
func (s *MemoryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
