package sync

import "sync"

// Map is a generic synchronized map, wrapping the standard sync.Map
// with all the same caveats. The driver and the evaluator use it to
// share per-function results and file contents across workers.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Store a key,value pair.
func (sm *Map[K, V]) Store(k K, v V) {
	sm.m.Store(k, v)
}

// Load returns the value stored for a key, or the zero value if the
// key is absent.
func (sm *Map[K, V]) Load(k K) (v V) {
	vAny, ok := sm.m.Load(k)
	if !ok {
		return
	}
	return vAny.(V)
}

// Iter returns an iterator to range over the elements of the map.
func (sm *Map[K, V]) Iter() func(func(K, V) bool) {
	return func(yield func(K, V) bool) {
		sm.m.Range(func(k, v any) bool {
			return yield(k.(K), v.(V))
		})
	}
}
