// Package safemap provides a generic map guarded by a read/write mutex whose
// snapshots come back in key order. Servers use it as their connection table
// so that broadcasts and shutdowns visit sessions deterministically.
package safemap

import (
	"cmp"
	"slices"
	"sync"
)

// SafeMap is a concurrent map that is safe for use by multiple goroutines.
// Range, Keys, and Values operate on a snapshot, so callbacks may modify the
// map without deadlocking.
//
// SafeMap must not be copied after first use.
type SafeMap[K cmp.Ordered, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewSafeMap returns a new, empty SafeMap.
//
// Returns:
//   - A pointer to a new SafeMap[K, V]
func NewSafeMap[K cmp.Ordered, V any]() *SafeMap[K, V] {
	return &SafeMap[K, V]{m: make(map[K]V)}
}

// Store sets the value for key k, overwriting any existing value.
//
// Parameters:
//   - k: The key to store
//   - v: The value to associate with k
func (m *SafeMap[K, V]) Store(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[k] = v
}

// Load returns the value for key k and whether it was present.
//
// Parameters:
//   - k: The key to look up
//
// Returns:
//   - The value associated with k, or the zero value of V if not found
//   - true if the key was present, false otherwise
func (m *SafeMap[K, V]) Load(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[k]
	return v, ok
}

// Delete removes the entry for key k. Deleting a missing key is a no-op.
func (m *SafeMap[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, k)
}

// LoadAndDelete removes the entry for key k and returns its previous value.
//
// Parameters:
//   - k: The key to remove
//
// Returns:
//   - The removed value, or the zero value of V if not found
//   - true if the key was present
func (m *SafeMap[K, V]) LoadAndDelete(k K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[k]
	if ok {
		delete(m.m, k)
	}
	return v, ok
}

// CompareAndDelete removes the entry for key k only if match reports true for
// its current value.
//
// Returns:
//   - true if an entry was removed
func (m *SafeMap[K, V]) CompareAndDelete(k K, match func(V) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[k]
	if !ok || !match(v) {
		return false
	}
	delete(m.m, k)
	return true
}

// Has reports whether key k is present in the map.
func (m *SafeMap[K, V]) Has(k K) bool {
	_, ok := m.Load(k)
	return ok
}

// Len returns the number of entries in the map.
func (m *SafeMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Keys returns every key in ascending order.
func (m *SafeMap[K, V]) Keys() []K {
	m.mu.RLock()
	keys := make([]K, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Values returns every value ordered by ascending key.
func (m *SafeMap[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.valuesLocked()
}

// Range calls f for each entry of a snapshot of the map, in ascending key
// order. Iteration stops when f returns false.
//
// Parameters:
//   - f: Function called for each entry; return false to stop iteration
func (m *SafeMap[K, V]) Range(f func(k K, v V) bool) {
	for _, k := range m.Keys() {
		v, ok := m.Load(k)
		if !ok {
			continue
		}
		if !f(k, v) {
			return
		}
	}
}

// Drain removes every entry and returns the removed values ordered by key.
//
// Returns:
//   - The values that were in the map
func (m *SafeMap[K, V]) Drain() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	values := m.valuesLocked()
	m.m = make(map[K]V)
	return values
}

func (m *SafeMap[K, V]) valuesLocked() []V {
	keys := make([]K, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	values := make([]V, 0, len(keys))
	for _, k := range keys {
		values = append(values, m.m[k])
	}
	return values
}
