// Package vmap provides revision-stamped maps and live projected views over
// them. A revision is a monotonic counter bumped once per observable
// mutation, so consumers detect staleness by comparing two integers instead
// of diffing contents.
//
// Maps are not safe for concurrent use; callers serialize writes.
package vmap

import (
	"iter"
	"maps"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Reader is the read-only surface shared by Map and Projected.
type Reader[K comparable, V any] interface {
	Get(key K) (V, bool)
	Has(key K) bool
	Len() int
	All() iter.Seq2[K, V]
	Revision() uint64
}

// Map is an insertion-ordered key/value container with a revision counter
// and change events.
type Map[K comparable, V any] struct {
	entries  *orderedmap.OrderedMap[K, V]
	revision uint64

	// batch depth for AsSingleRevision; dirty records a mutation inside it.
	batch int
	dirty bool

	nextSub int
	changed map[int]func(key K)
	renamed map[int]func(oldKey, newKey K)
}

// New returns an empty map at revision 0.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		entries: orderedmap.New[K, V](),
		changed: make(map[int]func(K)),
		renamed: make(map[int]func(K, K)),
	}
}

// Revision returns the current revision.
func (m *Map[K, V]) Revision() uint64 {
	return m.revision
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.entries.Get(key)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.entries.Get(key)
	return ok
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.entries.Len()
}

// All yields entries in insertion order. Mutating the map while iterating is
// allowed: the key order is fixed when iteration starts, entries deleted
// before they are reached are skipped and each value is read when its key is
// reached. Keys added during iteration are not visited.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		order := make([]K, 0, m.entries.Len())
		for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
			order = append(order, pair.Key)
		}
		for _, k := range order {
			v, ok := m.entries.Get(k)
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Keys yields keys in insertion order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return keys[K, V](m)
}

// Values yields values in insertion order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return values[K, V](m)
}

// ForEach calls fn for every entry in insertion order.
func (m *Map[K, V]) ForEach(fn func(key K, value V)) {
	for k, v := range m.All() {
		fn(k, v)
	}
}

// Set stores value under key. Every Set is an observable change.
func (m *Map[K, V]) Set(key K, value V) {
	m.entries.Set(key, value)
	m.bump()
	m.emitChanged(key)
}

// Delete removes key. Deleting an absent key is a no-op and does not bump
// the revision.
func (m *Map[K, V]) Delete(key K) bool {
	if _, ok := m.entries.Delete(key); !ok {
		return false
	}
	m.bump()
	m.emitChanged(key)
	return true
}

// Clear removes every entry. Clearing an empty map is a no-op.
func (m *Map[K, V]) Clear() {
	if m.entries.Len() == 0 {
		return
	}
	var removed []K
	for k := range m.Keys() {
		removed = append(removed, k)
	}
	m.entries = orderedmap.New[K, V]()
	m.bump()
	for _, k := range removed {
		m.emitChanged(k)
	}
}

// Rename moves the value stored under oldKey to newKey, replacing anything
// already at newKey. It is a single revision and fires a renamed event.
func (m *Map[K, V]) Rename(oldKey, newKey K) bool {
	value, ok := m.entries.Get(oldKey)
	if !ok {
		return false
	}
	if oldKey == newKey {
		return true
	}
	m.entries.Delete(oldKey)
	m.entries.Set(newKey, value)
	m.bump()
	for _, id := range sortedIDs(m.renamed) {
		if fn, ok := m.renamed[id]; ok {
			fn(oldKey, newKey)
		}
	}
	return true
}

// AsSingleRevision runs fn and guarantees the revision advances by at most
// one, no matter how many mutations fn performs. The bump still happens when
// fn returns an error or panics; the error is returned and the panic
// continues after the bump. Nested calls fold into the outermost one.
func (m *Map[K, V]) AsSingleRevision(fn func(m *Map[K, V]) error) error {
	m.batch++
	defer func() {
		m.batch--
		if m.batch == 0 && m.dirty {
			m.dirty = false
			m.revision++
		}
	}()
	return fn(m)
}

// OnChanged subscribes to per-key change events (set, delete, clear).
// The returned function unsubscribes.
func (m *Map[K, V]) OnChanged(fn func(key K)) func() {
	id := m.nextSub
	m.nextSub++
	m.changed[id] = fn
	return func() { delete(m.changed, id) }
}

// OnRenamed subscribes to rename events.
func (m *Map[K, V]) OnRenamed(fn func(oldKey, newKey K)) func() {
	id := m.nextSub
	m.nextSub++
	m.renamed[id] = fn
	return func() { delete(m.renamed, id) }
}

func (m *Map[K, V]) bump() {
	if m.batch > 0 {
		m.dirty = true
		return
	}
	m.revision++
}

// emitChanged calls subscribers in subscription order.
func (m *Map[K, V]) emitChanged(key K) {
	for _, id := range sortedIDs(m.changed) {
		if fn, ok := m.changed[id]; ok {
			fn(key)
		}
	}
}

func sortedIDs[F any](subs map[int]F) []int {
	return slices.Sorted(maps.Keys(subs))
}

func keys[K comparable, V any](r Reader[K, V]) iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range r.All() {
			if !yield(k) {
				return
			}
		}
	}
}

func values[K comparable, V any](r Reader[K, V]) iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range r.All() {
			if !yield(v) {
				return
			}
		}
	}
}

var _ Reader[string, int] = (*Map[string, int])(nil)
