package vmap

import "iter"

// Projected is a read-only live view over another Reader. Every access
// re-runs the transform against the current source; nothing is cached.
// Entries for which the transform reports false are invisible to every
// method, including Len and iteration.
type Projected[K comparable, V, W any] struct {
	source    Reader[K, V]
	transform func(value V, key K) (W, bool)
}

// Project returns a view of source through transform. Projections compose:
// the source may itself be a Projected.
func Project[K comparable, V, W any](source Reader[K, V], transform func(value V, key K) (W, bool)) *Projected[K, V, W] {
	return &Projected[K, V, W]{source: source, transform: transform}
}

// Revision passes the source revision through unchanged.
func (p *Projected[K, V, W]) Revision() uint64 {
	return p.source.Revision()
}

// Get returns the transformed value for key.
func (p *Projected[K, V, W]) Get(key K) (W, bool) {
	v, ok := p.source.Get(key)
	if !ok {
		var zero W
		return zero, false
	}
	return p.transform(v, key)
}

// Has reports whether key is visible through the projection.
func (p *Projected[K, V, W]) Has(key K) bool {
	_, ok := p.Get(key)
	return ok
}

// Len counts visible entries. It is O(n).
func (p *Projected[K, V, W]) Len() int {
	n := 0
	for range p.All() {
		n++
	}
	return n
}

// All yields visible entries in source order.
func (p *Projected[K, V, W]) All() iter.Seq2[K, W] {
	return func(yield func(K, W) bool) {
		for k, v := range p.source.All() {
			w, ok := p.transform(v, k)
			if !ok {
				continue
			}
			if !yield(k, w) {
				return
			}
		}
	}
}

// Keys yields visible keys.
func (p *Projected[K, V, W]) Keys() iter.Seq[K] {
	return keys[K, W](p)
}

// Values yields visible transformed values.
func (p *Projected[K, V, W]) Values() iter.Seq[W] {
	return values[K, W](p)
}

// ForEach calls fn for every visible entry.
func (p *Projected[K, V, W]) ForEach(fn func(key K, value W)) {
	for k, w := range p.All() {
		fn(k, w)
	}
}

var _ Reader[string, int] = (*Projected[string, string, int])(nil)
