package lattice

import (
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/ironledger/api"
)

// TypeSet is an immutable set of collection types. Bits are the canonical
// ordinals from api.CollectionTypes, so iteration order is deterministic.
// The zero value is the empty set.
type TypeSet struct {
	bm *roaring.Bitmap
}

// NewTypeSet returns a set holding the given types. Unknown types are
// dropped.
func NewTypeSet(types ...api.CollectionType) TypeSet {
	bm := roaring.New()
	for _, t := range types {
		if i := t.Ordinal(); i >= 0 {
			bm.Add(uint32(i))
		}
	}
	return TypeSet{bm: bm}
}

// Universe is every collection type a folder may hold. The root type is
// reserved for the package root and is not part of it.
func Universe() TypeSet {
	bm := roaring.New()
	bm.AddRange(1, uint64(len(api.CollectionTypes)))
	return TypeSet{bm: bm}
}

func (s TypeSet) bitmap() *roaring.Bitmap {
	if s.bm == nil {
		return roaring.New()
	}
	return s.bm
}

// Intersect returns the types present in both sets.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	return TypeSet{bm: roaring.And(s.bitmap(), o.bitmap())}
}

// Contains reports whether t is in the set.
func (s TypeSet) Contains(t api.CollectionType) bool {
	i := t.Ordinal()
	return i >= 0 && s.bm != nil && s.bm.Contains(uint32(i))
}

// Len returns the number of types in the set.
func (s TypeSet) Len() int {
	if s.bm == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set holds no types.
func (s TypeSet) IsEmpty() bool { return s.Len() == 0 }

// Equal reports whether both sets hold the same types.
func (s TypeSet) Equal(o TypeSet) bool {
	return s.bitmap().Equals(o.bitmap())
}

// Types returns the members in canonical order.
func (s TypeSet) Types() []api.CollectionType {
	if s.bm == nil {
		return nil
	}
	out := make([]api.CollectionType, 0, s.bm.GetCardinality())
	for _, i := range s.bm.ToArray() {
		out = append(out, api.CollectionTypes[i])
	}
	return out
}

// Single returns the only member of a one-element set.
func (s TypeSet) Single() (api.CollectionType, bool) {
	if s.Len() != 1 {
		return "", false
	}
	return api.CollectionTypes[s.bm.Minimum()], true
}

func (s TypeSet) String() string {
	types := s.Types()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
