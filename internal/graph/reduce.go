package graph

// Reduced pairs a node with its reduced value.
type Reduced[R any] struct {
	ID    NodeID
	Value R
}

// ReducedChildren gives a group reducer three views of its already-reduced
// children: groups only, leaves only, and all of them in insertion order.
type ReducedChildren[R any] struct {
	Groups []Reduced[R]
	Leaves []Reduced[R]
	All    []Reduced[R]
}

// Reducer folds a tree bottom-up.
type Reducer[L, G, R any] struct {
	Leaf  func(t *Tree[L, G], id NodeID) R
	Group func(t *Tree[L, G], id NodeID, children ReducedChildren[R]) R
}

// Reduce folds the subtree at from into a single value. Child groups are
// reduced before child leaves, and every child before its parent.
func Reduce[L, G, R any](t *Tree[L, G], from NodeID, r Reducer[L, G, R]) R {
	return reduce(t, from, r, nil)
}

// Collect is Reduce that also records the reduced value of every visited
// node.
func Collect[L, G, R any](t *Tree[L, G], from NodeID, r Reducer[L, G, R]) (R, map[NodeID]R) {
	seen := make(map[NodeID]R, t.Len())
	result := reduce(t, from, r, seen)
	return result, seen
}

func reduce[L, G, R any](t *Tree[L, G], id NodeID, r Reducer[L, G, R], seen map[NodeID]R) R {
	if !t.IsGroup(id) {
		v := r.Leaf(t, id)
		if seen != nil {
			seen[id] = v
		}
		return v
	}

	children := t.Children(id)
	values := make(map[NodeID]R, len(children))
	var rc ReducedChildren[R]

	for _, c := range children {
		if t.IsGroup(c) {
			v := reduce(t, c, r, seen)
			values[c] = v
			rc.Groups = append(rc.Groups, Reduced[R]{ID: c, Value: v})
		}
	}
	for _, c := range children {
		if !t.IsGroup(c) {
			v := reduce(t, c, r, seen)
			values[c] = v
			rc.Leaves = append(rc.Leaves, Reduced[R]{ID: c, Value: v})
		}
	}
	for _, c := range children {
		rc.All = append(rc.All, Reduced[R]{ID: c, Value: values[c]})
	}

	v := r.Group(t, id, rc)
	if seen != nil {
		seen[id] = v
	}
	return v
}

// Walk visits every node of the subtree at from in pre-order (parent before
// children, insertion order). Returning false from fn skips the node's
// children.
func Walk[L, G any](t *Tree[L, G], from NodeID, fn func(id NodeID, depth int) bool) {
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		if !fn(id, depth) {
			return
		}
		for _, c := range t.Children(id) {
			visit(c, depth+1)
		}
	}
	visit(from, 0)
}
