// Package graph holds the path-addressed node tree used to assemble a
// package from a flat set of content paths.
//
// Nodes live in an arena owned by the Tree and are addressed by NodeID.
// Re-adding a node at an existing path replaces the payload in the same
// arena slot, so a NodeID stays valid for the lifetime of the tree.
package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("empty path is reserved for the root group")
	ErrInvalidPath   = errors.New("invalid node path")
	ErrMissingParent = errors.New("parent node does not exist")
	ErrTypeConflict  = errors.New("node kind conflict")
)

// Kind tags the node variant.
type Kind uint8

const (
	GroupKind Kind = iota
	LeafKind
)

func (k Kind) String() string {
	if k == GroupKind {
		return "group"
	}
	return "leaf"
}

// NodeID addresses a node inside its Tree.
type NodeID int32

// RootID is the id of the root group of every tree.
const RootID NodeID = 0

// NoNode is returned where a node is absent (e.g. the root's parent).
const NoNode NodeID = -1

type entry[L, G any] struct {
	kind     Kind
	path     string
	name     string
	parent   NodeID
	children []NodeID // groups only, insertion order
	leaf     L
	group    G
}

// Tree is an ordered tree keyed by slash-delimited paths with group and
// leaf nodes carrying payloads of type G and L respectively.
type Tree[L, G any] struct {
	nodes        []entry[L, G]
	byPath       map[string]NodeID
	defaultGroup func(path string) G
}

// NewTree creates a tree whose root group holds rootData. defaultGroup
// produces the payload for groups auto-created as missing ancestors; nil
// means the zero value of G.
func NewTree[L, G any](rootData G, defaultGroup func(path string) G) *Tree[L, G] {
	if defaultGroup == nil {
		defaultGroup = func(string) G {
			var zero G
			return zero
		}
	}
	t := &Tree[L, G]{
		byPath:       map[string]NodeID{"": RootID},
		defaultGroup: defaultGroup,
	}
	t.nodes = append(t.nodes, entry[L, G]{kind: GroupKind, parent: NoNode, group: rootData})
	return t
}

// Root returns the root group id.
func (t *Tree[L, G]) Root() NodeID { return RootID }

// Len returns the number of nodes, including the root.
func (t *Tree[L, G]) Len() int { return len(t.nodes) }

// AddGroupAtPath inserts or updates the group at path.
func (t *Tree[L, G]) AddGroupAtPath(path string, data G, createIfMissing bool) (NodeID, error) {
	id, err := t.add(path, GroupKind, createIfMissing)
	if err != nil {
		return NoNode, err
	}
	t.nodes[id].group = data
	return id, nil
}

// AddLeafAtPath inserts or updates the leaf at path.
func (t *Tree[L, G]) AddLeafAtPath(path string, data L, createIfMissing bool) (NodeID, error) {
	id, err := t.add(path, LeafKind, createIfMissing)
	if err != nil {
		return NoNode, err
	}
	t.nodes[id].leaf = data
	return id, nil
}

func (t *Tree[L, G]) add(path string, kind Kind, createIfMissing bool) (NodeID, error) {
	if path == "" {
		return NoNode, ErrEmptyPath
	}
	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") || strings.Contains(path, "//") {
		return NoNode, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	if id, ok := t.byPath[path]; ok {
		if t.nodes[id].kind != kind {
			return NoNode, fmt.Errorf("%w: %q is a %s, not a %s", ErrTypeConflict, path, t.nodes[id].kind, kind)
		}
		return id, nil
	}

	parentPath, name := splitPath(path)
	parent, ok := t.byPath[parentPath]
	if !ok {
		if !createIfMissing {
			return NoNode, fmt.Errorf("%w: %q", ErrMissingParent, parentPath)
		}
		var err error
		parent, err = t.add(parentPath, GroupKind, true)
		if err != nil {
			return NoNode, err
		}
		t.nodes[parent].group = t.defaultGroup(parentPath)
	}
	if t.nodes[parent].kind != GroupKind {
		return NoNode, fmt.Errorf("%w: parent %q of %q is a leaf", ErrTypeConflict, parentPath, path)
	}

	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, entry[L, G]{kind: kind, path: path, name: name, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	t.byPath[path] = id
	return id, nil
}

// GetNode looks up the node at path.
func (t *Tree[L, G]) GetNode(path string) (NodeID, bool) {
	id, ok := t.byPath[path]
	return id, ok
}

// FindLongestPrefix returns the deepest existing node on the way from path
// up to the root. The root always matches, so the result is never NoNode.
func (t *Tree[L, G]) FindLongestPrefix(path string) NodeID {
	for {
		if id, ok := t.byPath[path]; ok {
			return id
		}
		if path == "" {
			return RootID
		}
		path, _ = splitPath(path)
	}
}

// Kind returns the variant of id.
func (t *Tree[L, G]) Kind(id NodeID) Kind { return t.nodes[id].kind }

// IsGroup reports whether id is a group.
func (t *Tree[L, G]) IsGroup(id NodeID) bool { return t.nodes[id].kind == GroupKind }

// Path returns the full path of id ("" for the root).
func (t *Tree[L, G]) Path(id NodeID) string { return t.nodes[id].path }

// Name returns the last path segment of id ("" for the root).
func (t *Tree[L, G]) Name(id NodeID) string { return t.nodes[id].name }

// Parent returns the parent of id, or NoNode for the root.
func (t *Tree[L, G]) Parent(id NodeID) NodeID { return t.nodes[id].parent }

// Children returns the children of a group in insertion order. Leaves have
// none. The slice must not be modified.
func (t *Tree[L, G]) Children(id NodeID) []NodeID { return t.nodes[id].children }

// Leaf returns the payload of a leaf node.
func (t *Tree[L, G]) Leaf(id NodeID) L { return t.nodes[id].leaf }

// Group returns the payload of a group node.
func (t *Tree[L, G]) Group(id NodeID) G { return t.nodes[id].group }

func splitPath(path string) (parent, name string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
