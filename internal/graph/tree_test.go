package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree() *Tree[string, string] {
	return NewTree[string, string]("root", func(path string) string { return "auto:" + path })
}

func TestTree_AddLeafCreatesParents(t *testing.T) {
	tree := newTestTree()
	leaf, err := tree.AddLeafAtPath("a/b/c", "leaf", true)
	require.NoError(t, err)

	assert.Equal(t, LeafKind, tree.Kind(leaf))
	assert.Equal(t, "a/b/c", tree.Path(leaf))
	assert.Equal(t, "c", tree.Name(leaf))

	b, ok := tree.GetNode("a/b")
	require.True(t, ok)
	assert.Equal(t, GroupKind, tree.Kind(b))
	assert.Equal(t, "auto:a/b", tree.Group(b))
	assert.Equal(t, b, tree.Parent(leaf))

	a, ok := tree.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, "auto:a", tree.Group(a))
	assert.Equal(t, RootID, tree.Parent(a))
	assert.Equal(t, NoNode, tree.Parent(RootID))
}

func TestTree_MissingParentWithoutCreate(t *testing.T) {
	tree := newTestTree()
	_, err := tree.AddLeafAtPath("a/b", "x", false)
	assert.ErrorIs(t, err, ErrMissingParent)

	_, ok := tree.GetNode("a")
	assert.False(t, ok, "failed insert must not leave partial ancestors")

	// Top-level insert needs no creation: the root always exists.
	_, err = tree.AddGroupAtPath("a", "g", false)
	require.NoError(t, err)
	_, err = tree.AddLeafAtPath("a/b", "x", false)
	require.NoError(t, err)
}

func TestTree_RepeatAddOverwritesInPlace(t *testing.T) {
	tree := newTestTree()
	first, err := tree.AddLeafAtPath("a/x", "v1", true)
	require.NoError(t, err)
	second, err := tree.AddLeafAtPath("a/x", "v2", true)
	require.NoError(t, err)

	assert.Equal(t, first, second, "node identity must be preserved")
	assert.Equal(t, "v2", tree.Leaf(first))

	a, _ := tree.GetNode("a")
	assert.Len(t, tree.Children(a), 1)

	g1, err := tree.AddGroupAtPath("a", "explicit", false)
	require.NoError(t, err)
	assert.Equal(t, a, g1)
	assert.Equal(t, "explicit", tree.Group(a))
}

func TestTree_TypeConflict(t *testing.T) {
	tree := newTestTree()
	_, err := tree.AddLeafAtPath("a/x", "leaf", true)
	require.NoError(t, err)

	_, err = tree.AddGroupAtPath("a/x", "group", true)
	assert.ErrorIs(t, err, ErrTypeConflict)

	_, err = tree.AddLeafAtPath("a", "leaf", true)
	assert.ErrorIs(t, err, ErrTypeConflict)

	_, err = tree.AddLeafAtPath("a/x/y", "under a leaf", true)
	assert.ErrorIs(t, err, ErrTypeConflict)
}

func TestTree_RejectsEmptyAndMalformedPaths(t *testing.T) {
	tree := newTestTree()
	_, err := tree.AddLeafAtPath("", "x", true)
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = tree.AddGroupAtPath("", "x", true)
	assert.ErrorIs(t, err, ErrEmptyPath)

	for _, p := range []string{"/a", "a/", "a//b"} {
		_, err = tree.AddLeafAtPath(p, "x", true)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
}

func TestTree_FindLongestPrefix(t *testing.T) {
	tree := newTestTree()
	_, err := tree.AddGroupAtPath("a/b", "g", true)
	require.NoError(t, err)

	b, _ := tree.GetNode("a/b")
	assert.Equal(t, b, tree.FindLongestPrefix("a/b/c/d"))
	assert.Equal(t, b, tree.FindLongestPrefix("a/b"))

	a, _ := tree.GetNode("a")
	assert.Equal(t, a, tree.FindLongestPrefix("a/zzz"))
	assert.Equal(t, RootID, tree.FindLongestPrefix("elsewhere/x"))
	assert.Equal(t, RootID, tree.FindLongestPrefix(""))
}

func TestTree_ChildrenKeepInsertionOrder(t *testing.T) {
	tree := newTestTree()
	for _, p := range []string{"z", "a/1", "m", "a/0"} {
		_, err := tree.AddLeafAtPath(p, p, true)
		require.NoError(t, err)
	}
	var names []string
	for _, c := range tree.Children(RootID) {
		names = append(names, tree.Name(c))
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
}
