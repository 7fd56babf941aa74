package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countReducer() Reducer[string, string, int] {
	return Reducer[string, string, int]{
		Leaf: func(*Tree[string, string], NodeID) int { return 1 },
		Group: func(_ *Tree[string, string], _ NodeID, c ReducedChildren[int]) int {
			sum := 0
			for _, r := range c.All {
				sum += r.Value
			}
			return sum
		},
	}
}

func TestReduce_EmptyTree(t *testing.T) {
	tree := newTestTree()
	calls := 0
	got := Reduce(tree, RootID, Reducer[string, string, int]{
		Leaf: func(*Tree[string, string], NodeID) int {
			t.Fatal("no leaves expected")
			return 0
		},
		Group: func(_ *Tree[string, string], id NodeID, c ReducedChildren[int]) int {
			calls++
			assert.Equal(t, RootID, id)
			assert.Empty(t, c.Groups)
			assert.Empty(t, c.Leaves)
			assert.Empty(t, c.All)
			return 42
		},
	})
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestCollect_CountsPerNode(t *testing.T) {
	tree := newTestTree()
	for _, p := range []string{"group1/leaf1", "group1/leaf2", "group2/leaf3"} {
		_, err := tree.AddLeafAtPath(p, p, true)
		require.NoError(t, err)
	}

	total, byNode := Collect(tree, RootID, countReducer())
	assert.Equal(t, 3, total)

	byPath := map[string]int{}
	for id, v := range byNode {
		byPath[tree.Path(id)] = v
	}
	assert.Equal(t, map[string]int{
		"":             3,
		"group1":       2,
		"group1/leaf1": 1,
		"group1/leaf2": 1,
		"group2":       1,
		"group2/leaf3": 1,
	}, byPath)
}

func TestReduce_GroupsFirstPostOrder(t *testing.T) {
	tree := newTestTree()
	for _, p := range []string{"leafA", "g1/x", "leafB", "g2/y"} {
		_, err := tree.AddLeafAtPath(p, p, true)
		require.NoError(t, err)
	}

	var order []string
	var rootAll []string
	Reduce(tree, RootID, Reducer[string, string, string]{
		Leaf: func(t *Tree[string, string], id NodeID) string {
			order = append(order, t.Path(id))
			return t.Path(id)
		},
		Group: func(tr *Tree[string, string], id NodeID, c ReducedChildren[string]) string {
			order = append(order, "group:"+tr.Path(id))
			if id == RootID {
				for _, r := range c.All {
					rootAll = append(rootAll, r.Value)
				}
				assert.Len(t, c.Groups, 2)
				assert.Len(t, c.Leaves, 2)
			}
			return tr.Path(id)
		},
	})

	assert.Equal(t, []string{
		"g1/x", "group:g1",
		"g2/y", "group:g2",
		"leafA", "leafB",
		"group:",
	}, order)
	assert.Equal(t, []string{"leafA", "g1", "leafB", "g2"}, rootAll, "All keeps insertion order")
}

func TestReduce_Subtree(t *testing.T) {
	tree := newTestTree()
	for _, p := range []string{"a/b/c", "a/b/d", "e"} {
		_, err := tree.AddLeafAtPath(p, p, true)
		require.NoError(t, err)
	}
	b, _ := tree.GetNode("a/b")
	total, byNode := Collect(tree, b, countReducer())
	assert.Equal(t, 2, total)
	assert.Len(t, byNode, 3)
}

func TestWalk_PreOrderWithSkip(t *testing.T) {
	tree := newTestTree()
	for _, p := range []string{"a/x", "a/y", "b/z"} {
		_, err := tree.AddLeafAtPath(p, p, true)
		require.NoError(t, err)
	}
	var visited []string
	Walk(tree, RootID, func(id NodeID, depth int) bool {
		visited = append(visited, tree.Path(id))
		return tree.Path(id) != "b"
	})
	assert.Equal(t, []string{"", "a", "a/x", "a/y", "b"}, visited)
}
