package lattice

import (
	"errors"
	"fmt"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/graph"
)

// ErrNoValidTypes marks a group whose children admit no common collection
// type.
var ErrNoValidTypes = errors.New("no valid collection types found")

// candidates maps an entry type to the collection types that may hold it.
var candidates = map[api.ContentType][]api.CollectionType{
	api.OracleRollable:   {api.OracleCollections},
	api.OracleCollection: {api.OracleCollections},
	api.Move:             {api.MoveCategory},
	api.Asset:            {api.AssetCollection},
	api.NPC:              {api.NPCCollection},
	api.AtlasEntry:       {api.AtlasCollection},
	api.Truth:            {api.Truths},
	api.Rarity:           {api.Rarities, api.AssetCollection},
	api.DelveSite:        {api.DelveSites},
	api.DelveSiteTheme:   {api.SiteThemes},
	api.DelveSiteDomain:  {api.SiteDomains},
}

// CandidateCollections returns the collection types that may contain an
// entry of type t. Unknown types yield the empty set.
func CandidateCollections(t api.ContentType) TypeSet {
	return NewTypeSet(candidates[t]...)
}

// LabelKind distinguishes package nodes from collection nodes.
type LabelKind uint8

const (
	LabelCollection LabelKind = iota
	LabelPackage
)

func (k LabelKind) String() string {
	if k == LabelPackage {
		return "package"
	}
	return "collection"
}

// Label is the inferred classification of a node. For collections, either
// Types is non-empty or Err is set.
type Label struct {
	Kind  LabelKind
	Types TypeSet
	Err   error
}

// OK reports whether the label resolved without a conflict.
func (l Label) OK() bool { return l.Err == nil }

// Single returns the collection type when exactly one is allowed.
func (l Label) Single() (api.CollectionType, bool) {
	if l.Err != nil || l.Kind != LabelCollection {
		return "", false
	}
	return l.Types.Single()
}

func (l Label) String() string {
	switch {
	case l.Kind == LabelPackage:
		return "package"
	case l.Err != nil:
		return "error: " + l.Err.Error()
	default:
		return l.Types.String()
	}
}

// inferred is the per-node reduction value. Only labelled nodes end up in
// the result; contributes marks nodes that constrain their parent.
type inferred struct {
	label       Label
	labelled    bool
	contributes bool
	types       TypeSet
}

// LabelCollections infers a label for every group of t and for every
// package leaf. Other leaves are absent from the result.
//
// A group's types are the intersection of what its direct children allow.
// Parse errors, package leaves, package groups and conflicting groups do
// not constrain their parent. A group with no constraining children may
// hold anything; the root is always {root}.
func LabelCollections[G any](t *graph.Tree[api.Content, G]) map[graph.NodeID]Label {
	_, all := graph.Collect(t, t.Root(), graph.Reducer[api.Content, G, inferred]{
		Leaf:  labelLeaf[G],
		Group: labelGroup[G],
	})

	labels := make(map[graph.NodeID]Label, len(all))
	for id, v := range all {
		if v.labelled {
			labels[id] = v.label
		}
	}
	return labels
}

func labelLeaf[G any](t *graph.Tree[api.Content, G], id graph.NodeID) inferred {
	c := t.Leaf(id)
	switch c.Kind {
	case api.KindPackage:
		return inferred{label: Label{Kind: LabelPackage}, labelled: true}
	case api.KindIndex:
		set := NewTypeSet(c.IndexType)
		return inferred{types: set, contributes: !set.IsEmpty()}
	default:
		if !c.OK() || c.Entry == nil {
			return inferred{}
		}
		set := CandidateCollections(c.Entry.Type)
		return inferred{types: set, contributes: !set.IsEmpty()}
	}
}

func labelGroup[G any](t *graph.Tree[api.Content, G], id graph.NodeID, children graph.ReducedChildren[inferred]) inferred {
	if id == t.Root() {
		root := NewTypeSet(api.RootCollection)
		return inferred{label: Label{Kind: LabelCollection, Types: root}, labelled: true}
	}

	for _, leaf := range children.Leaves {
		if t.Leaf(leaf.ID).Kind == api.KindPackage {
			return inferred{label: Label{Kind: LabelPackage}, labelled: true}
		}
	}

	set := Universe()
	var seen []TypeSet
	for _, c := range children.All {
		if !c.Value.contributes {
			continue
		}
		seen = append(seen, c.Value.types)
		set = set.Intersect(c.Value.types)
	}

	if set.IsEmpty() {
		err := fmt.Errorf("%w in %q: children allow %v", ErrNoValidTypes, t.Path(id), seen)
		return inferred{label: Label{Kind: LabelCollection, Err: err}, labelled: true}
	}
	return inferred{
		label:       Label{Kind: LabelCollection, Types: set},
		labelled:    true,
		contributes: true,
		types:       set,
	}
}
