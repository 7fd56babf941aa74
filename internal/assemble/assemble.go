// Package assemble turns the content snapshot of one root into a package:
// it builds the node tree, labels collections, and checks every file
// against the label of the folder that holds it.
package assemble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/graph"
	"github.com/agentic-research/ironledger/internal/lattice"
)

var (
	ErrNotInCollection    = errors.New("entry is not inside a collection folder")
	ErrAmbiguousContainer = errors.New("collection type is ambiguous")
	ErrDuplicatePackage   = errors.New("root declares more than one package")
	ErrContentAtRoot      = errors.New("content sits at the root path itself")
)

// FileResult is the outcome for one content record. Problem is nil for
// valid records.
type FileResult struct {
	Content    api.Content
	ID         string
	Collection api.CollectionType
	Problem    error
}

// OK reports whether the record made it into the package.
func (r FileResult) OK() bool { return r.Problem == nil }

// Result is the assembly of one root.
type Result struct {
	Root    string
	Files   map[string]FileResult
	Package *api.RulesPackage
	// Labels holds the label of every collection folder and package node,
	// keyed by absolute path.
	Labels map[string]lattice.Label
}

// Problems returns the files that carry a problem.
func (r Result) Problems() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Problem != nil {
			out = append(out, f)
		}
	}
	return out
}

type tree = graph.Tree[api.Content, struct{}]

// Assemble builds the package for root from its content snapshot. Paths in
// contents are absolute; they must lie at or beneath root.
func Assemble(root string, contents []api.Content) Result {
	res := Result{
		Root:   root,
		Files:  make(map[string]FileResult, len(contents)),
		Labels: make(map[string]lattice.Label),
	}

	t := graph.NewTree[api.Content, struct{}](struct{}{}, nil)
	var stubs []api.Content
	for _, c := range contents {
		rel := api.Rel(c.Path, root)
		if rel == "" {
			res.Files[c.Path] = FileResult{Content: c, Problem: ErrContentAtRoot}
			continue
		}
		if _, err := t.AddLeafAtPath(rel, c, true); err != nil {
			res.Files[c.Path] = FileResult{Content: c, Problem: err}
			continue
		}
		if c.Kind == api.KindPackage {
			stubs = append(stubs, c)
		}
	}

	labels := lattice.LabelCollections(t)
	for id, l := range labels {
		res.Labels[api.Join(root, t.Path(id))] = l
	}

	var pkg *api.RulesPackage
	switch len(stubs) {
	case 0:
	case 1:
		s := stubs[0].Package
		pkg = &api.RulesPackage{
			ID:          s.ID,
			Title:       s.Title,
			PackageType: s.PackageType,
			Ruleset:     s.Ruleset,
			Priority:    s.Priority,
		}
	default:
		for _, c := range stubs {
			res.Files[c.Path] = FileResult{Content: c, Problem: ErrDuplicatePackage}
		}
	}

	pkgID := api.Base(root)
	if pkg != nil {
		pkgID = pkg.ID
	}

	graph.Walk(t, t.Root(), func(id graph.NodeID, _ int) bool {
		if t.IsGroup(id) {
			if col, ok := collectionOf(t, id, labels[id]); ok {
				col.Entries = entriesOf(t, id, pkgID, col, &res)
				if len(col.Entries) > 0 && pkg != nil {
					pkg.Collections = append(pkg.Collections, col)
				}
			} else {
				checkStray(t, id, root, labels[id], &res)
			}
			return true
		}
		c := t.Leaf(id)
		if c.Kind != api.KindEntry {
			if _, seen := res.Files[c.Path]; !seen {
				res.Files[c.Path] = FileResult{Content: c}
			}
		}
		return true
	})

	res.Package = pkg
	return res
}

// collectionOf reports whether group id is a well-typed collection folder.
func collectionOf(t *tree, id graph.NodeID, l lattice.Label) (api.Collection, bool) {
	if id == t.Root() || l.Kind != lattice.LabelCollection {
		return api.Collection{}, false
	}
	typ, ok := l.Single()
	if !ok {
		return api.Collection{}, false
	}
	return api.Collection{Path: t.Path(id), Type: typ}, true
}

func entriesOf(t *tree, id graph.NodeID, pkgID string, col api.Collection, res *Result) []api.EntryRef {
	var refs []api.EntryRef
	for _, child := range t.Children(id) {
		if t.IsGroup(child) {
			continue
		}
		c := t.Leaf(child)
		if c.Kind != api.KindEntry {
			continue
		}
		if c.Err != nil {
			res.Files[c.Path] = FileResult{Content: c, Problem: c.Err}
			continue
		}
		ref := api.EntryRef{
			ID:   c.Entry.ID,
			Name: c.Entry.Name,
			Type: c.Entry.Type,
			Path: t.Path(child),
		}
		if ref.ID == "" {
			ref.ID = defaultID(pkgID, col.Path, t.Name(child))
		}
		res.Files[c.Path] = FileResult{Content: c, ID: ref.ID, Collection: col.Type}
		refs = append(refs, ref)
	}
	return refs
}

// checkStray records problems for entries whose folder is not a usable
// collection.
func checkStray(t *tree, id graph.NodeID, root string, l lattice.Label, res *Result) {
	for _, child := range t.Children(id) {
		if t.IsGroup(child) {
			continue
		}
		c := t.Leaf(child)
		if c.Kind != api.KindEntry {
			continue
		}
		var problem error
		folder := api.Join(root, t.Path(id))
		switch {
		case c.Err != nil:
			problem = c.Err
		case l.Err != nil:
			problem = fmt.Errorf("collection %q: %w", folder, l.Err)
		case id == t.Root() || l.Kind == lattice.LabelPackage:
			problem = fmt.Errorf("%w: %q", ErrNotInCollection, folder)
		default:
			problem = fmt.Errorf("%w: %q could be any of %s", ErrAmbiguousContainer, folder, l.Types)
		}
		res.Files[c.Path] = FileResult{Content: c, Problem: problem}
	}
}

func defaultID(pkgID, collection, name string) string {
	return strings.Join([]string{pkgID, collection, slug(name)}, "/")
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ' || r == '-':
			return '_'
		default:
			return -1
		}
	}, s)
}
