// Package content tracks every indexed content record and partitions the
// index into package roots. Subscribers receive the full current snapshot of
// a root whenever anything under it changes.
package content

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sort"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/vmap"
)

var (
	ErrRootExists  = errors.New("root already tracked")
	ErrRootOverlap = errors.New("root overlaps an existing root")
	ErrNotFound    = errors.New("content not found")
)

// RootUpdate carries the complete content of one root. Removed is set when
// the root was deregistered; Contents is nil then.
type RootUpdate struct {
	Root     string
	Contents []api.Content
	Removed  bool
}

// Manager is the root-tracking content index.
type Manager interface {
	AddRoot(path string) error
	RemoveRoot(path string) bool
	Roots() []string
	RootForPath(path string) (string, bool)

	AddContent(c api.Content)
	DeleteContent(path string) bool
	RenameContent(oldPath, newPath string) error
	Content(path string) (api.Content, bool)
	ValuesUnderPath(path string) iter.Seq[api.Content]

	Index() vmap.Reader[string, api.Content]
	OnUpdate(fn func(RootUpdate)) func()
}

// Store is the base Manager. It is not safe for concurrent use; callers
// serialize writes.
type Store struct {
	log   *slog.Logger
	index *vmap.Map[string, api.Content]
	roots []string // sorted

	subs    map[int]func(RootUpdate)
	nextSub int
}

var _ Manager = (*Store)(nil)

// NewStore returns an empty store. A nil logger discards output.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		log:   logger,
		index: vmap.New[string, api.Content](),
		subs:  make(map[int]func(RootUpdate)),
	}
}

// Index exposes the versioned content index for read-only consumers.
func (s *Store) Index() vmap.Reader[string, api.Content] { return s.index }

// Emitter exposes the index's change and rename events.
func (s *Store) Emitter() *vmap.Map[string, api.Content] { return s.index }

// OnUpdate subscribes fn to root updates. The returned function
// unsubscribes.
func (s *Store) OnUpdate(fn func(RootUpdate)) func() {
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() { delete(s.subs, id) }
}

// AddRoot starts tracking path as a package root and publishes its current
// snapshot. Roots may not nest.
func (s *Store) AddRoot(path string) error {
	if slices.Contains(s.roots, path) {
		return fmt.Errorf("%w: %q", ErrRootExists, path)
	}
	for _, r := range s.roots {
		if api.Overlaps(path, r) {
			return fmt.Errorf("%w: %q and %q", ErrRootOverlap, path, r)
		}
	}

	i, _ := slices.BinarySearch(s.roots, path)
	s.roots = slices.Insert(s.roots, i, path)
	s.log.Debug("root added", "root", path)
	s.publish(path)
	return nil
}

// RemoveRoot stops tracking path. Content under it stays indexed.
func (s *Store) RemoveRoot(path string) bool {
	i, ok := slices.BinarySearch(s.roots, path)
	if !ok {
		return false
	}
	s.roots = slices.Delete(s.roots, i, i+1)
	s.log.Debug("root removed", "root", path)
	s.notify(RootUpdate{Root: path, Removed: true})
	return true
}

// Roots returns the tracked roots in sorted order.
func (s *Store) Roots() []string { return slices.Clone(s.roots) }

// RootForPath returns the root containing path.
func (s *Store) RootForPath(path string) (string, bool) {
	for _, r := range s.roots {
		if api.IsDescendant(path, r) {
			return r, true
		}
	}
	return "", false
}

// AddContent inserts or replaces the record at c.Path.
func (s *Store) AddContent(c api.Content) {
	s.index.Set(c.Path, c)
	if root, ok := s.RootForPath(c.Path); ok {
		s.publish(root)
	}
}

// DeleteContent removes the record at path.
func (s *Store) DeleteContent(path string) bool {
	if !s.index.Delete(path) {
		return false
	}
	if root, ok := s.RootForPath(path); ok {
		s.publish(root)
	}
	return true
}

// RenameContent moves a record to a new path. Both the old and the new root
// are refreshed when they differ.
func (s *Store) RenameContent(oldPath, newPath string) error {
	c, ok := s.index.Get(oldPath)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, oldPath)
	}
	if oldPath == newPath {
		return nil
	}

	_ = s.index.AsSingleRevision(func(m *vmap.Map[string, api.Content]) error {
		m.Rename(oldPath, newPath)
		m.Set(newPath, c.WithPath(newPath))
		return nil
	})

	oldRoot, hadOld := s.RootForPath(oldPath)
	newRoot, hasNew := s.RootForPath(newPath)
	if hadOld {
		s.publish(oldRoot)
	}
	if hasNew && (!hadOld || newRoot != oldRoot) {
		s.publish(newRoot)
	}
	return nil
}

// Content returns the record at path.
func (s *Store) Content(path string) (api.Content, bool) {
	return s.index.Get(path)
}

// ValuesUnderPath yields every record at path or beneath it, in index
// order.
func (s *Store) ValuesUnderPath(path string) iter.Seq[api.Content] {
	return func(yield func(api.Content) bool) {
		for p, c := range s.index.All() {
			if api.IsDescendant(p, path) && !yield(c) {
				return
			}
		}
	}
}

// Snapshot returns the records under root sorted by path.
func (s *Store) Snapshot(root string) []api.Content {
	out := slices.Collect(s.ValuesUnderPath(root))
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (s *Store) publish(root string) {
	snapshot := s.Snapshot(root)
	if snapshot == nil {
		snapshot = []api.Content{}
	}
	s.notify(RootUpdate{Root: root, Contents: snapshot})
}

func (s *Store) notify(u RootUpdate) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := s.subs[id]; ok {
			fn(u)
		}
	}
}
