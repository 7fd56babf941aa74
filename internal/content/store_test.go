package content

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/ironledger/api"
)

type recorder struct {
	updates []RootUpdate
}

func (r *recorder) record(u RootUpdate) { r.updates = append(r.updates, u) }

func (r *recorder) reset() { r.updates = nil }

func (r *recorder) paths(i int) []string {
	var out []string
	for _, c := range r.updates[i].Contents {
		out = append(out, c.Path)
	}
	return out
}

func entry(path string) api.Content {
	return api.NewEntry(path, &api.ParsedEntry{Type: api.Move, Name: api.Base(path)})
}

func newRecordedStore(t *testing.T) (*Store, *recorder) {
	t.Helper()
	s := NewStore(nil)
	rec := &recorder{}
	s.OnUpdate(rec.record)
	return s, rec
}

func TestStore_AddRootRejectsDuplicatesAndOverlap(t *testing.T) {
	s, _ := newRecordedStore(t)
	require.NoError(t, s.AddRoot("packs/a"))

	assert.ErrorIs(t, s.AddRoot("packs/a"), ErrRootExists)
	assert.ErrorIs(t, s.AddRoot("packs/a/sub"), ErrRootOverlap)
	assert.ErrorIs(t, s.AddRoot("packs"), ErrRootOverlap)
	assert.ErrorIs(t, s.AddRoot(""), ErrRootOverlap)
	require.NoError(t, s.AddRoot("packs/ab"), "sibling with shared prefix is not nested")

	assert.Equal(t, []string{"packs/a", "packs/ab"}, s.Roots())
}

func TestStore_AddRootPublishesSnapshot(t *testing.T) {
	s, rec := newRecordedStore(t)
	s.AddContent(entry("pkg/moves/strike"))
	assert.Empty(t, rec.updates, "content outside any root is silent")

	require.NoError(t, s.AddRoot("pkg"))
	require.Len(t, rec.updates, 1)
	assert.Equal(t, "pkg", rec.updates[0].Root)
	assert.Equal(t, []string{"pkg/moves/strike"}, rec.paths(0))
}

func TestStore_RemoveRoot(t *testing.T) {
	s, rec := newRecordedStore(t)
	assert.False(t, s.RemoveRoot("nope"))
	assert.Empty(t, rec.updates)

	require.NoError(t, s.AddRoot("pkg"))
	s.AddContent(entry("pkg/x"))
	rec.reset()

	assert.True(t, s.RemoveRoot("pkg"))
	require.Len(t, rec.updates, 1)
	assert.Equal(t, RootUpdate{Root: "pkg", Removed: true}, rec.updates[0])

	_, ok := s.Content("pkg/x")
	assert.True(t, ok, "content survives root removal")
	assert.Empty(t, s.Roots())
}

func TestStore_AddContentPublishesFullSnapshot(t *testing.T) {
	s, rec := newRecordedStore(t)
	require.NoError(t, s.AddRoot("pkg"))
	rec.reset()

	s.AddContent(entry("pkg/b"))
	s.AddContent(entry("pkg/a"))
	s.AddContent(entry("pkgother/c"))

	require.Len(t, rec.updates, 2)
	assert.Equal(t, []string{"pkg/b"}, rec.paths(0))
	assert.Equal(t, []string{"pkg/a", "pkg/b"}, rec.paths(1), "snapshot is complete and sorted")

	s.AddContent(entry("pkg/a"))
	require.Len(t, rec.updates, 3, "upsert still refreshes")
	assert.Equal(t, []string{"pkg/a", "pkg/b"}, rec.paths(2))
}

func TestStore_DeleteContent(t *testing.T) {
	s, rec := newRecordedStore(t)
	require.NoError(t, s.AddRoot("pkg"))
	s.AddContent(entry("pkg/a"))
	s.AddContent(entry("pkg/b"))
	rec.reset()

	assert.False(t, s.DeleteContent("pkg/missing"))
	assert.Empty(t, rec.updates)

	assert.True(t, s.DeleteContent("pkg/a"))
	require.Len(t, rec.updates, 1)
	assert.Equal(t, []string{"pkg/b"}, rec.paths(0))

	assert.True(t, s.DeleteContent("pkg/b"))
	require.Len(t, rec.updates, 2)
	assert.NotNil(t, rec.updates[1].Contents)
	assert.Empty(t, rec.updates[1].Contents)
	assert.False(t, rec.updates[1].Removed, "empty roots stay registered")
}

func TestStore_RenameAcrossRoots(t *testing.T) {
	s, rec := newRecordedStore(t)
	require.NoError(t, s.AddRoot("one"))
	require.NoError(t, s.AddRoot("two"))
	s.AddContent(entry("one/x"))
	rec.reset()

	var renamed [][2]string
	s.Emitter().OnRenamed(func(o, n string) { renamed = append(renamed, [2]string{o, n}) })
	rev := s.Index().Revision()

	require.NoError(t, s.RenameContent("one/x", "two/x"))
	assert.Equal(t, rev+1, s.Index().Revision())
	assert.Equal(t, [][2]string{{"one/x", "two/x"}}, renamed)

	require.Len(t, rec.updates, 2)
	assert.Equal(t, "one", rec.updates[0].Root)
	assert.Empty(t, rec.updates[0].Contents)
	assert.Equal(t, "two", rec.updates[1].Root)
	assert.Equal(t, []string{"two/x"}, rec.paths(1))

	c, ok := s.Content("two/x")
	require.True(t, ok)
	assert.Equal(t, "two/x", c.Path)
}

func TestStore_RenameWithinRootRefreshesOnce(t *testing.T) {
	s, rec := newRecordedStore(t)
	require.NoError(t, s.AddRoot("one"))
	s.AddContent(entry("one/x"))
	rec.reset()

	require.NoError(t, s.RenameContent("one/x", "one/y"))
	require.Len(t, rec.updates, 1)
	assert.Equal(t, []string{"one/y"}, rec.paths(0))
}

func TestStore_RenameMissing(t *testing.T) {
	s, _ := newRecordedStore(t)
	err := s.RenameContent("ghost", "elsewhere")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ValuesUnderPathRespectsSegments(t *testing.T) {
	s, _ := newRecordedStore(t)
	for _, p := range []string{"foo", "foo/a", "foobar", "foobar/b", "x/foo"} {
		s.AddContent(entry(p))
	}

	var got []string
	for c := range s.ValuesUnderPath("foo") {
		got = append(got, c.Path)
	}
	assert.Equal(t, []string{"foo", "foo/a"}, got)

	all := slices.Collect(s.ValuesUnderPath(""))
	assert.Len(t, all, 5)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	unsub := s.OnUpdate(func(RootUpdate) { calls++ })
	require.NoError(t, s.AddRoot("a"))
	unsub()
	s.AddContent(entry("a/x"))
	assert.Equal(t, 1, calls)
}

func TestStore_RootForPath(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.AddRoot("packs/a"))

	root, ok := s.RootForPath("packs/a/moves/x")
	require.True(t, ok)
	assert.Equal(t, "packs/a", root)

	_, ok = s.RootForPath("packs/ab/x")
	assert.False(t, ok)
}
