package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordedMetaroot(t *testing.T) (*MetarootManager, *recorder) {
	t.Helper()
	m := NewMetarootManager(NewStore(nil), nil)
	rec := &recorder{}
	m.OnUpdate(rec.record)
	return m, rec
}

func TestMetarootManager_DiscoversRootOnce(t *testing.T) {
	m, rec := newRecordedMetaroot(t)
	m.SetMetaRoot("packs")

	m.AddContent(entry("packs/starforged/moves/strike"))
	assert.Equal(t, []string{"packs/starforged"}, m.Roots())
	require.Len(t, rec.updates, 1)
	assert.Equal(t, []string{"packs/starforged/moves/strike"}, rec.paths(0))

	m.AddContent(entry("packs/starforged/moves/clash"))
	m.AddContent(entry("packs/starforged/oracles/x"))
	assert.Equal(t, []string{"packs/starforged"}, m.Roots())
	require.Len(t, rec.updates, 3, "one refresh per content change, no extra root events")
	assert.Equal(t, "packs/starforged", rec.updates[2].Root)
}

func TestMetarootManager_FilesDirectlyUnderMetaRootAreNotRoots(t *testing.T) {
	m, rec := newRecordedMetaroot(t)
	m.SetMetaRoot("packs")
	m.AddContent(entry("packs/readme"))
	m.AddContent(entry("elsewhere/x"))

	assert.Empty(t, m.Roots())
	assert.Empty(t, rec.updates)
}

func TestMetarootManager_ManualRootsIgnoredUnderMetaRoot(t *testing.T) {
	m, _ := newRecordedMetaroot(t)
	m.SetMetaRoot("packs")

	require.NoError(t, m.AddRoot("packs/manual"))
	assert.Empty(t, m.Roots())

	require.NoError(t, m.AddRoot("homebrew"))
	assert.Equal(t, []string{"homebrew"}, m.Roots())

	m.AddContent(entry("packs/auto/x"))
	assert.False(t, m.RemoveRoot("packs/auto"))
	assert.Equal(t, []string{"homebrew", "packs/auto"}, m.Roots())

	assert.True(t, m.RemoveRoot("homebrew"))
	assert.Equal(t, []string{"packs/auto"}, m.Roots())
}

func TestMetarootManager_ChangingMetaRoot(t *testing.T) {
	m, rec := newRecordedMetaroot(t)
	m.AddContent(entry("p/a/x"))
	m.AddContent(entry("p/b/y"))
	m.AddContent(entry("q/c/z"))
	m.AddContent(entry("q/d/w"))
	m.AddContent(entry("q/d/v"))

	m.SetMetaRoot("p")
	assert.Equal(t, []string{"p/a", "p/b"}, m.Roots())
	rec.reset()

	m.SetMetaRoot("q")
	assert.Equal(t, []string{"q/c", "q/d"}, m.Roots())

	require.Len(t, rec.updates, 4)
	assert.Equal(t, RootUpdate{Root: "p/a", Removed: true}, rec.updates[0])
	assert.Equal(t, RootUpdate{Root: "p/b", Removed: true}, rec.updates[1])
	assert.Equal(t, "q/c", rec.updates[2].Root)
	assert.Equal(t, []string{"q/d/v", "q/d/w"}, rec.paths(3))

	_, ok := m.Content("p/a/x")
	assert.True(t, ok, "revoking roots keeps their content")

	rec.reset()
	m.SetMetaRoot("q")
	assert.Empty(t, rec.updates, "same meta-root is a no-op")
}

func TestMetarootManager_KeepsManualRootsOutsideOldMetaRoot(t *testing.T) {
	m, _ := newRecordedMetaroot(t)
	require.NoError(t, m.AddRoot("homebrew"))
	m.SetMetaRoot("p")
	m.AddContent(entry("p/a/x"))

	m.SetMetaRoot("q")
	assert.Equal(t, []string{"homebrew"}, m.Roots())
}

func TestMetarootManager_ClearMetaRoot(t *testing.T) {
	m, _ := newRecordedMetaroot(t)
	m.SetMetaRoot("p")
	m.AddContent(entry("p/a/x"))
	require.Equal(t, []string{"p/a"}, m.Roots())

	m.ClearMetaRoot()
	_, active := m.MetaRoot()
	assert.False(t, active)
	assert.Empty(t, m.Roots())

	require.NoError(t, m.AddRoot("p/a"), "manual roots allowed again")
	assert.Equal(t, []string{"p/a"}, m.Roots())
}

func TestMetarootManager_RenameIntoMetaRoot(t *testing.T) {
	m, _ := newRecordedMetaroot(t)
	m.SetMetaRoot("packs")
	m.AddContent(entry("inbox/x"))

	require.NoError(t, m.RenameContent("inbox/x", "packs/new/x"))
	assert.Equal(t, []string{"packs/new"}, m.Roots())
}

func TestMetarootManager_WholeWorkspace(t *testing.T) {
	m, _ := newRecordedMetaroot(t)
	m.SetMetaRoot("")
	m.AddContent(entry("a/x"))
	m.AddContent(entry("b/y/z"))
	m.AddContent(entry("toplevel"))
	assert.Equal(t, []string{"a", "b"}, m.Roots())
}
