package content

import (
	"errors"
	"iter"
	"log/slog"
	"slices"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/vmap"
)

// MetarootManager decorates a Manager with automatic root discovery. Every
// folder directly beneath the meta-root that holds content becomes a root.
// Inside the meta-root, roots are owned by discovery: manual AddRoot and
// RemoveRoot calls there are ignored.
type MetarootManager struct {
	base     Manager
	log      *slog.Logger
	metaRoot string
	active   bool
}

var _ Manager = (*MetarootManager)(nil)

// NewMetarootManager wraps base. A nil logger discards output.
func NewMetarootManager(base Manager, logger *slog.Logger) *MetarootManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MetarootManager{base: base, log: logger}
}

// MetaRoot returns the active meta-root.
func (m *MetarootManager) MetaRoot() (string, bool) { return m.metaRoot, m.active }

// SetMetaRoot moves root discovery to path. Roots discovered under the
// previous meta-root are revoked, then roots are re-derived from content
// already indexed under path.
func (m *MetarootManager) SetMetaRoot(path string) {
	if m.active && m.metaRoot == path {
		return
	}
	m.revoke()
	m.metaRoot, m.active = path, true
	m.log.Info("meta-root set", "path", path)

	var discovered []string
	for c := range m.base.ValuesUnderPath(path) {
		if root, ok := m.discover(c.Path); ok && !slices.Contains(discovered, root) {
			discovered = append(discovered, root)
		}
	}
	slices.Sort(discovered)
	for _, root := range discovered {
		m.ensureRoot(root)
	}
}

// ClearMetaRoot disables discovery and revokes the roots it owned.
func (m *MetarootManager) ClearMetaRoot() {
	if !m.active {
		return
	}
	m.revoke()
	m.metaRoot, m.active = "", false
	m.log.Info("meta-root cleared")
}

func (m *MetarootManager) revoke() {
	if !m.active {
		return
	}
	for _, r := range m.base.Roots() {
		if api.IsDescendant(r, m.metaRoot) {
			m.base.RemoveRoot(r)
		}
	}
}

func (m *MetarootManager) governs(path string) bool {
	return m.active && api.IsDescendant(path, m.metaRoot)
}

// discover returns the root implied by a content path: the top-level folder
// under the meta-root. Files placed directly in the meta-root imply none.
func (m *MetarootManager) discover(path string) (string, bool) {
	if !m.active {
		return "", false
	}
	top, ok := api.TopLevelUnder(path, m.metaRoot)
	if !ok || top == path {
		return "", false
	}
	return top, true
}

func (m *MetarootManager) ensureRoot(root string) {
	err := m.base.AddRoot(root)
	switch {
	case err == nil:
		m.log.Debug("root discovered", "root", root)
	case errors.Is(err, ErrRootExists):
	default:
		m.log.Warn("could not register discovered root", "root", root, "err", err)
	}
}

// AddRoot registers path unless the meta-root governs it.
func (m *MetarootManager) AddRoot(path string) error {
	if m.governs(path) {
		m.log.Debug("ignoring manual root under meta-root", "root", path)
		return nil
	}
	return m.base.AddRoot(path)
}

// RemoveRoot deregisters path unless the meta-root governs it.
func (m *MetarootManager) RemoveRoot(path string) bool {
	if m.governs(path) {
		return false
	}
	return m.base.RemoveRoot(path)
}

func (m *MetarootManager) Roots() []string { return m.base.Roots() }

func (m *MetarootManager) RootForPath(path string) (string, bool) {
	return m.base.RootForPath(path)
}

// AddContent indexes c and registers its root when discovery applies.
func (m *MetarootManager) AddContent(c api.Content) {
	m.base.AddContent(c)
	if root, ok := m.discover(c.Path); ok {
		m.ensureRoot(root)
	}
}

func (m *MetarootManager) DeleteContent(path string) bool {
	return m.base.DeleteContent(path)
}

// RenameContent moves a record and registers the destination's root when
// discovery applies.
func (m *MetarootManager) RenameContent(oldPath, newPath string) error {
	if err := m.base.RenameContent(oldPath, newPath); err != nil {
		return err
	}
	if root, ok := m.discover(newPath); ok {
		m.ensureRoot(root)
	}
	return nil
}

func (m *MetarootManager) Content(path string) (api.Content, bool) {
	return m.base.Content(path)
}

func (m *MetarootManager) ValuesUnderPath(path string) iter.Seq[api.Content] {
	return m.base.ValuesUnderPath(path)
}

func (m *MetarootManager) Index() vmap.Reader[string, api.Content] { return m.base.Index() }

func (m *MetarootManager) OnUpdate(fn func(RootUpdate)) func() { return m.base.OnUpdate(fn) }
