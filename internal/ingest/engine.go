package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/assemble"
	"github.com/agentic-research/ironledger/internal/content"
	"github.com/agentic-research/ironledger/internal/debounce"
	"github.com/agentic-research/ironledger/internal/store"
	"github.com/agentic-research/ironledger/internal/vmap"
)

// Options configures an Engine. Zero values are usable.
type Options struct {
	Logger   *slog.Logger
	Metrics  *Metrics
	Store    *store.Index
	Debounce time.Duration
	Workers  int
	// Ignored reports whether a workspace path should be skipped.
	Ignored func(path string) bool
}

// Engine keeps the content index in sync with a source tree and assembles
// a package for every root it tracks.
//
// Parsing happens outside the engine lock; every mutation of the index, the
// roots and the published maps happens under it. Published maps are safe to
// read after Flush or from their own change callbacks.
type Engine struct {
	fs      billy.Filesystem
	parser  *Parser
	log     *slog.Logger
	metrics *Metrics
	store   *store.Index
	workers int
	ignored func(string) bool
	pending *debounce.Keyed[string]

	mu       sync.Mutex
	manager  *content.MetarootManager
	sources  map[string][]string // source file -> record paths
	tokens   map[string]string   // source file -> revision token
	packages *vmap.Map[string, assemble.Result]
	files    *vmap.Map[string, assemble.FileResult]
	byRoot   map[string][]string // root -> record paths published in files

	bulk     bool
	deferred map[string]content.RootUpdate
}

// NewEngine returns an engine reading from fsys. Paths handed to the engine
// are slash paths relative to the root of fsys.
func NewEngine(fsys billy.Filesystem, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.Ignored == nil {
		opts.Ignored = func(string) bool { return false }
	}

	e := &Engine{
		fs:       fsys,
		parser:   NewParser(),
		log:      opts.Logger,
		metrics:  opts.Metrics,
		store:    opts.Store,
		workers:  opts.Workers,
		ignored:  opts.Ignored,
		pending:  debounce.New[string](opts.Debounce),
		manager:  content.NewMetarootManager(content.NewStore(opts.Logger), opts.Logger),
		sources:  make(map[string][]string),
		tokens:   make(map[string]string),
		packages: vmap.New[string, assemble.Result](),
		files:    vmap.New[string, assemble.FileResult](),
		byRoot:   make(map[string][]string),
	}
	e.manager.OnUpdate(e.onRootUpdate)
	return e
}

// Packages maps each root to its latest assembly.
func (e *Engine) Packages() *vmap.Map[string, assemble.Result] { return e.packages }

// Files maps each record path under a root to its latest file result.
func (e *Engine) Files() *vmap.Map[string, assemble.FileResult] { return e.files }

// Content returns the indexed record at path.
func (e *Engine) Content(path string) (api.Content, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Content(path)
}

// Roots returns the tracked roots.
func (e *Engine) Roots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.Roots()
}

// SetMetaRoot enables root discovery beneath path.
func (e *Engine) SetMetaRoot(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.manager.SetMetaRoot(api.CleanPath(path))
}

// AddRoot registers a package root by hand.
func (e *Engine) AddRoot(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manager.AddRoot(api.CleanPath(path))
}

// IndexAll scans the whole tree. Files are parsed concurrently and applied
// in path order; each root is assembled once at the end.
func (e *Engine) IndexAll(ctx context.Context) error {
	var paths []string
	err := util.Walk(e.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if rel != "" && e.ignored(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() && e.parser.Accepts(rel) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk source: %w", err)
	}
	sort.Strings(paths)

	type parsed struct {
		token string
		recs  []api.Content
	}
	results := make([]parsed, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := util.ReadFile(e.fs, "/"+p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			results[i] = parsed{token: ComputeHash(data), recs: e.parser.Parse(p, data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginBulk()
	for i, p := range paths {
		e.apply(p, results[i].token, results[i].recs)
	}
	e.endBulk()

	e.log.Info("indexed source tree", "files", len(paths), "roots", len(e.manager.Roots()))
	return nil
}

// FileChanged schedules a re-parse of path.
func (e *Engine) FileChanged(path string) {
	path = api.CleanPath(path)
	e.pending.Schedule(path, func() { e.reindex(path) })
}

// FileRemoved schedules removal of every record that came from path, or
// from files beneath it when path was a folder.
func (e *Engine) FileRemoved(path string) {
	path = api.CleanPath(path)
	e.pending.Schedule(path, func() { e.remove(path) })
}

// FileRenamed schedules moving the records of oldPath to newPath. The new
// file is re-parsed afterwards.
func (e *Engine) FileRenamed(oldPath, newPath string) {
	oldPath, newPath = api.CleanPath(oldPath), api.CleanPath(newPath)
	e.pending.Schedule(oldPath, func() {
		if e.ignored(newPath) || !e.parser.Accepts(newPath) {
			e.remove(oldPath)
			return
		}
		e.rename(oldPath, newPath)
		e.FileChanged(newPath)
	})
}

// Flush blocks until every scheduled change has been applied.
func (e *Engine) Flush() { e.pending.Wait() }

// Close drops changes that have not started yet.
func (e *Engine) Close() { e.pending.Stop() }

func (e *Engine) reindex(path string) {
	if e.ignored(path) || !e.parser.Accepts(path) {
		return
	}
	data, err := util.ReadFile(e.fs, "/"+path)
	if errors.Is(err, fs.ErrNotExist) {
		e.remove(path)
		return
	}
	if err != nil {
		e.log.Warn("read failed", "path", path, "err", err)
		return
	}

	token := ComputeHash(data)
	e.mu.Lock()
	unchanged := e.tokens[path] == token
	e.mu.Unlock()
	if unchanged {
		e.metrics.FilesParsed.WithLabelValues("unchanged").Inc()
		return
	}

	recs := e.parser.Parse(path, data)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.apply(path, token, recs)
}

// apply replaces the records of one source file. Caller holds mu.
func (e *Engine) apply(src, token string, recs []api.Content) {
	if e.tokens[src] == token {
		e.metrics.FilesParsed.WithLabelValues("unchanged").Inc()
		return
	}

	result := "ok"
	paths := make([]string, 0, len(recs))
	for _, c := range recs {
		if !c.OK() {
			result = "error"
			e.metrics.RecordErrors.Inc()
			e.log.Debug("parse error", "path", c.Path, "err", c.Err)
		}
		paths = append(paths, c.Path)
	}
	e.metrics.FilesParsed.WithLabelValues(result).Inc()

	for _, old := range e.sources[src] {
		if !slices.Contains(paths, old) {
			e.manager.DeleteContent(old)
		}
	}
	for _, c := range recs {
		e.manager.AddContent(c.WithRevision(token))
	}
	e.sources[src] = paths
	e.tokens[src] = token
}

func (e *Engine) remove(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for src, recs := range e.sources {
		if !api.IsDescendant(src, path) {
			continue
		}
		for _, p := range recs {
			e.manager.DeleteContent(p)
		}
		delete(e.sources, src)
		delete(e.tokens, src)
		e.log.Debug("source removed", "path", src)
	}
}

func (e *Engine) rename(oldPath, newPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	recs, ok := e.sources[oldPath]
	if !ok {
		return
	}
	oldBase, newBase := RecordPath(oldPath), RecordPath(newPath)
	moved := make([]string, 0, len(recs))
	for _, p := range recs {
		np := newBase + strings.TrimPrefix(p, oldBase)
		if err := e.manager.RenameContent(p, np); err != nil {
			e.log.Warn("rename failed", "from", p, "to", np, "err", err)
			continue
		}
		moved = append(moved, np)
	}
	delete(e.sources, oldPath)
	delete(e.tokens, oldPath)
	e.sources[newPath] = moved
}

func (e *Engine) beginBulk() {
	e.bulk = true
	e.deferred = make(map[string]content.RootUpdate)
}

func (e *Engine) endBulk() {
	e.bulk = false
	roots := make([]string, 0, len(e.deferred))
	for r := range e.deferred {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	for _, r := range roots {
		e.publish(e.deferred[r])
	}
	e.deferred = nil
}

// onRootUpdate runs inside manager calls, so mu is already held.
func (e *Engine) onRootUpdate(u content.RootUpdate) {
	if e.bulk {
		e.deferred[u.Root] = u
		return
	}
	e.publish(u)
}

func (e *Engine) publish(u content.RootUpdate) {
	ctx := context.Background()
	if u.Removed {
		e.metrics.RootRefreshes.WithLabelValues("removed").Inc()
		e.packages.Delete(u.Root)
		_ = e.files.AsSingleRevision(func(m *vmap.Map[string, assemble.FileResult]) error {
			for _, p := range e.byRoot[u.Root] {
				m.Delete(p)
			}
			return nil
		})
		delete(e.byRoot, u.Root)
		if e.store != nil {
			if err := e.store.RemoveRoot(ctx, u.Root); err != nil {
				e.log.Warn("store remove root failed", "root", u.Root, "err", err)
			}
		}
		return
	}

	e.metrics.RootRefreshes.WithLabelValues("refresh").Inc()
	start := time.Now()
	res := assemble.Assemble(u.Root, u.Contents)
	e.metrics.AssembleDuration.Observe(time.Since(start).Seconds())
	for _, l := range res.Labels {
		if l.Err != nil {
			e.metrics.CollectionConflicts.Inc()
		}
	}

	paths := make([]string, 0, len(res.Files))
	for p := range res.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	_ = e.files.AsSingleRevision(func(m *vmap.Map[string, assemble.FileResult]) error {
		for _, p := range e.byRoot[u.Root] {
			if _, ok := res.Files[p]; !ok {
				m.Delete(p)
			}
		}
		for _, p := range paths {
			m.Set(p, res.Files[p])
		}
		return nil
	})
	e.byRoot[u.Root] = paths
	e.packages.Set(u.Root, res)

	problems := len(res.Problems())
	e.log.Debug("root assembled", "root", u.Root, "files", len(paths), "problems", problems)

	if e.store != nil {
		if err := e.store.ReplaceRoot(ctx, u.Root, storeEntries(res, paths)); err != nil {
			e.log.Warn("store update failed", "root", u.Root, "err", err)
		}
	}
}

type storedRecord struct {
	*api.ParsedEntry
	ID         string             `json:"id"`
	Collection api.CollectionType `json:"collection"`
	Package    string             `json:"package,omitempty"`
}

func storeEntries(res assemble.Result, paths []string) []store.Entry {
	priority, pkgID := 0, ""
	if res.Package != nil {
		priority, pkgID = res.Package.Priority, res.Package.ID
	}
	var out []store.Entry
	for _, p := range paths {
		f := res.Files[p]
		if !f.OK() || f.Content.Kind != api.KindEntry || f.ID == "" {
			continue
		}
		raw, err := json.Marshal(storedRecord{
			ParsedEntry: f.Content.Entry,
			ID:          f.ID,
			Collection:  f.Collection,
			Package:     pkgID,
		})
		if err != nil {
			raw = nil
		}
		out = append(out, store.Entry{
			Path:     p,
			ID:       f.ID,
			Priority: priority,
			Revision: f.Content.Revision,
			Record:   raw,
		})
	}
	return out
}
