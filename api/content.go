package api

import (
	"errors"
	"fmt"
)

// ContentKind tags which variant of Content a record holds.
type ContentKind int

const (
	// KindEntry is a parsed (or failed-to-parse) content file.
	KindEntry ContentKind = iota
	// KindIndex is an explicit collection type declaration (an _index file).
	KindIndex
	// KindPackage marks the folder holding it as a whole rules package.
	KindPackage
)

func (k ContentKind) String() string {
	switch k {
	case KindEntry:
		return "content"
	case KindIndex:
		return "index"
	case KindPackage:
		return "package"
	default:
		return fmt.Sprintf("ContentKind(%d)", int(k))
	}
}

// OracleRow is one row of an oracle table.
type OracleRow struct {
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Result string `json:"result"`
}

// ParsedEntry is the structured form of a single content file.
type ParsedEntry struct {
	// Type is the primary type tag (e.g. "move", "oracle_rollable").
	Type ContentType `json:"type"`
	// ID is the declared id, or empty when it should be derived from the path.
	ID string `json:"id,omitempty"`
	// Name is the display name.
	Name string `json:"name"`
	// Fields holds the raw frontmatter / document fields.
	Fields map[string]any `json:"fields,omitempty"`
	// Body is the markdown body with the frontmatter removed.
	Body string `json:"body,omitempty"`
	// Rows is populated for oracle tables.
	Rows []OracleRow `json:"rows,omitempty"`
}

// PackageStub describes a rules package declared by a _package file.
type PackageStub struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title,omitempty" yaml:"title"`
	PackageType string `json:"type" yaml:"type"` // "ruleset" or "expansion"
	Ruleset     string `json:"ruleset,omitempty" yaml:"ruleset"`
	// Priority decides which package wins when two define the same id.
	// Higher wins.
	Priority int `json:"priority,omitempty" yaml:"priority"`
}

// Content is a path-tagged unit of indexed data. Records are immutable;
// a re-parse replaces the record wholesale.
type Content struct {
	// Path is root-relative, slash-delimited, without a leading slash.
	Path string
	Kind ContentKind

	// Entry and Err are set for KindEntry. Exactly one of them is non-nil.
	Entry *ParsedEntry
	Err   error

	// IndexType is set for KindIndex.
	IndexType CollectionType

	// Package is set for KindPackage.
	Package *PackageStub

	// Revision is an opaque change-detection token for the source file.
	Revision string
}

// NewEntry returns a successfully parsed content record.
func NewEntry(path string, entry *ParsedEntry) Content {
	return Content{Path: path, Kind: KindEntry, Entry: entry}
}

// NewParseError returns a content record whose parse failed.
func NewParseError(path string, err error) Content {
	if err == nil {
		err = errors.New("unknown parse error")
	}
	return Content{Path: path, Kind: KindEntry, Err: err}
}

// NewIndex returns an explicit collection type declaration.
func NewIndex(path string, t CollectionType) Content {
	return Content{Path: path, Kind: KindIndex, IndexType: t}
}

// NewPackage returns a package declaration record.
func NewPackage(path string, stub *PackageStub) Content {
	return Content{Path: path, Kind: KindPackage, Package: stub}
}

// WithPath returns a copy of c keyed at a new path.
func (c Content) WithPath(path string) Content {
	c.Path = path
	return c
}

// WithRevision returns a copy of c carrying the given revision token.
func (c Content) WithRevision(rev string) Content {
	c.Revision = rev
	return c
}

// OK reports whether the record is usable (everything except parse errors).
func (c Content) OK() bool {
	return c.Kind != KindEntry || c.Err == nil
}
