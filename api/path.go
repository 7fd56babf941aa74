package api

import (
	"path"
	"strings"
)

// CleanPath normalizes a slash path: no leading or trailing slash, no empty
// or "." segments. The workspace root is "".
func CleanPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// IsDescendant reports whether p equals ancestor or lies beneath it.
// The match is on segment boundaries: "foo" does not contain "foobar".
// The empty ancestor contains every path.
func IsDescendant(p, ancestor string) bool {
	if ancestor == "" {
		return true
	}
	if p == ancestor {
		return true
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// Overlaps reports whether either path is a descendant of the other.
func Overlaps(a, b string) bool {
	return IsDescendant(a, b) || IsDescendant(b, a)
}

// TopLevelUnder returns the first path segment of p beneath ancestor, joined
// back onto ancestor ("meta/pkg/x/y" under "meta" is "meta/pkg"). It returns
// false when p is not strictly beneath ancestor.
func TopLevelUnder(p, ancestor string) (string, bool) {
	if p == ancestor || !IsDescendant(p, ancestor) {
		return "", false
	}
	rest := p
	if ancestor != "" {
		rest = p[len(ancestor)+1:]
	}
	name, _, _ := strings.Cut(rest, "/")
	return Join(ancestor, name), true
}

// Join joins two slash paths, treating "" as the root.
func Join(parent, name string) string {
	if parent == "" {
		return name
	}
	if name == "" {
		return parent
	}
	return parent + "/" + name
}

// Dir returns the parent path of p ("" for a top-level path).
func Dir(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i]
}

// Base returns the last segment of p.
func Base(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

// Rel returns p relative to ancestor. p must be a descendant of ancestor.
func Rel(p, ancestor string) string {
	switch {
	case p == ancestor:
		return ""
	case ancestor == "":
		return p
	default:
		return strings.TrimPrefix(p, ancestor+"/")
	}
}
