package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/agentic-research/ironledger/api"
)

const (
	indexName   = "_index"
	packageName = "_package"
)

var (
	ErrMissingType    = errors.New("missing type")
	ErrUnknownType    = errors.New("unknown type")
	ErrMissingID      = errors.New("package id is required")
	ErrBadOracleTable = errors.New("invalid oracle table")
)

var (
	typeSel     = jp.MustParseString("$.type")
	idSel       = jp.MustParseString("$.id")
	nameSel     = jp.MustParseString("$.name")
	contentsSel = jp.MustParseString("$.contents")
)

// Parser turns source files into content records. A file never fails as a
// whole: problems become parse-error records at the file's path.
type Parser struct {
	md goldmark.Markdown
}

// NewParser returns a parser for markdown and YAML content.
func NewParser() *Parser {
	return &Parser{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Accepts reports whether path names a content file.
func (p *Parser) Accepts(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".yaml", ".yml":
		return true
	}
	return false
}

// RecordPath is the content path for a source file: the file path without
// its extension.
func RecordPath(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// Parse returns the records found in data. name is the slash path of the
// source file relative to the workspace.
func (p *Parser) Parse(name string, data []byte) []api.Content {
	recPath := RecordPath(name)
	switch strings.ToLower(path.Ext(name)) {
	case ".md":
		return []api.Content{p.parseMarkdown(name, recPath, data)}
	case ".yaml", ".yml":
		return p.parseYAML(name, recPath, data)
	}
	return nil
}

func (p *Parser) parseMarkdown(name, recPath string, data []byte) api.Content {
	fm, body, fmLine := splitFrontmatter(data)
	fields := map[string]any{}
	if fm != nil {
		if err := ValidateYAML(fm, name, fmLine); err != nil {
			return api.NewParseError(recPath, err)
		}
		if err := yaml.Unmarshal(fm, &fields); err != nil {
			return api.NewParseError(recPath, fmt.Errorf("%s: frontmatter: %w", name, err))
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}

	switch path.Base(recPath) {
	case indexName:
		return indexRecord(recPath, fields)
	case packageName:
		return packageRecord(recPath, fm)
	}

	doc := p.md.Parser().Parse(text.NewReader(body))
	if _, ok := fields["name"]; !ok {
		if title := firstHeading(doc, body); title != "" {
			fields["name"] = title
		}
	}

	c := entryRecord(recPath, fields, path.Base(recPath))
	if !c.OK() {
		return c
	}
	c.Entry.Body = string(body)
	if c.Entry.Type == api.OracleRollable {
		rows, err := oracleRows(doc, body)
		if err != nil {
			return api.NewParseError(recPath, fmt.Errorf("%s: %w", name, err))
		}
		c.Entry.Rows = rows
	}
	return c
}

func (p *Parser) parseYAML(name, recPath string, data []byte) []api.Content {
	if err := ValidateYAML(data, name, 0); err != nil {
		return []api.Content{api.NewParseError(recPath, err)}
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []api.Content{api.NewParseError(recPath, fmt.Errorf("%s: %w", name, err))}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if path.Base(recPath) == packageName {
		return []api.Content{packageRecord(recPath, data)}
	}

	typ, _ := typeSel.First(doc).(string)
	ct, isCollection := api.ParseCollectionType(typ)
	contents, hasContents := contentsSel.First(doc).(map[string]any)
	if !isCollection || !hasContents {
		return []api.Content{entryRecord(recPath, doc, path.Base(recPath))}
	}

	out := []api.Content{api.NewIndex(api.Join(recPath, indexName), ct)}
	keys := make([]string, 0, len(contents))
	for k := range contents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		childPath := api.Join(recPath, k)
		fields, ok := contents[k].(map[string]any)
		if !ok {
			out = append(out, api.NewParseError(childPath, fmt.Errorf("%s: contents.%s: expected a mapping", name, k)))
			continue
		}
		out = append(out, entryRecord(childPath, fields, k))
	}
	return out
}

func indexRecord(recPath string, fields map[string]any) api.Content {
	typ, _ := typeSel.First(fields).(string)
	if typ == "" {
		return api.NewParseError(recPath, ErrMissingType)
	}
	ct, ok := api.ParseCollectionType(typ)
	if !ok {
		return api.NewParseError(recPath, fmt.Errorf("%w: collection type %q", ErrUnknownType, typ))
	}
	return api.NewIndex(recPath, ct)
}

func packageRecord(recPath string, raw []byte) api.Content {
	var stub api.PackageStub
	if err := yaml.Unmarshal(raw, &stub); err != nil {
		return api.NewParseError(recPath, fmt.Errorf("package: %w", err))
	}
	if stub.ID == "" {
		return api.NewParseError(recPath, ErrMissingID)
	}
	return api.NewPackage(recPath, &stub)
}

// entryRecord builds an entry from decoded fields. fallbackName is used
// when the fields carry no name.
func entryRecord(recPath string, fields map[string]any, fallbackName string) api.Content {
	typ, _ := typeSel.First(fields).(string)
	if typ == "" {
		return api.NewParseError(recPath, ErrMissingType)
	}
	ct, ok := api.ParseContentType(typ)
	if !ok {
		return api.NewParseError(recPath, fmt.Errorf("%w: %q", ErrUnknownType, typ))
	}

	entry := &api.ParsedEntry{Type: ct, Name: fallbackName, Fields: map[string]any{}}
	if id, ok := idSel.First(fields).(string); ok {
		entry.ID = id
	}
	if n, ok := nameSel.First(fields).(string); ok && n != "" {
		entry.Name = n
	}
	for k, v := range fields {
		switch k {
		case "type", "id", "name":
		default:
			entry.Fields[k] = v
		}
	}
	return api.NewEntry(recPath, entry)
}

// splitFrontmatter separates a leading "---" fenced YAML block from the
// markdown body. fm is nil when there is no frontmatter. line is the
// 0-indexed line where the YAML starts.
func splitFrontmatter(data []byte) (fm, body []byte, line uint32) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	first, rest, ok := bytes.Cut(data, []byte("\n"))
	if !ok || !isFence(first) {
		return nil, data, 0
	}
	pos := 0
	for {
		end := bytes.IndexByte(rest[pos:], '\n')
		l := rest[pos:]
		if end >= 0 {
			l = rest[pos : pos+end]
		}
		if isFence(l) {
			if end < 0 {
				return rest[:pos], nil, 1
			}
			return rest[:pos], rest[pos+end+1:], 1
		}
		if end < 0 {
			return nil, data, 0
		}
		pos += end + 1
	}
}

func isFence(line []byte) bool {
	return string(bytes.TrimRight(line, "\r")) == "---"
}

func firstHeading(doc ast.Node, src []byte) string {
	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = nodeText(h, src)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// oracleRows reads the first GFM table as roll ranges. The first column is
// "N" or "N-M", the last column is the result.
func oracleRows(doc ast.Node, src []byte) ([]api.OracleRow, error) {
	var table ast.Node
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == extast.KindTable {
			table = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if table == nil {
		return nil, nil
	}

	var rows []api.OracleRow
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		if row.Kind() != extast.KindTableRow {
			continue
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, src))
		}
		if len(cells) < 2 {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrBadOracleTable, len(rows)+1, len(cells))
		}
		lo, hi, err := parseRoll(cells[0])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrBadOracleTable, len(rows)+1, err)
		}
		rows = append(rows, api.OracleRow{Min: lo, Max: hi, Result: cells[len(cells)-1]})
	}
	return rows, nil
}

func parseRoll(s string) (lo, hi int, err error) {
	s = strings.ReplaceAll(s, "–", "-")
	a, b, ranged := strings.Cut(s, "-")
	if lo, err = strconv.Atoi(strings.TrimSpace(a)); err != nil {
		return 0, 0, fmt.Errorf("roll %q: %w", s, err)
	}
	if !ranged {
		return lo, lo, nil
	}
	if hi, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
		return 0, 0, fmt.Errorf("roll %q: %w", s, err)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("roll %q: range is reversed", s)
	}
	return lo, hi, nil
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
