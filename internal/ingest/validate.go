package ingest

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/yaml"
)

// ValidationError locates a YAML syntax problem.
type ValidationError struct {
	Path    string
	Line    uint32 // 0-indexed
	Column  uint32 // 0-indexed
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line+1, e.Column+1, e.Message)
}

// ValidateYAML parses data with tree-sitter and reports the first syntax
// error. lineOffset shifts reported lines, for YAML embedded in a larger
// file such as markdown frontmatter.
func ValidateYAML(data []byte, path string, lineOffset uint32) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(yaml.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, data)
	if err != nil {
		return fmt.Errorf("tree-sitter parse failed for %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return fmt.Errorf("tree-sitter returned nil root for %s", path)
	}
	if !root.HasError() {
		return nil
	}

	verr := &ValidationError{Path: path, Line: lineOffset, Message: "yaml contains errors"}
	collectErrors(root, func(n *sitter.Node) bool {
		verr.Line = n.StartPoint().Row + lineOffset
		verr.Column = n.StartPoint().Column
		verr.Message = "yaml syntax error"
		return false
	})
	return verr
}

// collectErrors visits ERROR and MISSING nodes depth-first until visit
// returns false.
func collectErrors(node *sitter.Node, visit func(*sitter.Node) bool) bool {
	if node.IsError() || node.IsMissing() {
		return visit(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if !collectErrors(child, visit) {
				return false
			}
		}
	}
	return true
}
