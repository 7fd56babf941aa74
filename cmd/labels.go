package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/assemble"
)

var labelsCmd = &cobra.Command{
	Use:   "labels [source]",
	Short: "Print the inferred collection type of every folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var source string
		if len(args) == 1 {
			source = args[0]
		}
		cfg, err := loadConfig(cmd, source)
		if err != nil {
			return err
		}
		// Labels never touch the database.
		cfg.Database = ""
		s, err := openSession(cfg, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.engine.IndexAll(cmd.Context()); err != nil {
			return err
		}
		for _, r := range sortedResults(s.engine.Packages().Values()) {
			writeLabelTree(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(labelsCmd)
}

// labelTree renders folder labels of one root, nesting each folder under its
// closest labelled ancestor.
type labelTree struct {
	root  string
	tree  gotree.Tree
	nodes map[string]gotree.Tree
}

func (t labelTree) parent(p string) gotree.Tree {
	for d := api.Dir(p); d != "" && d != t.root; d = api.Dir(d) {
		if n, ok := t.nodes[d]; ok {
			return n
		}
	}
	return t.tree
}

func writeLabelTree(w io.Writer, r assemble.Result) {
	title := r.Root
	if l, ok := r.Labels[r.Root]; ok {
		title = fmt.Sprintf("%s [%s]", r.Root, l)
	}
	if r.Package != nil {
		title += " " + r.Package.ID
	}
	t := labelTree{root: r.Root, tree: gotree.New(title), nodes: make(map[string]gotree.Tree)}

	paths := make([]string, 0, len(r.Labels))
	for p := range r.Labels {
		if p != r.Root {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	for _, p := range paths {
		t.nodes[p] = t.parent(p).Add(fmt.Sprintf("%s [%s]", api.Base(p), r.Labels[p]))
	}
	_, _ = fmt.Fprint(w, t.tree.Print())
}
