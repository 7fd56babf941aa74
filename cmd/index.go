package cmd

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/ironledger/api"
	"github.com/agentic-research/ironledger/internal/assemble"
)

var (
	indexJSON   bool
	indexStrict bool
)

var errProblems = errors.New("content has problems")

var indexCmd = &cobra.Command{
	Use:   "index [source]",
	Short: "Scan a content tree once and report every package",
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
		s, err := openSession(cfg, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		start := time.Now()
		if err := s.engine.IndexAll(cmd.Context()); err != nil {
			return err
		}
		results := sortedResults(s.engine.Packages().Values())
		s.log.Info("index complete", "roots", len(results), "elapsed", time.Since(start))

		out := cmd.OutOrStdout()
		if indexJSON {
			if err := writePackagesJSON(out, results); err != nil {
				return err
			}
		} else {
			writeSummary(out, results)
		}

		if indexStrict {
			for _, r := range results {
				if len(r.Problems()) > 0 {
					return errProblems
				}
			}
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "Print assembled packages as JSON")
	indexCmd.Flags().BoolVar(&indexStrict, "strict", false, "Exit non-zero when any file has a problem")
	rootCmd.AddCommand(indexCmd)
}

func sortedResults(values iter.Seq[assemble.Result]) []assemble.Result {
	out := slices.Collect(values)
	slices.SortFunc(out, func(a, b assemble.Result) int { return cmp.Compare(a.Root, b.Root) })
	return out
}

func writeSummary(w io.Writer, results []assemble.Result) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "no package roots found")
		return
	}
	for _, r := range results {
		if r.Package == nil {
			_, _ = fmt.Fprintf(w, "%s: no package declared\n", r.Root)
		} else {
			_, _ = fmt.Fprintf(w, "%s: %s (%d collections, %d entries)\n",
				r.Root, r.Package.ID, len(r.Package.Collections), r.Package.EntryCount())
		}
		problems := r.Problems()
		sort.Slice(problems, func(i, j int) bool { return problems[i].Content.Path < problems[j].Content.Path })
		for _, p := range problems {
			_, _ = fmt.Fprintf(w, "  %s: %v\n", api.Rel(p.Content.Path, r.Root), p.Problem)
		}
	}
}

func writePackagesJSON(w io.Writer, results []assemble.Result) error {
	pkgs := make([]*api.RulesPackage, 0, len(results))
	for _, r := range results {
		if r.Package != nil {
			pkgs = append(pkgs, r.Package)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pkgs); err != nil {
		return fmt.Errorf("encode packages: %w", err)
	}
	return nil
}
