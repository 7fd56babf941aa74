package cmd

import (
	"errors"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/ironledger/internal/store"
)

var (
	queryPath string
	queryList bool
)

var queryCmd = &cobra.Command{
	Use:   "query <db> [id]",
	Short: "Resolve an entry id against a SQLite index",
	Long: `Resolve prints the winning record for an id: when several packages
define the same id, the one with the highest priority wins.

Use --path to select part of the record with a JSONPath expression, for
example --path '$.rows[*].result'. With --list every stored id is printed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "")
		if err != nil {
			return err
		}
		idx, err := store.Open(args[0], newLogger(cfg))
		if err != nil {
			return err
		}
		defer func() { _ = idx.Close() }()

		out := cmd.OutOrStdout()
		if queryList {
			for e, err := range idx.All(cmd.Context()) {
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\t%d\n", e.ID, e.Path, e.Priority)
			}
			return nil
		}
		if len(args) < 2 {
			return errors.New("an id is required unless --list is set")
		}

		e, err := idx.Resolve(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		rec, err := oj.Parse(e.Record)
		if err != nil {
			return fmt.Errorf("decode record %s: %w", e.ID, err)
		}
		if queryPath == "" {
			_, _ = fmt.Fprintln(out, oj.JSON(rec, 2))
			return nil
		}
		x, err := jp.ParseString(queryPath)
		if err != nil {
			return fmt.Errorf("parse path %q: %w", queryPath, err)
		}
		for _, v := range x.Get(rec) {
			if s, ok := v.(string); ok {
				_, _ = fmt.Fprintln(out, s)
				continue
			}
			_, _ = fmt.Fprintln(out, oj.JSON(v, 2))
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryPath, "path", "p", "", "JSONPath applied to the record")
	queryCmd.Flags().BoolVar(&queryList, "list", false, "List every stored id")
	rootCmd.AddCommand(queryCmd)
}
