package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
)

func newQueryCommand(root *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query <index> <words...>",
		Short: "Search an index from the command line",
		Long: `Run a query against a searchindex.js file. All words must match;
prefix a word with - or NOT to exclude pages containing it. Flags must come
before the index path.

Example:
  docsearch query _build/html/searchindex.js heat pump
  docsearch query --json searchindex.js carnot -exergy`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stemmer, err := tokenizer.NewStemmer(root.stemmer)
			if err != nil {
				return err
			}
			guard := format.DefaultGuard()
			guard.Stemmer = stemmer.Name()
			idx, err := format.LoadFile(args[0], guard)
			if err != nil {
				return err
			}

			plan := parser.Parse(strings.Join(args[1:], " "), tokenizer.NewAnalyzer(stemmer))
			res, err := executor.New(idx, ranker.DefaultScorer()).Execute(cmd.Context(), plan, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			if len(res.Results) == 0 {
				printInfo(out, fmt.Sprintf("no results for %q", plan.RawQuery))
				return nil
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "SCORE\tDOC\tTITLE\tLOCATION")
			for _, r := range res.Results {
				loc := r.DocName
				if r.Anchor != "" {
					loc += "#" + r.Anchor
				}
				title := r.Title
				if r.Kind == executor.KindObject {
					title = r.Name + " (" + r.Description + ")"
				}
				fmt.Fprintf(tw, "%g\t%d\t%s\t%s\n", r.Score, r.DocID, title, loc)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d of %d results\n", len(res.Results), res.TotalHits)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of results (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
