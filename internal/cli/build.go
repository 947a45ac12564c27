package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

func newBuildCommand(root *rootOptions) *cobra.Command {
	var (
		excludes []string
		workers  int
		noWrap   bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "build <source-dir> <out>",
		Short: "Build a searchindex.js from Markdown, HTML and notebook sources",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults := config.Default().Index
			opts := indexer.OptionsFromConfig(defaults)
			opts.SourceDir = args[0]
			opts.OutputPath = args[1]
			opts.Stemmer = root.stemmer
			opts.Wrap = !noWrap
			if cmd.Flags().Changed("exclude") {
				opts.Excludes = excludes
			}
			if workers > 0 {
				opts.Workers = workers
			}

			report, err := indexer.NewEngine(nil, nil).Build(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}
			printOK(out, fmt.Sprintf("wrote %s", report.OutputPath))
			printInfo(out, fmt.Sprintf("%d documents, %d terms, %d title terms", report.Stats.Documents, report.Stats.Terms, report.Stats.TitleTerms))
			printInfo(out, "fingerprint "+report.Fingerprint)
			for _, st := range report.Stages {
				printInfo(out, fmt.Sprintf("%-10s %s", st.Name, st.Duration.Round(time.Microsecond)))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Glob patterns to skip (default: _build, .git, .ipynb_checkpoints)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel source parsers (default from config)")
	cmd.Flags().BoolVar(&noWrap, "no-wrap", false, "Write bare JSON instead of Search.setIndex(...)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the build report as JSON")
	return cmd
}
