package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

type inspectReport struct {
	Path        string           `json:"path"`
	Fingerprint string           `json:"fingerprint"`
	Stats       index.Stats      `json:"stats"`
	EnvVersion  map[string]int   `json:"envversion"`
	Documents   []index.Document `json:"documents"`
	ObjTypes    map[int]string   `json:"objtypes,omitempty"`
}

func newInspectCommand(_ *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect <index>",
		Short: "Show the document table, term counts and envversion of an index",
		Long: `Print a summary of a searchindex.js file. The version guard is not
applied, so indexes from other builders can be examined too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := format.ReadFile(args[0])
			if err != nil {
				return err
			}
			report := inspectReport{
				Path:        args[0],
				Fingerprint: idx.Fingerprint(),
				Stats:       idx.Stats(),
				EnvVersion:  idx.EnvVersion(),
				Documents:   idx.Documents(),
				ObjTypes:    idx.ObjTypes(),
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, report)
			}

			printSection(out, "Index")
			printInfo(out, "path         "+report.Path)
			printInfo(out, "fingerprint  "+report.Fingerprint)
			printInfo(out, fmt.Sprintf("documents    %d", report.Stats.Documents))
			printInfo(out, fmt.Sprintf("terms        %d", report.Stats.Terms))
			printInfo(out, fmt.Sprintf("title terms  %d", report.Stats.TitleTerms))
			printInfo(out, fmt.Sprintf("postings     %d", report.Stats.Postings))
			printInfo(out, fmt.Sprintf("objects      %d", report.Stats.Objects))

			printSection(out, "Environment")
			names := make([]string, 0, len(report.EnvVersion))
			for name := range report.EnvVersion {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				printInfo(out, fmt.Sprintf("%s = %d", name, report.EnvVersion[name]))
			}

			printSection(out, "Documents")
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tDOCNAME\tFILENAME\tTITLE")
			for _, d := range report.Documents {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.ID, d.DocName, d.FileName, d.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}
