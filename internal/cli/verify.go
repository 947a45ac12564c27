package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/format"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

func newVerifyCommand(root *rootOptions) *cobra.Command {
	var required map[string]int
	cmd := &cobra.Command{
		Use:   "verify <index>",
		Short: "Check an index for integrity and a supported envversion",
		Long: `Decode a searchindex.js file, check that every posting refers to a
known document and apply the version guard. The command exits non-zero when
any check fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			stemmer, err := tokenizer.NewStemmer(root.stemmer)
			if err != nil {
				return err
			}

			idx, err := format.ReadFile(args[0])
			if err != nil {
				printErr(out, "decode: "+err.Error())
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			printOK(out, fmt.Sprintf("decoded %d documents, %d terms", idx.NumDocs(), idx.Stats().Terms))

			if err := idx.Validate(); err != nil {
				printErr(out, "integrity: "+err.Error())
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			printOK(out, "postings reference known documents")

			guard := format.DefaultGuard()
			guard.Stemmer = stemmer.Name()
			if len(required) > 0 {
				guard.Required = required
			}
			if err := guard.Check(idx.EnvVersion()); err != nil {
				printErr(out, "version: "+err.Error())
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
			printOK(out, "envversion accepted")
			printInfo(out, "fingerprint "+idx.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringToIntVar(&required, "require", nil, "Required envversion components, e.g. sphinx=56")
	return cmd
}
