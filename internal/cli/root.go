// Package cli implements the docsearch command-line tool: querying,
// inspecting, verifying and building searchindex.js files without running
// the HTTP service.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

type rootOptions struct {
	stemmer  string
	logLevel string
}

// NewRootCommand returns the docsearch command tree writing to out and
// errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "docsearch",
		Short:         "Query, inspect and build static documentation search indexes",
		SilenceUsage:  true, // operational errors are not usage errors
		SilenceErrors: true,
		Long: `docsearch reads the searchindex.js files produced by Sphinx-style
documentation builds, answers queries against them the way the browser search
page does, and can build new indexes from a source tree.`,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetupWriter(errOut, opts.logLevel, "text")
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&opts.stemmer, "stemmer", "porter", "Stemmer the index was built with (porter, english, none)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")

	root.AddCommand(
		newQueryCommand(opts),
		newInspectCommand(opts),
		newVerifyCommand(opts),
		newBuildCommand(opts),
		newLoadTestCommand(opts),
	)
	return root
}

// Execute is called by main.go.
func Execute() {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
