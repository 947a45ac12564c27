package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Lines are prefixed the same way by every command:
//   ✓  success
//   ✗  failure
//   ~  neutral info

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "\n=== %s ===\n", title)
}

func printOK(w io.Writer, msg string) {
	fmt.Fprintf(w, "  ✓  %s\n", msg)
}

func printErr(w io.Writer, msg string) {
	fmt.Fprintf(w, "  ✗  %s\n", msg)
}

func printInfo(w io.Writer, msg string) {
	fmt.Fprintf(w, "  ~  %s\n", msg)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
