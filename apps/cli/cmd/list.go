package cmd

import (
	"fmt"
	"io"

	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory...]",
	Short: "List the definitions in .http files",
	Long: `List every definition with the position --index selects, its name,
method and URL.

Examples:
  testhttp list api.http
  testhttp list ./tests/`,
	RunE: listCommand,
}

func init() {
	listCmd.Flags().StringArrayVarP(&fileFlags, "file", "f", nil, "File to list; repeatable or comma separated")
	listCmd.Flags().StringVar(&patternFlag, "pattern", "", "List files matching a glob")
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, fileFlags, patternFlag)
	if err != nil {
		return err
	}

	index := 0
	for _, file := range files {
		doc, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}
		index = printDocument(cmd.OutOrStdout(), doc, index)
	}

	return nil
}

// printDocument writes one document's listing. Positions continue across
// files, matching how run numbers definitions for --index.
func printDocument(w io.Writer, doc *parser.Document, index int) int {
	fmt.Fprintf(w, "\n%s:\n", doc.Path)
	for _, imp := range doc.Imports {
		fmt.Fprintf(w, "  import %s\n", imp)
	}

	dim := color.New(color.Faint).SprintFunc()
	for _, d := range doc.Definitions {
		name := d.Name()
		if name == "" {
			name = "-"
		}
		line := fmt.Sprintf("  [%d] %s  %s %s", index, name, d.Method, d.URL)
		if d.Skip() {
			line += dim("  (skip)")
		}
		if n := len(d.Assertions); n > 0 {
			line += dim(fmt.Sprintf("  %d assert(s)", n))
		}
		fmt.Fprintln(w, line)
		index++
	}
	return index
}
