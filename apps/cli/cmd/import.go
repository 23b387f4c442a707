package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/faisalraja/testhttp/packages/import/curl"
	"github.com/faisalraja/testhttp/packages/import/openapi"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Generate .http files from curl commands or OpenAPI specs",
}

var importCurlCmd = &cobra.Command{
	Use:   "curl [file|-]",
	Short: "Convert curl commands to a .http file",
	Long: `Convert curl commands, one per line with backslash continuations, into
definitions. Reads a file, stdin ("-"), or a single --command.

Examples:
  testhttp import curl commands.txt -o api.http
  pbpaste | testhttp import curl -
  testhttp import curl --command "curl -X POST https://api.test/users -d '{}'"`,
	Args: cobra.MaximumNArgs(1),
	RunE: importCurlCommand,
}

var importOpenAPICmd = &cobra.Command{
	Use:   "openapi <spec-file|url>",
	Short: "Convert an OpenAPI 3 spec to a .http file",
	Long: `Generate one definition per operation, with example parameters and
bodies taken from the schemas and asserts from the documented responses.

Examples:
  testhttp import openapi petstore.yaml -o petstore.http
  testhttp import openapi https://api.test/openapi.json --tags users --base-url http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: importOpenAPICommand,
}

var (
	importOutputFlag      string
	importNoTestsFlag     bool
	importCommandFlag     string
	importBaseURLFlag     string
	importTagsFlag        string
	importExcludeTagsFlag string
	importOperationsFlag  string
)

func init() {
	importCmd.PersistentFlags().StringVarP(&importOutputFlag, "output", "o", "", "Write to this file instead of stdout")
	importCmd.PersistentFlags().BoolVar(&importNoTestsFlag, "no-tests", false, "Do not generate assert lines")

	importCurlCmd.Flags().StringVarP(&importCommandFlag, "command", "c", "", "Convert this single curl command")

	importOpenAPICmd.Flags().StringVar(&importBaseURLFlag, "base-url", "", "Override the server URL from the spec")
	importOpenAPICmd.Flags().StringVar(&importTagsFlag, "tags", "", "Only operations with these tags, comma separated")
	importOpenAPICmd.Flags().StringVar(&importExcludeTagsFlag, "exclude-tags", "", "Skip operations with these tags, comma separated")
	importOpenAPICmd.Flags().StringVar(&importOperationsFlag, "operations", "", "Only these operation IDs, comma separated")

	importCmd.AddCommand(importCurlCmd)
	importCmd.AddCommand(importOpenAPICmd)
	rootCmd.AddCommand(importCmd)
}

func importCurlCommand(cmd *cobra.Command, args []string) error {
	converter := curl.NewConverter(curl.WithAssertions(!importNoTestsFlag))

	var (
		doc *parser.Document
		err error
	)
	switch {
	case importCommandFlag != "":
		doc, err = converter.Convert(strings.NewReader(importCommandFlag))
	case len(args) == 0 || args[0] == "-":
		doc, err = converter.Convert(cmd.InOrStdin())
	default:
		doc, err = converter.ConvertFile(args[0])
	}
	if err != nil {
		return err
	}
	return writeImport(cmd.OutOrStdout(), doc, importOutputFlag)
}

func importOpenAPICommand(cmd *cobra.Command, args []string) error {
	converter := openapi.NewConverter(
		openapi.WithBaseURL(importBaseURLFlag),
		openapi.WithTags(splitList(importTagsFlag)),
		openapi.WithExcludeTags(splitList(importExcludeTagsFlag)),
		openapi.WithOperations(splitList(importOperationsFlag)),
		openapi.WithTests(!importNoTestsFlag),
		openapi.WithWarn(func(format string, a ...any) {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: "+format+"\n", a...)
		}),
	)

	doc, err := converter.ConvertFile(args[0])
	if err != nil {
		return err
	}
	return writeImport(cmd.OutOrStdout(), doc, importOutputFlag)
}

// writeImport renders doc to path, or to w when path is empty.
func writeImport(w io.Writer, doc *parser.Document, path string) error {
	content := parser.Format(doc)
	if path == "" {
		_, err := io.WriteString(w, content)
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return err
	}
	fmt.Fprintf(w, "Created: %s (%d definitions)\n", path, len(doc.Definitions))
	return nil
}
