package cmd

import (
	"fmt"
	"regexp"

	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/faisalraja/testhttp/packages/core/runner"
	"github.com/faisalraja/testhttp/packages/expr"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|directory...]",
	Short: "Check .http files without sending requests",
	Long: `Parse .http files, resolve their imports and check the syntax of every
assert line. Nothing is sent.

Examples:
  testhttp validate api.http
  testhttp validate ./tests/`,
	RunE: validateCommand,
}

// templatePattern matches {{...}} spans; they are only known at run time
// and validate as null.
var templatePattern = regexp.MustCompile(`\{\{.*?\}\}`)

func init() {
	validateCmd.Flags().StringArrayVarP(&fileFlags, "file", "f", nil, "File to validate; repeatable or comma separated")
	validateCmd.Flags().StringVar(&patternFlag, "pattern", "", "Validate files matching a glob")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, fileFlags, patternFlag)
	if err != nil {
		return err
	}

	hasErrors := false
	for _, file := range files {
		problems := validateFile(file)
		if len(problems) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
			continue
		}
		hasErrors = true
		for _, p := range problems {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, p)
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// validateFile returns every problem found in a document and its imports.
func validateFile(path string) []error {
	p := runner.NewProcessor(nil, runner.Config{})
	if err := p.Load(path); err != nil {
		return []error{err}
	}

	var problems []error
	for _, d := range p.All() {
		for _, a := range d.Assertions {
			if err := checkAssertion(a); err != nil {
				problems = append(problems, err)
			}
		}
	}
	return problems
}

func checkAssertion(a *parser.Assertion) error {
	src := templatePattern.ReplaceAllString(a.Expression, "null")
	if _, err := expr.Parse(src); err != nil {
		return fmt.Errorf("line %d: assert %s: %w", a.Line, a.Expression, err)
	}
	return nil
}
