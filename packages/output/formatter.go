package output

import (
	"fmt"
	"io"

	"github.com/faisalraja/testhttp/packages/core/runner"
)

// Formatter writes a finished run. runErr is the fatal error that ended the
// run, if any.
type Formatter interface {
	Format(report *runner.Report, runErr error) error
}

// Formats lists the report formats accepted by NewFormatter.
var Formats = []string{"json", "junit", "tap"}

// NewFormatter returns the report formatter for name.
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want console, json, junit or tap)", name)
}

func failures(d runner.DefinitionResult) []runner.AssertionResult {
	var failed []runner.AssertionResult
	for _, a := range d.Assertions {
		if !a.Passed {
			failed = append(failed, a)
		}
	}
	return failed
}

func describe(a runner.AssertionResult) string {
	if a.Message == "" {
		return a.Expression
	}
	return fmt.Sprintf("%s: %s", a.Expression, a.Message)
}
