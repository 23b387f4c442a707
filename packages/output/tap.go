package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/faisalraja/testhttp/packages/core/runner"
	"gopkg.in/yaml.v3"
)

// TAPFormatter formats a run in TAP (Test Anything Protocol) version 13
type TAPFormatter struct {
	writer io.Writer
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

// tapDiagnostic is the YAML block following a "not ok" line
type tapDiagnostic struct {
	Message  string   `yaml:"message,omitempty"`
	Severity string   `yaml:"severity,omitempty"`
	File     string   `yaml:"file,omitempty"`
	Failures []string `yaml:"failures,omitempty"`
}

func (f *TAPFormatter) Format(report *runner.Report, runErr error) error {
	total := len(report.Definitions)
	if runErr != nil {
		total++
	}

	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", total)

	for i, d := range report.Definitions {
		n := i + 1
		switch {
		case d.Skipped:
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP\n", n, d.Name)
		case d.Result == runner.ResultFail.String():
			fmt.Fprintf(f.writer, "not ok %d - %s\n", n, d.Name)
			diag := tapDiagnostic{File: fmt.Sprintf("%s:%d", d.Source, d.Line)}
			for _, a := range failures(d) {
				diag.Failures = append(diag.Failures, describe(a))
			}
			if err := f.diagnostic(diag); err != nil {
				return err
			}
		default:
			fmt.Fprintf(f.writer, "ok %d - %s\n", n, d.Name)
		}
	}

	if runErr != nil {
		fmt.Fprintf(f.writer, "not ok %d - run\n", total)
		if err := f.diagnostic(tapDiagnostic{Message: runErr.Error(), Severity: "fatal"}); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(f.writer)
	return err
}

func (f *TAPFormatter) diagnostic(diag tapDiagnostic) error {
	data, err := yaml.Marshal(diag)
	if err != nil {
		return err
	}
	fmt.Fprintf(f.writer, "  ---\n")
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(f.writer, "  %s\n", line)
	}
	fmt.Fprintf(f.writer, "  ...\n")
	return nil
}
