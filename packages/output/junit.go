package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/faisalraja/testhttp/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite groups the definitions of one source document
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single definition
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents the fatal error that ended a run
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats a run as JUnit XML
type JUnitFormatter struct {
	writer io.Writer
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// Build groups definitions into one suite per source document, in the
// order documents first appear.
func (f *JUnitFormatter) Build(report *runner.Report, runErr error) JUnitTestSuites {
	suites := JUnitTestSuites{
		Name:      "testhttp",
		Time:      report.Duration.Seconds(),
		Timestamp: report.StartedAt.Format(time.RFC3339),
	}

	index := make(map[string]int)
	for _, d := range report.Definitions {
		i, ok := index[d.Source]
		if !ok {
			i = len(suites.TestSuites)
			index[d.Source] = i
			suites.TestSuites = append(suites.TestSuites, JUnitTestSuite{Name: d.Source})
		}
		suite := &suites.TestSuites[i]

		tc := JUnitTestCase{
			Name:      d.Name,
			ClassName: d.Source,
			Time:      d.Duration.Seconds(),
		}
		switch {
		case d.Skipped:
			tc.Skipped = &JUnitSkipped{Message: "skip directive"}
			suite.Skipped++
		case d.Result == runner.ResultFail.String():
			var content strings.Builder
			for _, a := range failures(d) {
				fmt.Fprintf(&content, "line %d: %s\n", a.Line, describe(a))
			}
			tc.Failure = &JUnitFailure{
				Message: "Assertion failed",
				Type:    "AssertionError",
				Content: content.String(),
			}
			suite.Failures++
		}

		suite.Tests++
		suite.Time += tc.Time
		suite.TestCases = append(suite.TestCases, tc)
	}

	for _, s := range suites.TestSuites {
		suites.Tests += s.Tests
		suites.Failures += s.Failures
		suites.Skipped += s.Skipped
	}
	if runErr != nil {
		suites.Errors = 1
		suites.TestSuites = append(suites.TestSuites, JUnitTestSuite{
			Name:   "run",
			Tests:  1,
			Errors: 1,
			TestCases: []JUnitTestCase{{
				Name:      "run",
				ClassName: "testhttp",
				Failure:   &JUnitFailure{Message: runErr.Error(), Type: "FatalError"},
			}},
		})
	}
	return suites
}

func (f *JUnitFormatter) Format(report *runner.Report, runErr error) error {
	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	if err := encoder.Encode(f.Build(report, runErr)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(f.writer)
	return err
}
