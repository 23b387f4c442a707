package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/faisalraja/testhttp/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Passed   bool                `json:"passed"`
	Error    string              `json:"error,omitempty"`
	Summary  JSONSummary         `json:"summary"`
	Files    []string            `json:"files"`
	Tests    []JSONTest          `json:"tests"`
	Latency  runner.LatencyStats `json:"latency"`
	Duration float64             `json:"duration"` // milliseconds
	Time     string              `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONTest represents a single definition
type JSONTest struct {
	Name       string          `json:"name"`
	File       string          `json:"file"`
	Line       int             `json:"line"`
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Imported   bool            `json:"imported,omitempty"`
	Result     string          `json:"result"`
	Skipped    bool            `json:"skipped,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Duration   float64         `json:"duration"` // milliseconds
	Assertions []JSONAssertion `json:"assertions,omitempty"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Expression string `json:"expression"`
	Line       int    `json:"line"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message,omitempty"`
}

// JSONFormatter formats a run as JSON
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// Build converts a report to its JSON shape.
func (f *JSONFormatter) Build(report *runner.Report, runErr error) JSONOutput {
	out := JSONOutput{
		Passed:   runErr == nil && report.Passed(),
		Files:    report.Files,
		Tests:    make([]JSONTest, 0, len(report.Definitions)),
		Latency:  report.Latency,
		Duration: ms(report.Duration),
		Time:     report.StartedAt.Format(time.RFC3339),
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	for _, d := range report.Definitions {
		test := JSONTest{
			Name:       d.Name,
			File:       d.Source,
			Line:       d.Line,
			Method:     d.Method,
			URL:        d.URL,
			Imported:   d.Imported,
			Result:     d.Result,
			Skipped:    d.Skipped,
			StatusCode: d.StatusCode,
			Duration:   ms(d.Duration),
		}
		for _, a := range d.Assertions {
			test.Assertions = append(test.Assertions, JSONAssertion(a))
		}

		switch {
		case d.Skipped:
			out.Summary.Skipped++
		case d.Result == runner.ResultPass.String():
			out.Summary.Passed++
		case d.Result == runner.ResultFail.String():
			out.Summary.Failed++
		}
		out.Tests = append(out.Tests, test)
	}
	out.Summary.Total = len(out.Tests)
	return out
}

func (f *JSONFormatter) Format(report *runner.Report, runErr error) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.Build(report, runErr))
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
