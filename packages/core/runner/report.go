package runner

import (
	"time"
)

// Report is the outcome of one Run.
type Report struct {
	Files       []string           `json:"files"`
	StartedAt   time.Time          `json:"startedAt"`
	Duration    time.Duration      `json:"duration"`
	Success     int                `json:"success"`
	Failures    int                `json:"failures"`
	Definitions []DefinitionResult `json:"definitions"`
	Latency     LatencyStats       `json:"latency"`
}

// Passed reports whether no definition failed.
func (r *Report) Passed() bool {
	return r.Failures == 0
}

// DefinitionResult describes a definition that ran or was skipped.
type DefinitionResult struct {
	Name       string            `json:"name"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Source     string            `json:"source"`
	Line       int               `json:"line"`
	Imported   bool              `json:"imported,omitempty"`
	Skipped    bool              `json:"skipped,omitempty"`
	Result     string            `json:"result"`
	StatusCode int               `json:"statusCode,omitempty"`
	Duration   time.Duration     `json:"duration,omitempty"`
	Assertions []AssertionResult `json:"assertions,omitempty"`
}

type AssertionResult struct {
	Expression string `json:"expression"`
	Line       int    `json:"line"`
	Passed     bool   `json:"passed"`
	Message    string `json:"message,omitempty"`
}

func (p *Processor) report(started time.Time) *Report {
	r := &Report{
		Files:     p.files,
		StartedAt: started,
		Duration:  time.Since(started),
		Success:   p.Success,
		Failures:  p.Failures,
		Latency:   p.latency.Stats(),
	}

	for _, d := range p.all {
		if !d.hasRun {
			continue
		}
		r.Definitions = append(r.Definitions, newDefinitionResult(d))
	}
	return r
}

func newDefinitionResult(d *Definition) DefinitionResult {
	res := DefinitionResult{
		Name:     d.DisplayName(),
		Method:   d.Method,
		URL:      d.URL,
		Source:   d.SourceFile,
		Line:     d.Line,
		Imported: d.imported,
		Skipped:  d.skipped,
		Result:   d.result.String(),
	}
	if d.request != nil {
		res.URL = d.request.URL
	}
	if d.response != nil {
		res.StatusCode = d.response.StatusCode
		res.Duration = d.response.Duration
	}
	for _, a := range d.assertions {
		res.Assertions = append(res.Assertions, AssertionResult{
			Expression: a.Expression,
			Line:       a.Line,
			Passed:     a.Passed,
			Message:    a.Message,
		})
	}
	return res
}
