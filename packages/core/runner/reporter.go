package runner

import (
	"github.com/faisalraja/testhttp/packages/assertions"
	"github.com/faisalraja/testhttp/packages/core/env"
	"github.com/faisalraja/testhttp/packages/http"
)

// Reporter receives progress events while definitions run.
type Reporter interface {
	Skipped(d *Definition)
	Running(d *Definition)
	Request(d *Definition, req *http.Request)
	Response(d *Definition, resp *http.Response)
	AssertionFailed(d *Definition, res *assertions.Result)
	TestsFinished(d *Definition, passed, failed int)
	// Vars is called with the session after each definition merges into it.
	Vars(session *env.Vars)
}

type nopReporter struct{}

func (nopReporter) Skipped(*Definition)                             {}
func (nopReporter) Running(*Definition)                             {}
func (nopReporter) Request(*Definition, *http.Request)              {}
func (nopReporter) Response(*Definition, *http.Response)            {}
func (nopReporter) AssertionFailed(*Definition, *assertions.Result) {}
func (nopReporter) TestsFinished(*Definition, int, int)             {}
func (nopReporter) Vars(*env.Vars)                                  {}
