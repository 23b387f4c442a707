package runner

import (
	"path/filepath"

	"github.com/faisalraja/testhttp/packages/assertions"
	"github.com/faisalraja/testhttp/packages/core/env"
	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/faisalraja/testhttp/packages/http"
	"github.com/faisalraja/testhttp/packages/value"
)

// Result is the memoized outcome of a definition's assertions.
type Result int

const (
	ResultUnset Result = iota
	ResultPass
	ResultFail
)

func (r Result) String() string {
	switch r {
	case ResultPass:
		return "pass"
	case ResultFail:
		return "fail"
	}
	return "unset"
}

// Definition is a parsed definition plus its run state. A definition sends
// at most one request and computes its result at most once.
type Definition struct {
	*parser.Definition

	store      *env.Store
	imported   bool
	hasRun     bool
	skipped    bool
	testing    bool
	request    *http.Request
	response   *http.Response
	result     Result
	assertions []*assertions.Result
}

func newDefinition(def *parser.Definition, imported bool) *Definition {
	d := &Definition{
		Definition: def,
		store:      env.NewStore(nil),
		imported:   imported,
	}
	for _, v := range def.LocalVars {
		d.store.Set(v.Name, value.String(v.Value))
	}
	return d
}

func (d *Definition) HasRun() bool { return d.hasRun }

func (d *Definition) Skipped() bool { return d.skipped }

// Imported reports whether the definition came from an @import.
func (d *Definition) Imported() bool { return d.imported }

func (d *Definition) Request() *http.Request { return d.request }

func (d *Definition) Response() *http.Response { return d.response }

func (d *Definition) Result() Result { return d.result }

// Results holds one entry per evaluated assertion.
func (d *Definition) Results() []*assertions.Result { return d.assertions }

// Vars exposes the resolved variables of the definition.
func (d *Definition) Vars() *env.Vars { return d.store.Vars }

// resolvePath makes a relative path relative to the source document.
func (d *Definition) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.dir(), path)
}

func (d *Definition) dir() string {
	return filepath.Dir(d.SourceFile)
}
