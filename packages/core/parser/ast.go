package parser

import "strconv"

type Document struct {
	Path    string
	Imports []string
	// Vars holds literal assignments from blocks that carry no request line.
	Vars        []*Variable
	Definitions []*Definition
}

type Variable struct {
	Name  string
	Value string
	Line  int
}

type Header struct {
	Key   string
	Value string
	Line  int
}

type Definition struct {
	Method       string
	URL          string
	Headers      []*Header
	Body         *Body
	Meta         map[string]string
	LocalVars    []*Variable
	DeferredVars []*Variable
	Assertions   []*Assertion
	SourceFile   string
	Line         int
}

type Body struct {
	Raw  string
	Line int
}

type Assertion struct {
	Expression string
	Line       int
}

// Name returns the name directive, or "" for unnamed definitions.
func (d *Definition) Name() string {
	return d.Meta["name"]
}

// DisplayName is the name directive, falling back to the raw URL.
func (d *Definition) DisplayName() string {
	if name := d.Name(); name != "" {
		return name
	}
	return d.URL
}

// Skip reports whether the block carries "# @skip true".
func (d *Definition) Skip() bool {
	return d.Meta["skip"] == "true"
}

// Deferred returns the deferred variable declared under name.
func (d *Definition) Deferred(name string) (*Variable, bool) {
	for _, v := range d.DeferredVars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

var Methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

const DefaultMethod = "GET"

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return e.File + ":" + strconv.Itoa(e.Line) + ": " + e.Message
	}
	return "line " + strconv.Itoa(e.Line) + ": " + e.Message
}
