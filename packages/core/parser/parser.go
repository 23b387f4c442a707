package parser

import (
	"fmt"
	"os"
	"strings"
)

type state int

const (
	stateMeta state = iota
	stateHeaders
	stateBody
	stateTests
)

const (
	separatorPrefix  = "###"
	importDirective  = "@import"
	testsMarker      = ">>>"
	assertPrefix     = "assert "
	inlineFilePrefix = "< "
)

func ParseFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), path)
}

// Parse splits input into blocks and parses each one. filename is recorded
// as the SourceFile of every definition.
func Parse(input, filename string) (*Document, error) {
	doc := &Document{Path: filename}

	for i, b := range splitBlocks(normalizeNewlines(input)) {
		if i == 0 {
			rest, imports, err := extractImports(b, filename)
			if err != nil {
				return nil, err
			}
			doc.Imports = imports
			b = rest
		}

		def := ParseBlock(b.text, filename, b.line)
		if def.URL == "" {
			// Deferred values are evaluated when a request runs, so a
			// block without one has nothing to attach them to.
			if len(def.DeferredVars) > 0 {
				v := def.DeferredVars[0]
				return nil, &ParseError{
					File:    filename,
					Line:    v.Line,
					Message: fmt.Sprintf("variable %q uses a template but the block has no request line", v.Name),
				}
			}
			doc.Vars = append(doc.Vars, def.LocalVars...)
			continue
		}
		doc.Definitions = append(doc.Definitions, def)
	}

	return doc, nil
}

// ParseBlock parses the text of a single block. firstLine is the document
// line the block starts on and only feeds diagnostics.
func ParseBlock(text, filename string, firstLine int) *Definition {
	def := &Definition{
		Method:     DefaultMethod,
		Meta:       make(map[string]string),
		SourceFile: filename,
		Line:       firstLine,
	}

	current := stateMeta
	var body []string
	bodyLine := 0

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		lineNo := firstLine + i

		switch current {
		case stateMeta:
			switch {
			case strings.HasPrefix(line, "# @"):
				parseMeta(def, line[3:])
			case strings.HasPrefix(line, "@") && strings.Contains(line, "="):
				parseVariable(def, line, lineNo)
			default:
				if method, url, ok := parseRequestLine(line); ok {
					def.Method = method
					def.URL = url
					current = stateHeaders
				}
			}

		case stateHeaders:
			switch {
			case line == "":
				current = stateBody
			case line == testsMarker:
				current = stateTests
			default:
				if key, value, found := strings.Cut(line, ":"); found {
					def.Headers = append(def.Headers, &Header{
						Key:   strings.TrimSpace(key),
						Value: strings.TrimSpace(value),
						Line:  lineNo,
					})
				}
			}

		case stateBody:
			switch {
			case line == testsMarker:
				current = stateTests
			case line != "":
				if bodyLine == 0 {
					bodyLine = lineNo
				}
				body = append(body, line)
			}

		case stateTests:
			if strings.HasPrefix(line, assertPrefix) {
				def.Assertions = append(def.Assertions, &Assertion{
					Expression: strings.TrimSpace(line[len(assertPrefix):]),
					Line:       lineNo,
				})
			}
		}
	}

	if len(body) > 0 {
		def.Body = &Body{
			Raw:  strings.Join(body, "\n"),
			Line: bodyLine,
		}
	}

	return def
}

// parseMeta keeps only "key value" pairs; anything else is ignored.
func parseMeta(def *Definition, text string) {
	parts := strings.Split(text, " ")
	if len(parts) != 2 {
		return
	}
	def.Meta[parts[0]] = parts[1]
}

func parseVariable(def *Definition, line string, lineNo int) {
	key, value, _ := strings.Cut(line[1:], "=")
	v := &Variable{
		Name:  strings.TrimSpace(key),
		Value: strings.TrimSpace(value),
		Line:  lineNo,
	}
	if IsTemplate(v.Value) {
		def.DeferredVars = append(def.DeferredVars, v)
		return
	}
	def.LocalVars = append(def.LocalVars, v)
}

func parseRequestLine(line string) (method, url string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", false
	}
	if strings.HasPrefix(fields[0], "http") {
		return DefaultMethod, fields[0], true
	}
	if len(fields) < 2 {
		return "", "", false
	}
	for _, m := range Methods {
		if fields[0] == m {
			return m, fields[1], true
		}
	}
	return "", "", false
}

// IsTemplate reports whether text carries a {{ }} marker pair.
func IsTemplate(text string) bool {
	return strings.Contains(text, "{{") && strings.Contains(text, "}}")
}

// InlineFile returns the path referenced by a body line of the form "< path".
func InlineFile(line string) (string, bool) {
	if !strings.HasPrefix(line, inlineFilePrefix) {
		return "", false
	}
	path := strings.TrimSpace(line[len(inlineFilePrefix):])
	if path == "" {
		return "", false
	}
	return path, true
}

type block struct {
	text string
	line int
}

func splitBlocks(input string) []block {
	var blocks []block
	var current []string
	start := 1

	for i, line := range strings.Split(input, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), separatorPrefix) {
			blocks = append(blocks, block{text: strings.Join(current, "\n"), line: start})
			current = nil
			start = i + 2
			continue
		}
		current = append(current, line)
	}
	return append(blocks, block{text: strings.Join(current, "\n"), line: start})
}

func extractImports(b block, filename string) (block, []string, error) {
	if !strings.Contains(b.text, importDirective) {
		return b, nil, nil
	}

	var imports []string
	lines := strings.Split(b.text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, importDirective) {
			continue
		}
		path := strings.TrimSpace(line[len(importDirective):])
		if path == "" {
			return b, nil, &ParseError{
				File:    filename,
				Line:    b.line + i,
				Message: "import directive without a path",
			}
		}
		imports = append(imports, path)
		lines[i] = ""
	}

	return block{text: strings.Join(lines, "\n"), line: b.line}, imports, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// String renders a short description used by list output.
func (d *Definition) String() string {
	return fmt.Sprintf("%s %s", d.Method, d.URL)
}
