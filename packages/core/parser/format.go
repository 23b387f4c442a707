package parser

import (
	"fmt"
	"sort"
	"strings"
)

// Format renders doc in the syntax Parse reads. Line numbers and source
// files are not rendered; parsing the output yields the same requests,
// variables and assertions.
func Format(doc *Document) string {
	var sb strings.Builder
	for _, imp := range doc.Imports {
		fmt.Fprintf(&sb, "%s %s\n", importDirective, imp)
	}
	for _, v := range doc.Vars {
		writeVariable(&sb, v)
	}
	for _, d := range doc.Definitions {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		writeDefinition(&sb, d)
	}
	return sb.String()
}

func writeVariable(sb *strings.Builder, v *Variable) {
	fmt.Fprintf(sb, "@%s=%s\n", v.Name, v.Value)
}

func writeDefinition(sb *strings.Builder, d *Definition) {
	sb.WriteString(separatorPrefix)
	if label := d.DisplayName(); label != "" {
		sb.WriteString(" " + label)
	}
	sb.WriteString("\n")

	// name first, then the rest in a stable order
	keys := make([]string, 0, len(d.Meta))
	for k := range d.Meta {
		if k != "name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if name := d.Name(); name != "" {
		keys = append([]string{"name"}, keys...)
	}
	for _, k := range keys {
		fmt.Fprintf(sb, "# @%s %s\n", k, d.Meta[k])
	}

	for _, v := range d.LocalVars {
		writeVariable(sb, v)
	}
	for _, v := range d.DeferredVars {
		writeVariable(sb, v)
	}

	fmt.Fprintf(sb, "%s %s\n", d.Method, d.URL)
	for _, h := range d.Headers {
		fmt.Fprintf(sb, "%s: %s\n", h.Key, h.Value)
	}

	if d.Body != nil && d.Body.Raw != "" {
		sb.WriteString("\n")
		sb.WriteString(d.Body.Raw)
		sb.WriteString("\n")
	}

	if len(d.Assertions) > 0 {
		if d.Body == nil {
			sb.WriteString("\n")
		}
		sb.WriteString(testsMarker + "\n")
		for _, a := range d.Assertions {
			sb.WriteString(assertPrefix + a.Expression + "\n")
		}
	}
}
