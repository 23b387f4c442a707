// Package openapi converts OpenAPI 3 specifications into testhttp
// definitions, one per operation.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/getkin/kin-openapi/openapi3"
)

// BaseURLVar is the session variable every generated URL starts with.
const BaseURLVar = "baseUrl"

const maxSchemaDepth = 5

// Converter converts OpenAPI specs to testhttp definitions
type Converter struct {
	baseURL       string
	includeTags   []string
	excludeTags   []string
	includeOnly   []string // specific operation IDs
	generateTests bool
	warn          func(format string, args ...any)
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the one from spec
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithTags keeps only operations carrying one of tags
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.includeTags = tags
	}
}

// WithExcludeTags drops operations carrying one of tags
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations keeps only the given operation IDs
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.includeOnly = ops
	}
}

// WithTests generates assert lines from the documented responses
func WithTests(generate bool) Option {
	return func(c *Converter) {
		c.generateTests = generate
	}
}

// WithWarn receives validation problems and skipped operations
func WithWarn(fn func(format string, args ...any)) Option {
	return func(c *Converter) {
		c.warn = fn
	}
}

func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		generateTests: true,
		warn:          func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile loads a spec from a file path or an http(s) URL.
func (c *Converter) ConvertFile(location string) (*parser.Document, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	var (
		doc *openapi3.T
		err error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		var u *url.URL
		if u, err = url.Parse(location); err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return c.Convert(doc)
}

// ConvertData converts a spec held in memory, JSON or YAML.
func (c *Converter) ConvertData(data []byte) (*parser.Document, error) {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	return c.Convert(doc)
}

// Convert builds a document that seeds baseUrl and holds one definition
// per included operation, ordered by path then method.
func (c *Converter) Convert(doc *openapi3.T) (*parser.Document, error) {
	if err := doc.Validate(context.Background()); err != nil {
		// Many published specs have minor problems; convert anyway.
		c.warn("OpenAPI spec validation: %v", err)
	}

	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = "http://localhost:3000"
		if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
			baseURL = doc.Servers[0].URL
		}
	}

	out := &parser.Document{
		Vars: []*parser.Variable{{Name: BaseURLVar, Value: strings.TrimSuffix(baseURL, "/")}},
	}
	if doc.Paths == nil {
		return out, nil
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	names := make(map[string]int)
	for _, path := range paths {
		item := pathMap[path]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, method := range sortedMethods(ops) {
			op := ops[method]
			if !c.shouldInclude(op) {
				continue
			}
			if !supportedMethod(method) {
				c.warn("skipping %s %s: method not supported", method, path)
				continue
			}

			def := c.convertOperation(path, method, op, item.Parameters)
			name := def.Name()
			if names[name]++; names[name] > 1 {
				def.Meta["name"] = fmt.Sprintf("%s_%d", name, names[name])
			}
			out.Definitions = append(out.Definitions, def)
		}
	}

	return out, nil
}

// sortedMethods orders methods the way parser.Methods lists them, with
// anything else after.
func sortedMethods(ops map[string]*openapi3.Operation) []string {
	rank := func(m string) int {
		for i, known := range parser.Methods {
			if known == m {
				return i
			}
		}
		return len(parser.Methods)
	}
	methods := make([]string, 0, len(ops))
	for m := range ops {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		ri, rj := rank(methods[i]), rank(methods[j])
		if ri != rj {
			return ri < rj
		}
		return methods[i] < methods[j]
	})
	return methods
}

func supportedMethod(method string) bool {
	for _, m := range parser.Methods {
		if m == method {
			return true
		}
	}
	return false
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	if len(c.includeOnly) > 0 && !contains(c.includeOnly, op.OperationID) {
		return false
	}
	if len(c.includeTags) > 0 && !anyOf(op.Tags, c.includeTags) {
		return false
	}
	if len(c.excludeTags) > 0 && anyOf(op.Tags, c.excludeTags) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyOf(values, set []string) bool {
	for _, v := range values {
		if contains(set, v) {
			return true
		}
	}
	return false
}

func (c *Converter) convertOperation(path, method string, op *openapi3.Operation, pathParams openapi3.Parameters) *parser.Definition {
	name := op.OperationID
	if name == "" {
		name = strings.ToLower(method) + strings.ReplaceAll(toTitle(path), "/", "")
	}

	def := &parser.Definition{
		Method: method,
		Meta:   map[string]string{"name": sanitizeName(name)},
	}
	if len(op.Tags) > 0 {
		def.Meta["tags"] = strings.Join(op.Tags, ",")
	}

	params := make(openapi3.Parameters, 0, len(pathParams)+len(op.Parameters))
	params = append(params, pathParams...)
	params = append(params, op.Parameters...)

	// Path parameters become definition variables so the URL resolves.
	urlPath := path
	var query []string
	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		switch p.In {
		case openapi3.ParameterInPath:
			urlPath = strings.ReplaceAll(urlPath, "{"+p.Name+"}", "{{"+p.Name+"}}")
			def.LocalVars = append(def.LocalVars, &parser.Variable{Name: p.Name, Value: paramExample(p)})
		case openapi3.ParameterInQuery:
			if p.Required {
				query = append(query, url.QueryEscape(p.Name)+"="+paramExample(p))
			}
		case openapi3.ParameterInHeader:
			def.Headers = append(def.Headers, &parser.Header{Key: p.Name, Value: paramExample(p)})
		}
	}

	def.URL = "{{" + BaseURLVar + "}}" + urlPath
	if len(query) > 0 {
		def.URL += "?" + strings.Join(query, "&")
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if contentType, body := requestBody(op.RequestBody.Value); body != "" {
			def.Headers = append(def.Headers, &parser.Header{Key: "Content-Type", Value: contentType})
			def.Body = &parser.Body{Raw: body}
		}
	}

	if c.generateTests {
		def.Assertions = responseAssertions(op)
	}

	return def
}

func paramExample(p *openapi3.Parameter) string {
	if p.Example != nil {
		return fmt.Sprint(p.Example)
	}
	if p.Schema != nil && p.Schema.Value != nil {
		if v := exampleValue(p.Schema.Value, 0); v != nil {
			return fmt.Sprint(v)
		}
	}
	return "{{" + p.Name + "}}"
}

// requestBody renders an example body, preferring JSON over forms.
func requestBody(body *openapi3.RequestBody) (contentType, raw string) {
	for _, ct := range sortedKeys(body.Content) {
		media := body.Content[ct]
		if !strings.Contains(ct, "json") || media == nil {
			continue
		}
		var v any
		if media.Example != nil {
			v = media.Example
		} else if media.Schema != nil {
			v = exampleValue(media.Schema.Value, 0)
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil || v == nil {
			return "", ""
		}
		return "application/json", string(data)
	}

	for _, ct := range sortedKeys(body.Content) {
		media := body.Content[ct]
		if !strings.Contains(ct, "form-urlencoded") || media == nil || media.Schema == nil || media.Schema.Value == nil {
			continue
		}
		var parts []string
		for _, name := range sortedKeys(media.Schema.Value.Properties) {
			val := "example"
			if ref := media.Schema.Value.Properties[name]; ref != nil && ref.Value != nil {
				if v := exampleValue(ref.Value, 1); v != nil {
					val = fmt.Sprint(v)
				}
			}
			parts = append(parts, url.QueryEscape(name)+"="+val)
		}
		if len(parts) > 0 {
			return "application/x-www-form-urlencoded", strings.Join(parts, "&")
		}
	}
	return "", ""
}

// exampleValue builds a sample value for schema. Formats with a matching
// built-in produce a template so every run sends fresh data.
func exampleValue(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > maxSchemaDepth {
		return nil
	}
	if schema.Example != nil {
		return schema.Example
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	switch schemaType(schema) {
	case openapi3.TypeObject:
		m := make(map[string]any, len(schema.Properties))
		for name, ref := range schema.Properties {
			if ref != nil {
				m[name] = exampleValue(ref.Value, depth+1)
			}
		}
		return m
	case openapi3.TypeArray:
		if schema.Items != nil && schema.Items.Value != nil {
			return []any{exampleValue(schema.Items.Value, depth+1)}
		}
		return []any{}
	case openapi3.TypeString:
		switch schema.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "{{$randomEmail}}"
		case "uuid":
			return "{{$uuid}}"
		}
		return "example"
	case openapi3.TypeInteger:
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return 1
	case openapi3.TypeNumber:
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.5
	case openapi3.TypeBoolean:
		return true
	}
	return nil
}

func schemaType(schema *openapi3.Schema) string {
	if types := schema.Type.Slice(); len(types) > 0 {
		return types[0]
	}
	if len(schema.Properties) > 0 {
		return openapi3.TypeObject
	}
	return ""
}

// responseAssertions checks the lowest documented 2xx status, the JSON
// content type and the required top-level body properties.
func responseAssertions(op *openapi3.Operation) []*parser.Assertion {
	code := "200"
	var resp *openapi3.Response
	if op.Responses != nil {
		responses := op.Responses.Map()
		for _, c := range sortedKeys(responses) {
			if strings.HasPrefix(c, "2") && len(c) == 3 && responses[c] != nil && responses[c].Value != nil {
				code, resp = c, responses[c].Value
				break
			}
		}
	}

	asserts := []*parser.Assertion{{Expression: "response.status_code == " + code}}
	if resp == nil {
		return asserts
	}

	for _, ct := range sortedKeys(resp.Content) {
		if !strings.Contains(ct, "json") {
			continue
		}
		asserts = append(asserts, &parser.Assertion{Expression: "'json' in response.headers.content-type"})
		if media := resp.Content[ct]; media != nil && media.Schema != nil && media.Schema.Value != nil {
			required := append([]string(nil), media.Schema.Value.Required...)
			sort.Strings(required)
			for _, prop := range required {
				asserts = append(asserts, &parser.Assertion{Expression: fmt.Sprintf("%s in response.body", quote(prop))})
			}
		}
		break
	}
	return asserts
}

func quote(s string) string {
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeName(name string) string {
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)

	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	return strings.Trim(result, "_")
}

// toTitle upper-cases the first letter of each path word: /user-items/{id}
// becomes UserItems{id}.
func toTitle(s string) string {
	var result strings.Builder
	capitalizeNext := true
	for _, r := range s {
		if r == '/' || r == '-' || r == '_' || r == ' ' {
			capitalizeNext = true
			continue
		}
		if capitalizeNext && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		result.WriteRune(r)
		capitalizeNext = false
	}
	return result.String()
}
