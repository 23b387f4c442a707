package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SimpleGET(t *testing.T) {
	input := `# @name ping
GET https://example.test/ping

>>>
assert response.status_code == 200`

	doc, err := Parse(input, "test.http")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 1)

	def := doc.Definitions[0]
	assert.Equal(t, "ping", def.Name())
	assert.Equal(t, "GET", def.Method)
	assert.Equal(t, "https://example.test/ping", def.URL)
	assert.Nil(t, def.Body)
	assert.Equal(t, "test.http", def.SourceFile)
	require.Len(t, def.Assertions, 1)
	assert.Equal(t, "response.status_code == 200", def.Assertions[0].Expression)
}

func TestParse_POSTWithBody(t *testing.T) {
	input := `# @name create
POST https://api.example.test/users
Content-Type: application/json
X-Trace: a:b:c

{
  "name": "{{user}}",

  "email": "john@example.test"
}
>>>
assert response.status_code == 201
assert create.response.body.id`

	doc, err := Parse(input, "test.http")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 1)

	def := doc.Definitions[0]
	assert.Equal(t, "POST", def.Method)
	require.Len(t, def.Headers, 2)
	assert.Equal(t, "Content-Type", def.Headers[0].Key)
	assert.Equal(t, "application/json", def.Headers[0].Value)
	assert.Equal(t, "X-Trace", def.Headers[1].Key)
	assert.Equal(t, "a:b:c", def.Headers[1].Value)

	require.NotNil(t, def.Body)
	assert.Equal(t, "{\n\"name\": \"{{user}}\",\n\"email\": \"john@example.test\"\n}", def.Body.Raw)
	assert.Len(t, def.Assertions, 2)
}

func TestParse_BareURLDefaultsToGET(t *testing.T) {
	doc, err := Parse("https://example.test/a", "test.http")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 1)
	assert.Equal(t, DefaultMethod, doc.Definitions[0].Method)
	assert.Equal(t, "https://example.test/a", doc.Definitions[0].URL)
}

func TestParse_Methods(t *testing.T) {
	for _, m := range Methods {
		t.Run(m, func(t *testing.T) {
			def := ParseBlock(m+" http://localhost/x", "test.http", 1)
			assert.Equal(t, m, def.Method)
			assert.Equal(t, "http://localhost/x", def.URL)
		})
	}

	def := ParseBlock("HEAD http://localhost/x", "test.http", 1)
	assert.Empty(t, def.URL, "unsupported methods are not request lines")
}

func TestParse_MultipleBlocks(t *testing.T) {
	input := `### first
# @name a
GET http://localhost/a

### second
# @name b
DELETE http://localhost/b
`

	doc, err := Parse(input, "test.http")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 2)
	assert.Equal(t, "a", doc.Definitions[0].Name())
	assert.Equal(t, "b", doc.Definitions[1].Name())
	assert.Equal(t, "DELETE", doc.Definitions[1].Method)
	assert.Equal(t, 6, doc.Definitions[1].Line)
}

func TestParse_MetaLeniency(t *testing.T) {
	input := `# @name  spaced
# @skip true extra
# @skip
# @tag smoke
# a plain comment
GET http://localhost/`

	def := ParseBlock(input, "test.http", 1)
	assert.Empty(t, def.Name(), "double space yields three tokens")
	assert.False(t, def.Skip())
	assert.Equal(t, "smoke", def.Meta["tag"])
	assert.Len(t, def.Meta, 1)
}

func TestParse_Skip(t *testing.T) {
	def := ParseBlock("# @skip true\nGET http://localhost/", "test.http", 1)
	assert.True(t, def.Skip())

	def = ParseBlock("# @skip yes\nGET http://localhost/", "test.http", 1)
	assert.False(t, def.Skip())
}

func TestParse_Variables(t *testing.T) {
	input := `@host = http://localhost
@token={{login.response.body.token}}
@half={{ not closed
GET {{host}}/me
@after=ignored`

	def := ParseBlock(input, "test.http", 1)

	require.Len(t, def.LocalVars, 2)
	assert.Equal(t, "host", def.LocalVars[0].Name)
	assert.Equal(t, "http://localhost", def.LocalVars[0].Value)
	assert.Equal(t, "half", def.LocalVars[1].Name)

	require.Len(t, def.DeferredVars, 1)
	assert.Equal(t, "token", def.DeferredVars[0].Name)
	assert.Equal(t, "{{login.response.body.token}}", def.DeferredVars[0].Value)

	v, ok := def.Deferred("token")
	require.True(t, ok)
	assert.Equal(t, 2, v.Line)
	_, ok = def.Deferred("host")
	assert.False(t, ok)

	assert.Empty(t, def.Headers, "@after is not a header line")
}

func TestParse_DeferredVariableWithoutRequest(t *testing.T) {
	_, err := Parse(`@base=http://localhost
@token={{login.response.body.token}}
###
GET {{base}}/me`, "vars.http")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "vars.http", perr.File)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, perr.Message, `"token"`)

	doc, err := Parse("@base=http://localhost\n###\nGET {{base}}/me", "vars.http")
	require.NoError(t, err)
	require.Len(t, doc.Vars, 1, "literal-only blocks still feed document vars")
	assert.Len(t, doc.Definitions, 1)
}

func TestParse_TestsDirectlyAfterHeaders(t *testing.T) {
	input := `GET http://localhost/
Accept: text/plain
>>>
assert response.ok
not an assert line
assert   len(response.text) > 0  `

	def := ParseBlock(input, "test.http", 1)
	assert.Nil(t, def.Body)
	require.Len(t, def.Headers, 1)
	require.Len(t, def.Assertions, 2)
	assert.Equal(t, "response.ok", def.Assertions[0].Expression)
	assert.Equal(t, "len(response.text) > 0", def.Assertions[1].Expression)
	assert.Equal(t, 6, def.Assertions[1].Line)
}

func TestParse_EmptyBodyIsUnset(t *testing.T) {
	def := ParseBlock("POST http://localhost/\n\n\n\n>>>\n", "test.http", 1)
	assert.Nil(t, def.Body)
}

func TestParse_Idempotent(t *testing.T) {
	input := `@import shared.http
### login
# @name login
@user=admin
POST http://localhost/login
Content-Type: application/json

{"user": "{{user}}"}
>>>
assert response.status_code == 200

### me
@token={{login.response.body.token}}
GET http://localhost/me
Authorization: Bearer {{token}}
`

	first, err := Parse(input, "test.http")
	require.NoError(t, err)
	second, err := Parse(input, "test.http")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParse_Imports(t *testing.T) {
	input := `@import common.http
@import  nested/auth.http
@base=http://localhost

### one
GET {{base}}/one
`

	doc, err := Parse(input, "test.http")
	require.NoError(t, err)
	assert.Equal(t, []string{"common.http", "nested/auth.http"}, doc.Imports)
	require.Len(t, doc.Vars, 1)
	assert.Equal(t, "base", doc.Vars[0].Name)
	require.Len(t, doc.Definitions, 1)
}

func TestParse_ImportWithoutPath(t *testing.T) {
	_, err := Parse("@import\n### x\nGET http://localhost/", "test.http")
	require.Error(t, err)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
	assert.Contains(t, err.Error(), "test.http:1:")
}

func TestParse_ImportsOnlyInFirstSegment(t *testing.T) {
	doc, err := Parse("### a\n@import other.http\nGET http://localhost/", "test.http")
	require.NoError(t, err)
	assert.Empty(t, doc.Imports)
}

func TestParse_CRLF(t *testing.T) {
	doc, err := Parse("GET http://localhost/\r\nAccept: */*\r\n\r\nbody\r\n", "test.http")
	require.NoError(t, err)
	require.Len(t, doc.Definitions, 1)
	assert.Equal(t, "*/*", doc.Definitions[0].Headers[0].Value)
	assert.Equal(t, "body", doc.Definitions[0].Body.Raw)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.http")
	require.NoError(t, os.WriteFile(path, []byte("GET http://localhost/"), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
	require.Len(t, doc.Definitions, 1)
	assert.Equal(t, path, doc.Definitions[0].SourceFile)

	_, err = ParseFile(filepath.Join(dir, "missing.http"))
	assert.Error(t, err)
}

func TestInlineFile(t *testing.T) {
	path, ok := InlineFile("< ./payload.json")
	assert.True(t, ok)
	assert.Equal(t, "./payload.json", path)

	_, ok = InlineFile("<")
	assert.False(t, ok)
	_, ok = InlineFile("<html>")
	assert.False(t, ok)
}

func TestDefinition_DisplayName(t *testing.T) {
	def := ParseBlock("GET http://localhost/x", "test.http", 1)
	assert.Equal(t, "http://localhost/x", def.DisplayName())
	assert.Equal(t, "GET http://localhost/x", def.String())
}

func TestFormat_RoundTrip(t *testing.T) {
	doc := &Document{
		Imports: []string{"shared.http"},
		Vars:    []*Variable{{Name: "base", Value: "http://localhost"}},
		Definitions: []*Definition{
			{
				Method:       "POST",
				URL:          "{{base}}/login",
				Meta:         map[string]string{"name": "login", "skip": "true"},
				LocalVars:    []*Variable{{Name: "user", Value: "admin"}},
				DeferredVars: []*Variable{{Name: "id", Value: "{{$uuid}}"}},
				Headers:      []*Header{{Key: "Content-Type", Value: "application/json"}},
				Body:         &Body{Raw: "{\n\"user\": \"{{user}}\"\n}"},
				Assertions:   []*Assertion{{Expression: "response.status_code == 200"}},
			},
			{
				Method:     "GET",
				URL:        "{{base}}/me",
				Meta:       map[string]string{},
				Assertions: []*Assertion{{Expression: "response.ok"}},
			},
		},
	}

	text := Format(doc)
	assert.Contains(t, text, "### login\n# @name login\n# @skip true\n")

	parsed, err := Parse(text, "out.http")
	require.NoError(t, err)
	assert.Equal(t, doc.Imports, parsed.Imports)
	require.Len(t, parsed.Vars, 1)
	assert.Equal(t, "base", parsed.Vars[0].Name)
	require.Len(t, parsed.Definitions, 2)

	for i, want := range doc.Definitions {
		got := parsed.Definitions[i]
		assert.Equal(t, want.Method, got.Method)
		assert.Equal(t, want.URL, got.URL)
		assert.Equal(t, want.Meta, got.Meta)
		assert.Equal(t, len(want.Headers), len(got.Headers))
		assert.Equal(t, len(want.LocalVars), len(got.LocalVars))
		assert.Equal(t, len(want.DeferredVars), len(got.DeferredVars))
		if want.Body != nil {
			require.NotNil(t, got.Body)
			assert.Equal(t, want.Body.Raw, got.Body.Raw)
		} else {
			assert.Nil(t, got.Body)
		}
		require.Len(t, got.Assertions, len(want.Assertions))
		assert.Equal(t, want.Assertions[0].Expression, got.Assertions[0].Expression)
	}
}
