package expr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faisalraja/testhttp/packages/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(t *testing.T) Env {
	t.Helper()
	body, ok := value.FromJSON([]byte(`{
		"ok": true,
		"count": 3,
		"name": "Widget",
		"items": [{"id": 7, "tags": ["a", "b"]}, {"id": 8, "tags": []}],
		"meta": {"next": null}
	}`))
	require.True(t, ok)

	headers := value.FoldMapping()
	headers.Set("Content-Type", value.String("application/json; charset=utf-8"))

	response := value.Mapping()
	response.Set("status_code", value.Int(200))
	response.Set("body", body)
	response.Set("headers", headers)
	response.Set("text", value.String("<ul><li>one</li><li class=x>two <b>2</b></li></ul>"))

	return Env{
		Lookup: func(_ context.Context, path []string) (value.Value, error) {
			if path[0] == "boom" {
				return value.Null(), errors.New("lookup failed")
			}
			v := value.Null()
			if path[0] == "response" {
				v = response
			}
			for _, seg := range path[1:] {
				v = v.Field(seg)
			}
			return v, nil
		},
		Dir: t.TempDir(),
	}
}

func TestEvaluate_Truthiness(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		expr string
		want bool
	}{
		{"response.status_code == 200", true},
		{"response.status_code != 200", false},
		{"200 <= response.status_code < 300", true},
		{"1 < 2 < 2", false},
		{"response.body.ok", true},
		{"response.body.ok and response.body.count > 2", true},
		{"response.body.ok && response.body.count > 3", false},
		{"not response.body.ok or response.body.count == 3.0", true},
		{"!response.body.ok || false", false},
		{"response.body.items[0].id == 7", true},
		{"response.body.items.1.id == 8", true},
		{"response.body.items[5] == null", true},
		{"response.body.meta.next == None", true},
		{"response.body.missing == nil", true},
		{"'a' in response.body.items[0].tags", true},
		{"'c' not in response.body.items[0].tags", true},
		{"'next' in response.body.meta", true},
		{"'content-type' in response.headers", true},
		{"'json' in response.headers.Content-Type", true},
		{"response.headers.content-type == response.headers['CONTENT-TYPE']", true},
		{"response.body.name == 'Widget'", true},
		{`response.body.name == "Widget"`, true},
		{"response.body.name == '''Widget'''", true},
		{"response.body.name.length == 6", true},
		{"'1' == 1", false},
		{"True == true", true},
		{"[1, 2] == [1, 2.0]", true},
		{`{"a": 1, b: [true]} == {"a": 1, "b": [true]}`, true},
		{"-1 < 0", true},
		{"(1 < 2) == true", true},
		{"'abc' < 'abd'", true},
		{"len(response.body.items) == 2", true},
		{"len(response.body.items[1].tags) == 0", true},
		{"len(response.body) == 5", true},
		{"contains(response.body.name, 'idg')", true},
		{"startswith(response.body.name, 'Wid') and endswith(response.body.name, 'get')", true},
		{"matches(response.headers.Content-Type, '^application/json')", true},
		{"lower(response.body.name) == 'widget' and upper('a') == 'A'", true},
		{"str(response.body.count) == '3'", true},
		{"int('42') == 42 and int(3.9) == 3 and int(true) == 1", true},
		{"float('1.5') == 1.5", true},
		{"type(response.body.items) == 'array' and type(response.body) == 'object'", true},
		{"type(null) == 'null' and type('') == 'string' and type(1) == 'number'", true},
		{"jsonpath(response.body, 'items.#.id') == [7, 8]", true},
		{"jsonpath(response.body, 'items.#(id==8).id') == 8", true},
		{"jsonpath(response.body, 'nope') == null", true},
		{`jsonpath('{"x": {"y": 1}}', 'x.y') == 1`, true},
		{"css(response.text, 'li') == ['one', 'two 2']", true},
		{"css(response.text, 'li.x b')[0] == '2'", true},
		{"len(css(response.text, 'p')) == 0", true},
		{"''", false},
		{"0", false},
		{"[]", false},
		{"{}", false},
		{"'x'", true},
		{"response.body.items[0].id is not None", true},
		{"response.body.meta.next is None", true},
		{"response.body.missing is not None", false},
		{"response.body.ok is True and response.body.ok is not False", true},
		{"0 is False", false},
		{"response.body.count is 3", true},
		{"not response.body.meta.next is not None", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(context.Background(), tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Truthy())
		})
	}
}

func TestEvaluate_RuntimeErrors(t *testing.T) {
	env := testEnv(t)

	tests := []struct {
		expr    string
		wantErr string
	}{
		{"response.body.name < 3", "not comparable"},
		{"1 in 2", "cannot search in number"},
		{"len(response.body.count)", "number has no length"},
		{"int('x')", "invalid integer"},
		{"len(1, 2)", "len() takes 1 argument, got 2"},
		{"matches('a', '(')", "matches()"},
		{"boom.x == 1", "lookup failed"},
		{"-'a'", "cannot negate string"},
		{"css('<p>', '!!')", "bad selector"},
		{"schema(response.body, 'missing.json')", "failed to read schema file"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Evaluate(context.Background(), tt.expr, env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	env := testEnv(t)

	got, err := Evaluate(context.Background(), "false and boom.x", env)
	require.NoError(t, err)
	assert.False(t, got.Truthy())

	got, err = Evaluate(context.Background(), "true or boom.x", env)
	require.NoError(t, err)
	assert.True(t, got.Truthy())
}

func TestEvaluate_Schema(t *testing.T) {
	env := testEnv(t)
	schema := `{
		"type": "object",
		"required": ["ok", "items"],
		"properties": {"count": {"type": "integer"}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(env.Dir, "schema.json"), []byte(schema), 0644))

	got, err := Evaluate(context.Background(), "schema(response.body, 'schema.json')", env)
	require.NoError(t, err)
	assert.True(t, got.Truthy())

	_, err = Evaluate(context.Background(), "schema({'ok': true}, 'schema.json')", env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestParse_SyntaxErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"a ==",
		"a = 1",
		"(1",
		"[1, 2",
		"{'a' 1}",
		"foo(1)",
		"'unterminated",
		"a & b",
		"1 2",
		"a.",
		"and",
		"a is",
		"is None",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			var serr *SyntaxError
			assert.ErrorAs(t, err, &serr)
		})
	}
}

func TestParse_PathFolding(t *testing.T) {
	n, err := Parse("login.response.body.items[0]['id']")
	require.NoError(t, err)
	path, ok := n.(*Path)
	require.True(t, ok)
	assert.Equal(t, []string{"login", "response", "body", "items", "0", "id"}, path.Segments)

	n, err = Parse("response.headers.X-Request-Id")
	require.NoError(t, err)
	assert.Equal(t, "response.headers.X-Request-Id", n.String())
}

func TestParse_String(t *testing.T) {
	n, err := Parse(`not a.b in [1, 'x'] and len(c) >= -2`)
	require.NoError(t, err)
	assert.Equal(t, "(not a.b in [1, 'x'] and len(c) >= -2)", n.String())
}

func TestLexer_TripleQuoted(t *testing.T) {
	l := NewLexer(`"""it's "quoted"
ok""" == x`)
	tok := l.NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "it's \"quoted\"\nok", tok.Value)
	assert.Equal(t, TokenOperator, l.NextToken().Type)
	assert.Equal(t, TokenIdentifier, l.NextToken().Type)
	assert.Equal(t, TokenEOF, l.NextToken().Type)
}

func TestLexer_Escapes(t *testing.T) {
	tok := NewLexer(`'a\'b\n'`).NextToken()
	assert.Equal(t, TokenString, tok.Type)
	assert.Equal(t, "a'b\n", tok.Value)
}

func TestFunctions(t *testing.T) {
	names := Functions()
	assert.Contains(t, names, "jsonpath")
	assert.Contains(t, names, "css")
	for _, name := range names {
		assert.Equal(t, strings.ToLower(name), name)
	}
}

func TestRoots(t *testing.T) {
	n, err := Parse("a.response.ok and len(b.x) > 0 or a.y in [c, {'k': d.e}] and not (f or 'g')")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "f"}, Roots(n))
}

func TestLiteral_RoundTrip(t *testing.T) {
	nested := value.Mapping()
	nested.Set(`we"ird'`, value.Sequence(value.String(`a\b`), value.String("<&>")))

	for _, v := range []value.Value{
		value.String(`C:\temp\new`),
		value.String(`^\d+$`),
		value.String(`ends with "`),
		value.String(`ends with '`),
		value.String(`it's "both"`),
		value.String(`a"""b'''c\`),
		value.String("line\r\nbreak"),
		value.String(""),
		value.Bytes([]byte(`raw\n`)),
		value.Sequence(value.Int(1), value.String("x\\")),
		nested,
	} {
		t.Run(v.Literal(), func(t *testing.T) {
			env := Env{Lookup: func(context.Context, []string) (value.Value, error) { return v, nil }}
			got, err := Evaluate(context.Background(), v.Literal()+" == x", env)
			require.NoError(t, err)
			assert.True(t, got.Truthy())
		})
	}
}
