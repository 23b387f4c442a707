package env

import (
	"context"
	"errors"
	"testing"

	"github.com/faisalraja/testhttp/packages/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls   []string
	results map[string]value.Value
	err     error
}

func (r *recorder) eval(_ context.Context, expr string) (value.Value, error) {
	r.calls = append(r.calls, expr)
	if r.err != nil {
		return value.Null(), r.err
	}
	return r.results[expr], nil
}

func TestStore_DirectSubstitutionPreservesType(t *testing.T) {
	s := NewStore(nil)
	s.Set("x", value.String("abc"))
	list := value.Sequence(value.Int(1), value.Int(2))
	s.Set("n", list)

	got, err := s.Resolve(context.Background(), "{{x}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, value.String("abc"), got)

	got, err = s.Resolve(context.Background(), "{{n}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, value.KindSequence, got.Kind())
	assert.True(t, value.Equal(list, got))
}

func TestStore_CompositeSubstitutionStringifies(t *testing.T) {
	s := NewStore(nil)
	s.Set("x", value.Int(5))
	s.Set("tags", value.Sequence(value.String("a")))

	got, err := s.ResolveString(context.Background(), "id={{x}}&x={{x}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, "id=5&x=5", got)

	got, err = s.ResolveString(context.Background(), "tags={{tags}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, `tags=["a"]`, got)
}

func TestStore_NoTemplates(t *testing.T) {
	r := &recorder{}
	s := NewStore(r.eval)

	got, err := s.ResolveString(context.Background(), "plain {{ text", Raw)
	require.NoError(t, err)
	assert.Equal(t, "plain {{ text", got)
	assert.Empty(t, r.calls)
}

func TestStore_DeferredExpressions(t *testing.T) {
	r := &recorder{results: map[string]value.Value{
		"login.response.body.token": value.String("t0k"),
		"$randomInt 1 1":            value.String("1"),
		"response.status_code":      value.Int(200),
	}}
	s := NewStore(r.eval)

	got, err := s.ResolveString(context.Background(), "Bearer {{login.response.body.token}} {{ login.response.body.token }}", Raw)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t0k t0k", got)
	assert.Equal(t, []string{"login.response.body.token"}, r.calls)

	memo, ok := s.Get("login.response.body.token")
	require.True(t, ok)
	assert.Equal(t, value.String("t0k"), memo)

	_, err = s.Resolve(context.Background(), "{{$randomInt 1 1}}", Raw)
	require.NoError(t, err)
	_, err = s.Resolve(context.Background(), "{{response.status_code}}", Raw)
	require.NoError(t, err)
	assert.False(t, s.Has("$randomInt 1 1"), "built-ins are not memoized")
	assert.False(t, s.Has("response.status_code"), "response tokens are not memoized")
}

func TestStore_WholeExpressionKeepsValue(t *testing.T) {
	body := value.Mapping()
	body.Set("ok", value.Bool(true))
	r := &recorder{results: map[string]value.Value{"a.response.body": body}}
	s := NewStore(r.eval)

	got, err := s.Resolve(context.Background(), "{{a.response.body}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, value.KindMapping, got.Kind())
}

func TestStore_QuotedMode(t *testing.T) {
	r := &recorder{results: map[string]value.Value{
		"a.name":  value.String("bob"),
		"a.quote": value.String("it's"),
		"a.count": value.Int(3),
		"a.none":  value.Null(),
	}}
	s := NewStore(r.eval)
	s.Set("local", value.String("x"))

	tests := []struct {
		input string
		want  string
	}{
		{"{{a.name}} == 'bob'", "'bob' == 'bob'"},
		{"{{a.quote}} != ''", `"""it's""" != ''`},
		{"{{a.count}} > 1", "3 > 1"},
		{"{{a.none}} == null", "null == null"},
		{"{{local}} == 'x'", "'x' == 'x'"},
		{"{{local}}", "'x'"},
		{"{{a.count}}", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := s.ResolveString(context.Background(), tt.input, Quoted)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_NullSplicesEmptyInRawMode(t *testing.T) {
	r := &recorder{results: map[string]value.Value{}}
	s := NewStore(r.eval)

	got, err := s.ResolveString(context.Background(), "q={{missing.path}}", Raw)
	require.NoError(t, err)
	assert.Equal(t, "q=", got)
}

func TestStore_EvalError(t *testing.T) {
	boom := errors.New("boom")
	s := NewStore((&recorder{err: boom}).eval)

	_, err := s.Resolve(context.Background(), "x={{a.b}}", Raw)
	assert.ErrorIs(t, err, boom)
}

func TestVars_OrderAndMerge(t *testing.T) {
	v := NewVars()
	v.Set("b", value.Int(1))
	v.Set("a", value.Int(2))
	v.Set("b", value.Int(3))
	assert.Equal(t, []string{"b", "a"}, v.Keys())

	other := FromStrings(map[string]string{"z": "1", "a": "x"})
	assert.Equal(t, []string{"a", "z"}, other.Keys())

	v.Merge(other)
	assert.Equal(t, []string{"b", "a", "z"}, v.Keys())
	got, _ := v.Get("a")
	assert.Equal(t, value.String("x"), got)

	c := v.Clone()
	c.Set("new", value.Null())
	assert.False(t, v.Has("new"))
	assert.Equal(t, map[string]any{"b": 3.0, "a": "x", "z": "1"}, v.Native())
}

func TestParseAssignments(t *testing.T) {
	vars, invalid := ParseAssignments([]string{"a=1", "b=x=y", "c=", "bad", "=v"})
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "c": ""}, vars)
	assert.Equal(t, []string{"bad", "=v"}, invalid)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("TESTHTTP_VAR_host", "localhost")
	t.Setenv("TESTHTTP_VAR_", "ignored")

	vars := LoadSystemEnv("TESTHTTP_VAR_")
	assert.Equal(t, "localhost", vars["host"])
	_, ok := vars[""]
	assert.False(t, ok)
}

func TestMergeVariables(t *testing.T) {
	got := MergeVariables(map[string]string{"a": "1", "b": "1"}, nil, map[string]string{"b": "2"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
