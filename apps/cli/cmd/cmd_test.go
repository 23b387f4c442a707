package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/faisalraja/testhttp/packages/core/config"
	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/faisalraja/testhttp/packages/history"
	"github.com/faisalraja/testhttp/packages/import/curl"
	"github.com/faisalraja/testhttp/packages/output"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.http", "GET http://x/")
	b := writeFile(t, dir, "nested/b.http", "GET http://x/")
	txt := writeFile(t, dir, "notes.txt", "GET http://x/")

	files, err := collectFiles([]string{dir}, nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, files)

	files, err = collectFiles(nil, []string{a + "," + txt, a}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{a, txt}, files, "explicit files keep any extension and are deduplicated")

	files, err = collectFiles(nil, nil, filepath.Join(dir, "*.http"))
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)

	_, err = collectFiles(nil, nil, filepath.Join(dir, "*.none"))
	assert.ErrorContains(t, err, "matched no files")

	_, err = collectFiles([]string{filepath.Join(dir, "missing.http")}, nil, "")
	assert.ErrorContains(t, err, "cannot access")

	_, err = collectFiles(nil, nil, "")
	assert.Error(t, err)
}

func TestBuildVars(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "host=from-dotenv\ntoken=abc\n")
	t.Setenv("TESTHTTP_VAR_host", "from-env")
	t.Setenv("TESTHTTP_VAR_region", "eu")

	vars, err := buildVars(map[string]string{"host": "from-config", "user": "admin"}, envFile, []string{"token=override"})
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", vars["host"])
	assert.Equal(t, "admin", vars["user"])
	assert.Equal(t, "eu", vars["region"])
	assert.Equal(t, "override", vars["token"])

	_, err = buildVars(nil, "", []string{"novalue"})
	assert.ErrorContains(t, err, `invalid --var "novalue"`)

	_, err = buildVars(nil, filepath.Join(dir, "missing.env"), nil)
	assert.ErrorContains(t, err, "loading env file")
}

func TestNormalizeFlag(t *testing.T) {
	assert.Equal(t, "stop-on-fail", string(normalizeFlag(nil, "stop_on_fail")))
	assert.Equal(t, "pre-name", string(normalizeFlag(nil, "pre-name")))
}

func TestValidOutput(t *testing.T) {
	assert.True(t, validOutput("console"))
	for _, f := range output.Formats {
		assert.True(t, validOutput(f))
	}
	assert.False(t, validOutput("html"))
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token": "t0k"}`)
	})
	mux.HandleFunc("/me", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") != "Bearer t0k" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"name": "demo"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

const apiHTTP = `### login
# @name login
POST {{base}}/login

### me
# @name me
@token={{login.response.body.token}}
GET {{base}}/me
Authorization: Bearer {{token}}

>>>
assert response.status_code == 200
assert response.body.name == {{user}}
`

func settings(t *testing.T, files ...string) *runSettings {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.NoColor = config.BoolPtr(true)
	return &runSettings{
		files:  files,
		cfg:    cfg,
		vars:   map[string]string{},
		output: outputConsole,
	}
}

func TestExecute_Console(t *testing.T) {
	srv := newServer(t)
	file := writeFile(t, t.TempDir(), "api.http", apiHTTP)

	s := settings(t, file)
	s.vars = map[string]string{"base": srv.URL, "user": "demo"}

	var stdout, stderr bytes.Buffer
	passed, err := execute(context.Background(), &stdout, &stderr, s)
	require.NoError(t, err)
	assert.True(t, passed, stdout.String())
	assert.Contains(t, stdout.String(), "Running 'login'")
	assert.Contains(t, stdout.String(), "Success [PASSED: 2 FAILED: 0]")
}

func TestExecute_FailureAndSelection(t *testing.T) {
	srv := newServer(t)
	file := writeFile(t, t.TempDir(), "api.http", apiHTTP)

	s := settings(t, file)
	s.vars = map[string]string{"base": srv.URL, "user": "someone"}
	s.selection.Names = []string{"me"}

	var stdout bytes.Buffer
	passed, err := execute(context.Background(), &stdout, &bytes.Buffer{}, s)
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Contains(t, stdout.String(), "Failed test: response.body.name == 'someone'")
	assert.Contains(t, stdout.String(), "Failed [PASSED: 1 FAILED: 1]")
}

func TestExecute_LoadErrorFails(t *testing.T) {
	file := writeFile(t, t.TempDir(), "api.http", "@import missing.http\nGET http://localhost/\n")

	var stdout bytes.Buffer
	passed, err := execute(context.Background(), &stdout, &bytes.Buffer{}, settings(t, file))
	require.NoError(t, err)
	assert.False(t, passed)
	assert.Contains(t, stdout.String(), "Error:")
	assert.Contains(t, stdout.String(), "missing.http")
}

func TestExecute_JSONOutputAndHistory(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "api.http", apiHTTP)

	s := settings(t, file)
	s.vars = map[string]string{"base": srv.URL, "user": "demo"}
	s.output = "json"
	s.outputFile = filepath.Join(dir, "report.json")
	s.cfg.History = filepath.Join(dir, "history.db")

	var stdout bytes.Buffer
	passed, err := execute(context.Background(), &stdout, &bytes.Buffer{}, s)
	require.NoError(t, err)
	assert.True(t, passed)
	assert.Empty(t, stdout.String(), "json goes to the output file")

	data, err := os.ReadFile(s.outputFile)
	require.NoError(t, err)
	var report output.JSONOutput
	require.NoError(t, json.Unmarshal(data, &report))
	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.Summary.Passed)

	store, err := history.Open(s.cfg.History)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Passed())
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.http", "GET http://localhost/\n>>>\nassert {{a.response.body}} == {'x': 1}\n")
	bad := writeFile(t, dir, "bad.http", "GET http://localhost/\n>>>\nassert response.status_code ==\n")
	missing := writeFile(t, dir, "imports.http", "@import nope.http\nGET http://localhost/\n")

	assert.Empty(t, validateFile(good))

	problems := validateFile(bad)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "line 3")

	problems = validateFile(missing)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Error(), "nope.http")
}

func TestPrintDocument(t *testing.T) {
	doc, err := parser.Parse("@import shared.http\n### a\n# @name a\nGET http://x/a\n>>>\nassert response.ok\n### b\n# @skip true\nPOST http://x/b\n", "api.http")
	require.NoError(t, err)

	var buf bytes.Buffer
	next := printDocument(&buf, doc, 3)
	assert.Equal(t, 5, next)

	out := buf.String()
	assert.Contains(t, out, "import shared.http")
	assert.Contains(t, out, "[3] a  GET http://x/a")
	assert.Contains(t, out, "[4] -  POST http://x/b")
	assert.Contains(t, out, "(skip)")
}

func TestWriteProject(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, writeProject(cmd, dir, false))
	assert.Contains(t, out.String(), "example.http")

	cfg, err := config.FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Vars["baseUrl"])

	assert.Empty(t, validateFile(filepath.Join(dir, "example.http")))

	err = writeProject(cmd, dir, false)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, writeProject(cmd, dir, true))
}

func TestWriteImport(t *testing.T) {
	doc, err := curl.NewConverter().Convert(strings.NewReader("curl https://h/users"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeImport(&out, doc, ""))
	assert.Contains(t, out.String(), "GET https://h/users")

	path := filepath.Join(t.TempDir(), "nested", "users.http")
	out.Reset()
	require.NoError(t, writeImport(&out, doc, path))
	assert.Contains(t, out.String(), "1 definitions")
	assert.Empty(t, validateFile(path))
}
