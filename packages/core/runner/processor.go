package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/faisalraja/testhttp/packages/assertions"
	"github.com/faisalraja/testhttp/packages/builtin"
	"github.com/faisalraja/testhttp/packages/core/env"
	"github.com/faisalraja/testhttp/packages/core/parser"
	"github.com/faisalraja/testhttp/packages/http"
	"github.com/faisalraja/testhttp/packages/value"
)

// Transport sends a single request. *http.Client satisfies it.
type Transport interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Config struct {
	// StopOnFail aborts the run at the first failed assertion.
	StopOnFail bool
	Reporter   Reporter
	// Warn receives non-fatal diagnostics such as unknown built-ins.
	Warn     env.WarnFunc
	Builtins *builtin.Registry
}

// Processor owns every loaded definition and the session variables for one
// invocation.
type Processor struct {
	transport Transport
	config    Config
	session   *env.Vars

	byName  map[string]*Definition
	ordered []*Definition
	all     []*Definition
	files   []string
	loaded  map[string]*loadedDoc

	resolving []*Definition
	latency   *latencyRecorder

	Success  int
	Failures int
}

func NewProcessor(transport Transport, cfg Config) *Processor {
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Warn == nil {
		cfg.Warn = func(string, ...any) {}
	}
	if cfg.Builtins == nil {
		cfg.Builtins = builtin.NewRegistry()
	}
	return &Processor{
		transport: transport,
		config:    cfg,
		session:   env.NewVars(),
		byName:    make(map[string]*Definition),
		loaded:    make(map[string]*loadedDoc),
		latency:   newLatencyRecorder(),
	}
}

// loadedDoc remembers how a document was first reached.
type loadedDoc struct {
	imported bool
	defs     []*Definition
}

// Load parses each document and its imports. Imported definitions can be
// referenced by name but are never part of the default run order. A
// document reached twice is loaded once; one that was only imported joins
// the run order when it is later named directly.
func (p *Processor) Load(paths ...string) error {
	for _, path := range paths {
		if err := p.load(path, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *Processor) load(path string, imported bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return &FatalError{Err: err}
	}
	if prev, ok := p.loaded[abs]; ok {
		if prev.imported && !imported {
			p.promote(path, prev)
		}
		return nil
	}
	entry := &loadedDoc{imported: imported}
	p.loaded[abs] = entry

	doc, err := parser.ParseFile(path)
	if err != nil {
		return &FatalError{Err: fmt.Errorf("loading %s: %w", path, err)}
	}
	if !imported {
		p.files = append(p.files, path)
	}

	for _, imp := range doc.Imports {
		target := filepath.Join(filepath.Dir(path), imp)
		if _, err := os.Stat(target); err != nil {
			return &FatalError{Err: fmt.Errorf("import %q in %s: %w", imp, path, err)}
		}
		if err := p.load(target, true); err != nil {
			return err
		}
	}

	literals := append([]*parser.Variable(nil), doc.Vars...)
	for _, def := range doc.Definitions {
		d := newDefinition(def, imported)
		entry.defs = append(entry.defs, d)
		if name := d.Name(); name != "" {
			p.byName[name] = d
		}
		if !imported {
			p.ordered = append(p.ordered, d)
		}
		p.all = append(p.all, d)
		literals = append(literals, def.LocalVars...)
	}

	// Literal assignments reach the session in document order.
	sort.SliceStable(literals, func(i, j int) bool {
		return literals[i].Line < literals[j].Line
	})
	for _, v := range literals {
		p.session.Set(v.Name, value.String(v.Value))
	}
	return nil
}

func (p *Processor) promote(path string, doc *loadedDoc) {
	doc.imported = false
	p.files = append(p.files, path)
	for _, d := range doc.defs {
		d.imported = false
		p.ordered = append(p.ordered, d)
	}
}

// SetVars seeds the session. Seeds override literals from loaded documents.
func (p *Processor) SetVars(vars *env.Vars) {
	p.session.Merge(vars)
}

func (p *Processor) Session() *env.Vars { return p.session }

// Definitions returns the top-level definitions in document order.
func (p *Processor) Definitions() []*Definition { return p.ordered }

// All returns every loaded definition, imported ones included.
func (p *Processor) All() []*Definition { return p.all }

func (p *Processor) Lookup(name string) (*Definition, bool) {
	d, ok := p.byName[name]
	return d, ok
}

// Files lists the top-level documents that were loaded.
func (p *Processor) Files() []string { return p.files }

// Selection picks which definitions Run triggers.
type Selection struct {
	PreNames []string
	// Names replaces the default order. Index is used when Names is empty.
	Names     []string
	Index     *int
	PostNames []string
	// Distinct runs each name (or raw URL) once, keeping the position of
	// its first occurrence and the definition of its last.
	Distinct bool
}

// Run executes the selection and tallies results over every definition
// that ran. The returned report is never nil, even when err is set.
func (p *Processor) Run(ctx context.Context, sel Selection) (*Report, error) {
	started := time.Now()
	err := p.run(ctx, sel)
	p.tally()
	return p.report(started), err
}

func (p *Processor) run(ctx context.Context, sel Selection) error {
	pre, err := p.named(sel.PreNames)
	if err != nil {
		return err
	}
	post, err := p.named(sel.PostNames)
	if err != nil {
		return err
	}

	var main []*Definition
	switch {
	case len(sel.Names) > 0:
		if main, err = p.named(sel.Names); err != nil {
			return err
		}
	case sel.Index != nil:
		i := *sel.Index
		if i < 0 || i >= len(p.ordered) {
			return &FatalError{Err: fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(p.ordered))}
		}
		main = []*Definition{p.ordered[i]}
	case sel.Distinct:
		main = p.distinct()
	default:
		main = p.ordered
	}

	for _, group := range [][]*Definition{pre, main, post} {
		for _, d := range group {
			if err := p.runDefinition(ctx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Processor) named(names []string) ([]*Definition, error) {
	defs := make([]*Definition, 0, len(names))
	for _, name := range names {
		d, ok := p.byName[name]
		if !ok {
			return nil, &FatalError{Err: fmt.Errorf("%w: %q", ErrUnknownName, name)}
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func (p *Processor) distinct() []*Definition {
	var keys []string
	last := make(map[string]*Definition)
	for _, d := range p.ordered {
		key := d.DisplayName()
		if _, ok := last[key]; !ok {
			keys = append(keys, key)
		}
		last[key] = d
	}
	defs := make([]*Definition, len(keys))
	for i, key := range keys {
		defs[i] = last[key]
	}
	return defs
}

func (p *Processor) tally() {
	p.Success, p.Failures = 0, 0
	for _, d := range p.all {
		if !d.hasRun {
			continue
		}
		switch d.result {
		case ResultPass:
			p.Success++
		case ResultFail:
			p.Failures++
		}
	}
}

// runDefinition sends d if it has not run yet, then runs its assertions
// once. Needing d again while its request is being prepared is a cycle.
func (p *Processor) runDefinition(ctx context.Context, d *Definition) error {
	if !d.hasRun {
		if p.isResolving(d) {
			return &FatalError{
				Definition: d.DisplayName(),
				Err:        fmt.Errorf("%w: %s", ErrCyclicDependency, p.cycle(d)),
			}
		}
		if d.Skip() {
			d.hasRun = true
			d.skipped = true
			p.config.Reporter.Skipped(d)
			return nil
		}

		d.store.Merge(p.session)
		p.resolving = append(p.resolving, d)
		err := p.send(ctx, d)
		p.resolving = p.resolving[:len(p.resolving)-1]
		if err != nil {
			return err
		}

		p.session.Merge(d.store.Vars)
		p.config.Reporter.Vars(p.session)
	}

	if d.skipped || d.testing || d.result != ResultUnset {
		return nil
	}
	return p.runTests(ctx, d)
}

func (p *Processor) isResolving(d *Definition) bool {
	for _, r := range p.resolving {
		if r == d {
			return true
		}
	}
	return false
}

func (p *Processor) cycle(d *Definition) string {
	var names []string
	for i, r := range p.resolving {
		if r == d {
			for _, c := range p.resolving[i:] {
				names = append(names, c.DisplayName())
			}
			break
		}
	}
	return strings.Join(append(names, d.DisplayName()), " -> ")
}

func (p *Processor) send(ctx context.Context, d *Definition) error {
	store := d.store.WithEval(func(ctx context.Context, token string) (value.Value, error) {
		return p.evaluate(ctx, token, nil)
	})

	for _, v := range d.DeferredVars {
		val, err := store.Resolve(ctx, v.Value, env.Raw)
		if err != nil {
			return fatal(d, err)
		}
		store.Set(v.Name, val)
	}

	body, err := p.body(ctx, d, store)
	if err != nil {
		return fatal(d, err)
	}

	url, err := store.ResolveString(ctx, d.URL, env.Raw)
	if err != nil {
		return fatal(d, err)
	}

	req := http.NewRequest(d.Method, url)
	for _, h := range d.Headers {
		key, err := store.ResolveString(ctx, h.Key, env.Raw)
		if err != nil {
			return fatal(d, err)
		}
		val, err := store.ResolveString(ctx, h.Value, env.Raw)
		if err != nil {
			return fatal(d, err)
		}
		req.SetHeader(key, val)
	}
	if body != nil {
		req.SetBody(body)
	}

	p.config.Reporter.Running(d)
	p.config.Reporter.Request(d, req)

	resp, err := p.transport.Do(ctx, req)
	if err != nil {
		return fatal(d, fmt.Errorf("sending request: %w", err))
	}

	d.request = req
	d.response = resp
	d.hasRun = true
	p.latency.Record(resp.Duration)
	p.config.Reporter.Response(d, resp)
	return nil
}

// body resolves the request body. Composite values are sent as JSON and
// "< path" lines are replaced by the file they name.
func (p *Processor) body(ctx context.Context, d *Definition, store *env.Store) ([]byte, error) {
	if d.Body == nil {
		return nil, nil
	}

	val, err := store.Resolve(ctx, d.Body.Raw, env.Raw)
	if err != nil {
		return nil, err
	}

	switch val.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBytes:
		raw, _ := val.Raw()
		return raw, nil
	case value.KindSequence, value.KindMapping:
		return json.Marshal(val)
	}
	return inlineFiles(d, val.String())
}

func inlineFiles(d *Definition, text string) ([]byte, error) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		path, ok := parser.InlineFile(line)
		if !ok {
			continue
		}
		data, err := os.ReadFile(d.resolvePath(path))
		if err != nil {
			return nil, fmt.Errorf("inline file: %w", err)
		}
		if len(lines) == 1 {
			return data, nil
		}
		lines[i] = string(data)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

func (p *Processor) runTests(ctx context.Context, d *Definition) error {
	d.testing = true
	defer func() { d.testing = false }()

	store := d.store.WithEval(func(ctx context.Context, token string) (value.Value, error) {
		return p.evaluate(ctx, token, d)
	})
	evaluator := assertions.NewEvaluator(
		func(ctx context.Context, path []string) (value.Value, error) {
			return p.lookup(ctx, path, d)
		},
		assertions.WithBaseDir(d.dir()),
	)

	failed := 0
	for _, a := range d.Definition.Assertions {
		expression, err := store.ResolveString(ctx, a.Expression, env.Quoted)
		if err != nil {
			return fatal(d, err)
		}

		res := evaluator.Evaluate(ctx, expression)
		res.Line = a.Line
		if res.Err != nil && IsFatal(res.Err) {
			return res.Err
		}
		d.assertions = append(d.assertions, res)

		if !res.Passed {
			failed++
			p.config.Reporter.AssertionFailed(d, res)
			if p.config.StopOnFail {
				d.result = ResultFail
				return &FatalError{Definition: d.DisplayName(), Err: ErrStopped}
			}
		}
	}

	passed, _ := assertions.Summary(d.assertions)
	p.config.Reporter.TestsFinished(d, passed, failed)
	if failed == 0 {
		d.result = ResultPass
	} else {
		d.result = ResultFail
	}
	return nil
}

// evaluate resolves the inner text of a template marker. self is the
// definition whose assertions are being evaluated, if any.
func (p *Processor) evaluate(ctx context.Context, token string, self *Definition) (value.Value, error) {
	if strings.HasPrefix(token, builtin.Prefix) {
		return p.callBuiltin(token, self)
	}
	return p.lookup(ctx, strings.Split(token, "."), self)
}

func (p *Processor) callBuiltin(token string, self *Definition) (value.Value, error) {
	v, handled, err := p.config.Builtins.Call(token)
	if err != nil {
		return value.Null(), fatal(self, err)
	}
	if !handled {
		p.config.Warn("unknown built-in %q", token)
		return value.Null(), nil
	}
	return v, nil
}

// lookup walks a dotted path. The root is a variable, the current
// definition's response, or a registered definition, which is run on
// demand. Unknown roots evaluate to null.
func (p *Processor) lookup(ctx context.Context, path []string, self *Definition) (value.Value, error) {
	root, rest := path[0], path[1:]

	var cur cursor
	switch {
	case strings.HasPrefix(root, builtin.Prefix):
		v, err := p.callBuiltin(root, self)
		if err != nil {
			return value.Null(), err
		}
		cur.val = v
	case self != nil && self.store.Has(root):
		cur.val, _ = self.store.Get(root)
	case p.session.Has(root):
		cur.val, _ = p.session.Get(root)
	case self != nil && root == "response":
		cur = cursor{def: self}.step("response")
	default:
		d, ok := p.byName[root]
		if !ok {
			if len(rest) == 0 {
				if owner := p.deferredOwner(root); owner != nil {
					if err := p.runDefinition(ctx, owner); err != nil {
						return value.Null(), err
					}
					return p.lookup(ctx, path, self)
				}
			}
			return value.Null(), nil
		}
		if err := p.runDefinition(ctx, d); err != nil {
			return value.Null(), err
		}
		cur.def = d
	}

	for _, seg := range rest {
		cur = cur.step(seg)
	}
	return cur.value(), nil
}

// deferredOwner finds a named definition that has not run yet and declares
// name as a deferred variable.
func (p *Processor) deferredOwner(name string) *Definition {
	for _, d := range p.all {
		if d.hasRun || d.Name() == "" || p.byName[d.Name()] != d {
			continue
		}
		if _, ok := d.Deferred(name); ok {
			return d
		}
	}
	return nil
}

// cursor is the position reached while walking a path: a definition, a
// response or a plain value.
type cursor struct {
	def  *Definition
	resp *http.Response
	val  value.Value
}

func (c cursor) step(seg string) cursor {
	switch {
	case c.def != nil:
		if seg == "response" {
			if c.def.response == nil {
				return cursor{}
			}
			return cursor{resp: c.def.response}
		}
		v, _ := c.def.store.Get(seg)
		return cursor{val: v}
	case c.resp != nil:
		return cursor{val: c.resp.Field(seg)}
	}
	return cursor{val: c.val.Field(seg)}
}

func (c cursor) value() value.Value {
	switch {
	case c.def != nil:
		return value.Null()
	case c.resp != nil:
		return responseValue(c.resp)
	}
	return c.val
}

func responseValue(resp *http.Response) value.Value {
	m := value.Mapping()
	for _, key := range []string{"status_code", "reason", "ok", "headers", "body", "elapsed_ms"} {
		m.Set(key, resp.Field(key))
	}
	return m
}
