package assertions

import (
	"context"
	"fmt"
	"strings"

	"github.com/faisalraja/testhttp/packages/expr"
	"github.com/faisalraja/testhttp/packages/value"
)

type Result struct {
	// Expression is the resolved expression that was evaluated.
	Expression string
	Line       int
	Passed     bool
	Actual     value.Value
	Message    string
	Err        error
}

type Evaluator struct {
	lookup  expr.LookupFunc
	baseDir string
}

// EvaluatorOption is a functional option for configuring an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithBaseDir sets the directory schema files are resolved against.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(lookup expr.LookupFunc, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{lookup: lookup}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) env() expr.Env {
	return expr.Env{Lookup: e.lookup, Dir: e.baseDir}
}

// Evaluate runs one assertion. It never returns nil; inspect Err for
// evaluation failures.
func (e *Evaluator) Evaluate(ctx context.Context, expression string) *Result {
	result := &Result{Expression: expression}

	node, err := expr.Parse(expression)
	if err != nil {
		result.Err = err
		result.Message = err.Error()
		return result
	}

	actual, err := expr.Eval(ctx, node, e.env())
	if err != nil {
		result.Err = err
		result.Message = err.Error()
		return result
	}

	result.Actual = actual
	result.Passed = actual.Truthy()
	if !result.Passed {
		result.Message = e.explain(ctx, node, actual)
	}
	return result
}

// explain describes a false result. For a comparison it shows what each
// operand evaluated to.
func (e *Evaluator) explain(ctx context.Context, node expr.Node, actual value.Value) string {
	cmp, ok := node.(*expr.Compare)
	if !ok {
		return fmt.Sprintf("evaluated to %s", actual.Literal())
	}

	var sb strings.Builder
	sb.WriteString("got ")
	for i, operand := range cmp.Operands {
		if i > 0 {
			sb.WriteString(" " + cmp.Ops[i-1] + " ")
		}
		v, err := expr.Eval(ctx, operand, e.env())
		if err != nil {
			return fmt.Sprintf("evaluated to %s", actual.Literal())
		}
		sb.WriteString(abbreviate(v.Literal()))
	}
	return sb.String()
}

const maxLiteral = 200

func abbreviate(s string) string {
	if len(s) <= maxLiteral {
		return s
	}
	return s[:maxLiteral] + "..."
}

// Summary counts passed and failed results.
func Summary(results []*Result) (passed, failed int) {
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
