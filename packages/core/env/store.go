package env

import (
	"context"
	"regexp"
	"strings"

	"github.com/faisalraja/testhttp/packages/value"
)

// Mode selects how resolved values are spliced into text.
type Mode int

const (
	// Raw splices string forms and keeps the native value when a single
	// template spans the whole text. Used for URLs, headers, bodies and
	// deferred variables.
	Raw Mode = iota
	// Quoted splices expression literals so the result stays a valid
	// assertion expression.
	Quoted
)

var expressionPattern = regexp.MustCompile(`\{\{.*?\}\}`)

// EvalFunc evaluates the inner text of a {{ }} marker that is not a known
// variable.
type EvalFunc func(ctx context.Context, expr string) (value.Value, error)

// WarnFunc receives non-fatal diagnostics.
type WarnFunc func(format string, args ...any)

// Store is a variable map bound to an evaluator for deferred expressions.
type Store struct {
	*Vars
	eval EvalFunc
}

func NewStore(eval EvalFunc) *Store {
	return &Store{Vars: NewVars(), eval: eval}
}

// WithEval returns a store sharing the same variables but evaluating
// deferred expressions through eval.
func (s *Store) WithEval(eval EvalFunc) *Store {
	return &Store{Vars: s.Vars, eval: eval}
}

// Resolve substitutes every template in text. Known variables are replaced
// first, in insertion order; any remaining {{expr}} goes to the EvalFunc.
// Evaluated names are memoized unless they are built-ins ($...) or response
// tokens.
func (s *Store) Resolve(ctx context.Context, text string, mode Mode) (value.Value, error) {
	if !strings.Contains(text, "{{") || !strings.Contains(text, "}}") {
		return value.String(text), nil
	}

	for _, key := range s.Keys() {
		marker := "{{" + key + "}}"
		val, _ := s.Get(key)
		if text == marker {
			if mode == Quoted {
				return value.String(val.Literal()), nil
			}
			return val, nil
		}
		text = strings.ReplaceAll(text, marker, render(val, mode))
	}

	matches := expressionPattern.FindAllString(text, -1)
	for _, match := range matches {
		if !strings.Contains(text, match) {
			continue
		}
		expr := strings.TrimSpace(match[2 : len(match)-2])

		val, ok := s.Get(expr)
		if !ok && s.eval != nil {
			var err error
			val, err = s.eval(ctx, expr)
			if err != nil {
				return value.Null(), err
			}
			if !strings.HasPrefix(expr, "$") && !strings.HasPrefix(expr, "response") {
				s.Set(expr, val)
			}
		}

		if len(matches) == 1 && match == text {
			if mode == Quoted {
				return value.String(val.Literal()), nil
			}
			return val, nil
		}
		text = strings.ReplaceAll(text, match, render(val, mode))
	}

	return value.String(text), nil
}

// ResolveString resolves text and returns its string form.
func (s *Store) ResolveString(ctx context.Context, text string, mode Mode) (string, error) {
	val, err := s.Resolve(ctx, text, mode)
	if err != nil {
		return "", err
	}
	return val.String(), nil
}

func render(v value.Value, mode Mode) string {
	if mode == Quoted {
		return v.Literal()
	}
	return v.String()
}
