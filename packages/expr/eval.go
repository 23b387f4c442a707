package expr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faisalraja/testhttp/packages/value"
)

// LookupFunc resolves a dotted path.
type LookupFunc func(ctx context.Context, path []string) (value.Value, error)

// Env is what an expression is evaluated against.
type Env struct {
	Lookup LookupFunc
	// Dir is the directory relative file arguments resolve against.
	Dir string
}

// Evaluate parses and evaluates src.
func Evaluate(ctx context.Context, src string, env Env) (value.Value, error) {
	n, err := Parse(src)
	if err != nil {
		return value.Null(), err
	}
	return Eval(ctx, n, env)
}

// Eval evaluates a parsed expression.
func Eval(ctx context.Context, n Node, env Env) (value.Value, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil

	case *Path:
		if env.Lookup == nil {
			return value.Null(), fmt.Errorf("cannot resolve %s", n)
		}
		return env.Lookup(ctx, n.Segments)

	case *Member:
		target, err := Eval(ctx, n.Target, env)
		if err != nil {
			return value.Null(), err
		}
		key, err := Eval(ctx, n.Key, env)
		if err != nil {
			return value.Null(), err
		}
		return target.Field(key.String()), nil

	case *List:
		items := make([]value.Value, len(n.Items))
		for i, item := range n.Items {
			v, err := Eval(ctx, item, env)
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		return value.Sequence(items...), nil

	case *Map:
		m := value.Mapping()
		for i, k := range n.Keys {
			v, err := Eval(ctx, n.Values[i], env)
			if err != nil {
				return value.Null(), err
			}
			m.Set(k, v)
		}
		return m, nil

	case *Unary:
		x, err := Eval(ctx, n.X, env)
		if err != nil {
			return value.Null(), err
		}
		if n.Op == "not" {
			return value.Bool(!x.Truthy()), nil
		}
		f, ok := x.Num()
		if !ok {
			return value.Null(), fmt.Errorf("cannot negate %s", x.Kind())
		}
		return value.Number(-f), nil

	case *Logical:
		left, err := Eval(ctx, n.Left, env)
		if err != nil {
			return value.Null(), err
		}
		if n.Op == "and" && !left.Truthy() || n.Op == "or" && left.Truthy() {
			return value.Bool(left.Truthy()), nil
		}
		right, err := Eval(ctx, n.Right, env)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(right.Truthy()), nil

	case *Compare:
		return evalCompare(ctx, n, env)

	case *Call:
		fn := functions[n.Name]
		if len(n.Args) < fn.minArgs || len(n.Args) > fn.maxArgs {
			return value.Null(), fmt.Errorf("%s() takes %s, got %d", n.Name, fn.arity(), len(n.Args))
		}
		args := make([]value.Value, len(n.Args))
		for i, arg := range n.Args {
			v, err := Eval(ctx, arg, env)
			if err != nil {
				return value.Null(), err
			}
			args[i] = v
		}
		v, err := fn.call(env, args)
		if err != nil {
			return value.Null(), fmt.Errorf("%s(): %w", n.Name, err)
		}
		return v, nil
	}

	return value.Null(), fmt.Errorf("unsupported expression %T", n)
}

func evalCompare(ctx context.Context, n *Compare, env Env) (value.Value, error) {
	left, err := Eval(ctx, n.Operands[0], env)
	if err != nil {
		return value.Null(), err
	}
	for i, op := range n.Ops {
		right, err := Eval(ctx, n.Operands[i+1], env)
		if err != nil {
			return value.Null(), err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return value.Null(), err
		}
		if !ok {
			return value.Bool(false), nil
		}
		left = right
	}
	return value.Bool(true), nil
}

// ErrNotComparable is returned when ordering values of different kinds.
var ErrNotComparable = errors.New("values are not comparable")

func compare(op string, a, b value.Value) (bool, error) {
	switch op {
	case "==":
		return value.Equal(a, b), nil
	case "!=":
		return !value.Equal(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		ok, err := contains(b, a)
		return !ok, err
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	}

	c, err := order(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown operator %s", op)
}

// identical is identity for null and bools and equality for everything else.
func identical(a, b value.Value) bool {
	if a.Kind() == value.KindNull || b.Kind() == value.KindNull ||
		a.Kind() == value.KindBool || b.Kind() == value.KindBool {
		return a.Kind() == b.Kind() && value.Equal(a, b)
	}
	return value.Equal(a, b)
}

func order(a, b value.Value) (int, error) {
	if x, ok := a.Num(); ok {
		if y, ok := b.Num(); ok {
			switch {
			case x < y:
				return -1, nil
			case x > y:
				return 1, nil
			}
			return 0, nil
		}
	}
	if isText(a) && isText(b) {
		return strings.Compare(a.String(), b.String()), nil
	}
	return 0, fmt.Errorf("%w: %s and %s", ErrNotComparable, a.Kind(), b.Kind())
}

// contains implements "needle in haystack".
func contains(haystack, needle value.Value) (bool, error) {
	switch haystack.Kind() {
	case value.KindSequence:
		for _, item := range haystack.Items() {
			if value.Equal(item, needle) {
				return true, nil
			}
		}
		return false, nil
	case value.KindMapping:
		if !isText(needle) {
			return false, fmt.Errorf("mapping keys are strings, not %s", needle.Kind())
		}
		return haystack.Has(needle.String()), nil
	case value.KindString, value.KindBytes:
		if !isText(needle) {
			return false, fmt.Errorf("cannot search %s in %s", needle.Kind(), haystack.Kind())
		}
		return strings.Contains(haystack.String(), needle.String()), nil
	}
	return false, fmt.Errorf("cannot search in %s", haystack.Kind())
}

func isText(v value.Value) bool {
	return v.Kind() == value.KindString || v.Kind() == value.KindBytes
}
