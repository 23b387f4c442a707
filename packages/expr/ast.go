package expr

import (
	"strings"

	"github.com/faisalraja/testhttp/packages/value"
)

// Node is a parsed expression.
type Node interface {
	String() string
}

type Literal struct {
	Value value.Value
}

// Path is a dotted reference such as login.response.body.items.0. Constant
// [index] suffixes are folded into Segments.
type Path struct {
	Segments []string
}

// Member accesses a field or index of a computed value, e.g. len(x)[0] or
// (a or b).name.
type Member struct {
	Target Node
	Key    Node
}

type List struct {
	Items []Node
}

type Map struct {
	Keys   []string
	Values []Node
}

type Unary struct {
	Op string
	X  Node
}

// Logical is a short-circuit "and" / "or".
type Logical struct {
	Op    string
	Left  Node
	Right Node
}

// Compare is a comparison chain: a < b <= c holds when every adjacent pair
// holds.
type Compare struct {
	Operands []Node
	Ops      []string
}

type Call struct {
	Name string
	Args []Node
}

func (n *Literal) String() string { return n.Value.Literal() }
func (n *Path) String() string    { return strings.Join(n.Segments, ".") }
func (n *Member) String() string  { return n.Target.String() + "[" + n.Key.String() + "]" }

func (n *List) String() string {
	return "[" + joinNodes(n.Items) + "]"
}

func (n *Map) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = value.String(k).Literal() + ": " + n.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (n *Unary) String() string {
	if n.Op == "not" {
		return "not " + n.X.String()
	}
	return n.Op + n.X.String()
}

func (n *Logical) String() string {
	return "(" + n.Left.String() + " " + n.Op + " " + n.Right.String() + ")"
}

func (n *Compare) String() string {
	var sb strings.Builder
	sb.WriteString(n.Operands[0].String())
	for i, op := range n.Ops {
		sb.WriteString(" " + op + " ")
		sb.WriteString(n.Operands[i+1].String())
	}
	return sb.String()
}

func (n *Call) String() string {
	return n.Name + "(" + joinNodes(n.Args) + ")"
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// Roots returns the first segment of every path in n, in order of
// appearance, without duplicates.
func Roots(n Node) []string {
	var roots []string
	seen := make(map[string]bool)
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case *Path:
			if !seen[n.Segments[0]] {
				seen[n.Segments[0]] = true
				roots = append(roots, n.Segments[0])
			}
		case *Member:
			walk(n.Target)
			walk(n.Key)
		case *List:
			for _, item := range n.Items {
				walk(item)
			}
		case *Map:
			for _, v := range n.Values {
				walk(v)
			}
		case *Unary:
			walk(n.X)
		case *Logical:
			walk(n.Left)
			walk(n.Right)
		case *Compare:
			for _, operand := range n.Operands {
				walk(operand)
			}
		case *Call:
			for _, arg := range n.Args {
				walk(arg)
			}
		}
	}
	walk(n)
	return roots
}
