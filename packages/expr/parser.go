package expr

import (
	"fmt"
	"strconv"

	"github.com/faisalraja/testhttp/packages/value"
)

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Pos     int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
}

type Parser struct {
	lexer *Lexer
	cur   Token
	peek  Token
}

// Parse parses a complete expression.
func Parse(input string) (Node, error) {
	p := &Parser{lexer: NewLexer(input)}
	p.next()
	p.next()

	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TokenEOF {
		return nil, p.errorf("unexpected %s", p.cur)
	}
	return n, nil
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.cur.Pos, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) isWord(word string) bool {
	return p.cur.Type == TokenIdentifier && p.cur.Value == word
}

func (p *Parser) isOp(op string) bool {
	return p.cur.Type == TokenOperator && p.cur.Value == op
}

func (p *Parser) expect(t TokenType, what string) error {
	if p.cur.Type != t {
		return p.errorf("expected %s, got %s", what, p.cur)
	}
	p.next()
	return nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isWord("or") || p.isOp("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isWord("and") || p.isOp("&&") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Logical{Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.isWord("not") || p.isOp("!") {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

// comparisonOp returns the operator at the cursor, consuming it.
func (p *Parser) comparisonOp() (string, bool) {
	switch {
	case p.cur.Type == TokenOperator:
		switch p.cur.Value {
		case "==", "!=", "<", "<=", ">", ">=":
			op := p.cur.Value
			p.next()
			return op, true
		}
	case p.isWord("in"):
		p.next()
		return "in", true
	case p.isWord("not") && p.peek.Type == TokenIdentifier && p.peek.Value == "in":
		p.next()
		p.next()
		return "not in", true
	case p.isWord("is"):
		p.next()
		if p.isWord("not") {
			p.next()
			return "is not", true
		}
		return "is", true
	}
	return "", false
}

func (p *Parser) parseComparison() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	cmp := &Compare{Operands: []Node{first}}
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		cmp.Ops = append(cmp.Ops, op)
		cmp.Operands = append(cmp.Operands, operand)
	}

	if len(cmp.Ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.isOp("-") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := x.(*Literal); ok {
			if n, ok := lit.Value.Num(); ok {
				return &Literal{Value: value.Number(-n)}, nil
			}
		}
		return &Unary{Op: "-", X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur.Type {
		case TokenDot:
			p.next()
			if p.cur.Type != TokenIdentifier && p.cur.Type != TokenNumber {
				return nil, p.errorf("expected name after '.', got %s", p.cur)
			}
			seg := p.cur.Value
			p.next()
			if path, ok := n.(*Path); ok {
				path.Segments = append(path.Segments, seg)
				continue
			}
			n = &Member{Target: n, Key: &Literal{Value: value.String(seg)}}

		case TokenLeftBracket:
			p.next()
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(TokenRightBracket, "']'"); err != nil {
				return nil, err
			}
			if path, ok := n.(*Path); ok {
				if seg, ok := constantSegment(key); ok {
					path.Segments = append(path.Segments, seg)
					continue
				}
			}
			n = &Member{Target: n, Key: key}

		default:
			return n, nil
		}
	}
}

func constantSegment(n Node) (string, bool) {
	lit, ok := n.(*Literal)
	if !ok {
		return "", false
	}
	switch lit.Value.Kind() {
	case value.KindString, value.KindNumber:
		return lit.Value.String(), true
	}
	return "", false
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.cur
	switch tok.Type {
	case TokenNumber:
		p.next()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &SyntaxError{Pos: tok.Pos, Message: "invalid number " + tok.Value}
		}
		return &Literal{Value: value.Number(f)}, nil

	case TokenString:
		p.next()
		return &Literal{Value: value.String(tok.Value)}, nil

	case TokenIdentifier:
		p.next()
		switch tok.Value {
		case "true", "True":
			return &Literal{Value: value.Bool(true)}, nil
		case "false", "False":
			return &Literal{Value: value.Bool(false)}, nil
		case "null", "None", "nil":
			return &Literal{Value: value.Null()}, nil
		case "and", "or", "not", "in", "is":
			return nil, &SyntaxError{Pos: tok.Pos, Message: "unexpected " + tok.Value}
		}
		if p.cur.Type == TokenLeftParen {
			return p.parseCall(tok)
		}
		return &Path{Segments: []string{tok.Value}}, nil

	case TokenLeftParen:
		p.next()
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil

	case TokenLeftBracket:
		p.next()
		items, err := p.parseList(TokenRightBracket, "']'")
		if err != nil {
			return nil, err
		}
		return &List{Items: items}, nil

	case TokenLeftBrace:
		return p.parseMap()

	case TokenIllegal:
		return nil, p.errorf("illegal token %s", tok)
	}

	return nil, p.errorf("unexpected %s", tok)
}

func (p *Parser) parseCall(name Token) (Node, error) {
	if _, ok := functions[name.Value]; !ok {
		return nil, &SyntaxError{Pos: name.Pos, Message: "unknown function " + name.Value}
	}
	p.next()
	args, err := p.parseList(TokenRightParen, "')'")
	if err != nil {
		return nil, err
	}
	return &Call{Name: name.Value, Args: args}, nil
}

// parseList reads comma-separated expressions up to the closing token. A
// trailing comma is allowed.
func (p *Parser) parseList(end TokenType, what string) ([]Node, error) {
	items := []Node{}
	for p.cur.Type != end {
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	if err := p.expect(end, what); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *Parser) parseMap() (Node, error) {
	p.next()
	m := &Map{}
	for p.cur.Type != TokenRightBrace {
		if p.cur.Type != TokenString && p.cur.Type != TokenIdentifier {
			return nil, p.errorf("expected map key, got %s", p.cur)
		}
		m.Keys = append(m.Keys, p.cur.Value)
		p.next()
		if err := p.expect(TokenColon, "':'"); err != nil {
			return nil, err
		}
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		m.Values = append(m.Values, v)
		if p.cur.Type != TokenComma {
			break
		}
		p.next()
	}
	if err := p.expect(TokenRightBrace, "'}'"); err != nil {
		return nil, err
	}
	return m, nil
}
