package expr

import (
	"fmt"
	"strings"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenIdentifier
	TokenNumber
	TokenString
	TokenOperator
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenComma
	TokenColon
	TokenDot
)

type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.Value)
}

type Lexer struct {
	input   string
	pos     int
	readPos int
	ch      byte
	// afterDot makes the next word a path segment, so "items.0.id" does
	// not lex "0.5"-style numbers.
	afterDot bool
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekChars(n int) string {
	end := l.pos + n
	if end > len(l.input) {
		end = len(l.input)
	}
	return l.input[l.pos:end]
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	afterDot := l.afterDot
	l.afterDot = false

	tok := Token{Pos: l.pos}
	switch l.ch {
	case 0:
		if l.pos < len(l.input) {
			tok.Type = TokenIllegal
			tok.Value = "\x00"
			l.readChar()
			return tok
		}
		tok.Type = TokenEOF
		return tok
	case '(':
		tok.Type, tok.Value = TokenLeftParen, "("
	case ')':
		tok.Type, tok.Value = TokenRightParen, ")"
	case '[':
		tok.Type, tok.Value = TokenLeftBracket, "["
	case ']':
		tok.Type, tok.Value = TokenRightBracket, "]"
	case '{':
		tok.Type, tok.Value = TokenLeftBrace, "{"
	case '}':
		tok.Type, tok.Value = TokenRightBrace, "}"
	case ',':
		tok.Type, tok.Value = TokenComma, ","
	case ':':
		tok.Type, tok.Value = TokenColon, ":"
	case '.':
		tok.Type, tok.Value = TokenDot, "."
		l.afterDot = true
	case '=', '!', '<', '>':
		if l.peekChar() == '=' {
			tok.Type, tok.Value = TokenOperator, string(l.ch)+"="
			l.readChar()
		} else if l.ch == '=' {
			tok.Type, tok.Value = TokenIllegal, "="
		} else {
			tok.Type, tok.Value = TokenOperator, string(l.ch)
		}
	case '&', '|':
		if l.peekChar() == l.ch {
			tok.Type, tok.Value = TokenOperator, string(l.ch)+string(l.ch)
			l.readChar()
		} else {
			tok.Type, tok.Value = TokenIllegal, string(l.ch)
		}
	case '-':
		tok.Type, tok.Value = TokenOperator, "-"
	case '"', '\'':
		return l.readString()
	default:
		switch {
		case afterDot && isSegmentChar(l.ch):
			tok.Type, tok.Value = TokenIdentifier, l.readWhile(isSegmentChar)
			return tok
		case isLetter(l.ch):
			tok.Type, tok.Value = TokenIdentifier, l.readIdentifier()
			return tok
		case isDigit(l.ch):
			tok.Type, tok.Value = TokenNumber, l.readNumber()
			return tok
		default:
			tok.Type, tok.Value = TokenIllegal, string(l.ch)
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for l.ch != 0 && pred(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readIdentifier reads a name. Dashes are allowed after the first character
// so header names like Content-Type can be written as path segments.
func (l *Lexer) readIdentifier() string {
	return l.readWhile(func(ch byte) bool {
		return isLetter(ch) || isDigit(ch) || ch == '-'
	})
}

func (l *Lexer) readNumber() string {
	start := l.pos
	l.readWhile(isDigit)
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		l.readWhile(isDigit)
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			l.readWhile(isDigit)
		}
	}
	return l.input[start:l.pos]
}

// readString reads '...', "..." or the triple-quoted forms, which may span
// lines and contain unescaped quotes. Single-quoted forms understand the
// usual backslash escapes.
func (l *Lexer) readString() Token {
	start := l.pos
	quote := l.ch

	if triple := strings.Repeat(string(quote), 3); l.peekChars(3) == triple {
		rest := l.input[l.pos+3:]
		end := strings.Index(rest, triple)
		if end < 0 {
			l.skipToEnd()
			return Token{Type: TokenIllegal, Value: "unterminated string", Pos: start}
		}
		for i := 0; i < 3+end+3; i++ {
			l.readChar()
		}
		return Token{Type: TokenString, Value: rest[:end], Pos: start}
	}

	l.readChar()
	var sb strings.Builder
	for l.ch != quote {
		if l.ch == 0 && l.pos >= len(l.input) {
			return Token{Type: TokenIllegal, Value: "unterminated string", Pos: start}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar()
	return Token{Type: TokenString, Value: sb.String(), Pos: start}
}

func (l *Lexer) skipToEnd() {
	for l.pos < len(l.input) {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isSegmentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '-'
}
