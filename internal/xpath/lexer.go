package xpath

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokString
	tokNumber
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(symbol string) bool {
	return t.kind == tokSymbol && t.text == symbol
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

// SyntaxError reports an expression that cannot be parsed
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("xpath syntax error at offset %d: %s in %q", e.Pos, e.Msg, e.Expr)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c) || c == '-' || c == '.'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '\'' || c == '"':
			end := strings.IndexByte(expr[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Expr: expr, Pos: i, Msg: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, text: expr[i+1 : i+1+end], pos: i})
			i += end + 2

		case isDigit(c) || (c == '.' && i+1 < len(expr) && isDigit(expr[i+1])):
			start := i
			for i < len(expr) && isDigit(expr[i]) {
				i++
			}
			if i < len(expr) && expr[i] == '.' {
				i++
				for i < len(expr) && isDigit(expr[i]) {
					i++
				}
			}
			tokens = append(tokens, token{kind: tokNumber, text: expr[start:i], pos: start})

		case isNameStart(c):
			start := i
			for i < len(expr) && isNameChar(expr[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokName, text: expr[start:i], pos: start})

		default:
			two := ""
			if i+1 < len(expr) {
				two = expr[i : i+2]
			}
			switch two {
			case "!=", "<=", ">=", "..", "//":
				tokens = append(tokens, token{kind: tokSymbol, text: two, pos: i})
				i += 2
				continue
			}
			if strings.IndexByte("/[]()@,=<>.*-", c) < 0 {
				return nil, &SyntaxError{Expr: expr, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			tokens = append(tokens, token{kind: tokSymbol, text: string(c), pos: i})
			i++
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(expr)})
	return tokens, nil
}
