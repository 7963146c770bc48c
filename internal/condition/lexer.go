package condition

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
	tokIn
	tokTrue
	tokFalse
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return fmt.Sprintf("%q", t.text)
}

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"in":    tokIn,
	"true":  tokTrue,
	"false": tokFalse,
}

func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case c == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case c == '[':
			out = append(out, token{tokLBracket, "[", i})
			i++
		case c == ']':
			out = append(out, token{tokRBracket, "]", i})
			i++
		case c == ',':
			out = append(out, token{tokComma, ",", i})
			i++
		case c == '.' && !(i+1 < len(src) && isDigit(src[i+1])):
			out = append(out, token{tokDot, ".", i})
			i++
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokEq, "==", i})
				i += 2
				continue
			}
			return nil, &Error{Expr: src, Pos: i, Msg: "unexpected '=' (use '==')"}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokNeq, "!=", i})
				i += 2
				continue
			}
			out = append(out, token{tokNot, "!", i})
			i++
		case c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokLte, "<=", i})
				i += 2
				continue
			}
			out = append(out, token{tokLt, "<", i})
			i++
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				out = append(out, token{tokGte, ">=", i})
				i += 2
				continue
			}
			out = append(out, token{tokGt, ">", i})
			i++
		case c == '&':
			if i+1 < len(src) && src[i+1] == '&' {
				out = append(out, token{tokAnd, "&&", i})
				i += 2
				continue
			}
			return nil, &Error{Expr: src, Pos: i, Msg: "unexpected '&' (use '&&' or 'and')"}
		case c == '|':
			if i+1 < len(src) && src[i+1] == '|' {
				out = append(out, token{tokOr, "||", i})
				i += 2
				continue
			}
			return nil, &Error{Expr: src, Pos: i, Msg: "unexpected '|' (use '||' or 'or')"}
		case c == '\'' || c == '"':
			text, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			out = append(out, token{tokString, text, i})
			i = next
		case isDigit(c) || c == '.' || (c == '-' && i+1 < len(src) && (isDigit(src[i+1]) || src[i+1] == '.') && numberAllowed(out)):
			start := i
			i++
			seenDot := c == '.'
			for i < len(src) && (isDigit(src[i]) || (src[i] == '.' && !seenDot && i+1 < len(src) && isDigit(src[i+1]))) {
				if src[i] == '.' {
					seenDot = true
				}
				i++
			}
			out = append(out, token{tokNumber, src[start:i], start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			word := src[start:i]
			if kind, ok := keywords[word]; ok {
				out = append(out, token{kind, word, start})
				continue
			}
			out = append(out, token{tokIdent, word, start})
		default:
			return nil, &Error{Expr: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	out = append(out, token{tokEOF, "", len(src)})
	return out, nil
}

func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			b.WriteByte(src[i+1])
			i += 2
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &Error{Expr: src, Pos: start, Msg: "unterminated string literal"}
}

// numberAllowed reports whether a leading '-' starts a negative literal rather
// than following an operand.
func numberAllowed(prev []token) bool {
	if len(prev) == 0 {
		return true
	}
	switch prev[len(prev)-1].kind {
	case tokIdent, tokString, tokNumber, tokRParen, tokRBracket, tokTrue, tokFalse:
		return false
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
