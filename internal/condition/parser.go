package condition

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var methods = map[string]int{
	"contains":   1,
	"startsWith": 1,
	"endsWith":   1,
}

type parser struct {
	src  string
	toks []token
	i    int
}

func parse(src string) (node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Expr: src, Pos: -1, Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok)
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	tok := p.toks[p.i]
	if tok.kind != tokEOF {
		p.i++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", what, tok)
	}
	return tok, nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &Error{Expr: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: tokOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		op := p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{at: op.pos, op: tokAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokNot {
		op := p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &unaryNode{at: op.pos, operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte, tokIn:
		op := p.next()
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &binaryNode{at: op.pos, op: op.kind, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokDot {
		p.next()
		name, err := p.expect(tokIdent, "method name")
		if err != nil {
			return nil, err
		}
		call, err := p.parseCall(n, name)
		if err != nil {
			return nil, err
		}
		n = call
	}
	return n, nil
}

func (p *parser) parseCall(receiver node, name token) (node, error) {
	arity, ok := methods[name.text]
	if !ok {
		return nil, p.errorf(name, "unknown function %s", name.text)
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if len(args) != arity {
		return nil, p.errorf(name, "%s expects %d argument(s), got %d", name.text, arity, len(args))
	}
	return &callNode{at: name.pos, receiver: receiver, method: name.text, args: args}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokTrue:
		return &literalNode{at: tok.pos, val: boolValue(true)}, nil
	case tokFalse:
		return &literalNode{at: tok.pos, val: boolValue(false)}, nil
	case tokString:
		return &literalNode{at: tok.pos, val: stringValue(tok.text)}, nil
	case tokNumber:
		n, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %s", tok.text)
		}
		return &literalNode{at: tok.pos, val: numberValue(n)}, nil
	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokLBracket:
		return p.parseList(tok)
	case tokIdent:
		return p.parseVariable(tok)
	}
	return nil, p.errorf(tok, "unexpected %s", tok)
}

func (p *parser) parseList(open token) (node, error) {
	list := &listNode{at: open.pos}
	if p.peek().kind == tokRBracket {
		p.next()
		return list, nil
	}
	for {
		item, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		list.items = append(list.items, item)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return list, nil
}

// parseVariable consumes a dotted path, stopping before a segment that is
// followed by '(' so it can be parsed as a method call.
func (p *parser) parseVariable(first token) (node, error) {
	path := first.text
	for p.peek().kind == tokDot && p.i+2 < len(p.toks) &&
		p.toks[p.i+1].kind == tokIdent && p.toks[p.i+2].kind != tokLParen {
		p.next()
		path += "." + p.next().text
	}
	get, ok := variables[path]
	if !ok {
		return nil, p.errorf(first, "unknown variable %s", path)
	}
	return &variableNode{at: first.pos, path: path, get: get}, nil
}
