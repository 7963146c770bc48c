package condition

import (
	"fmt"
	"strings"
)

// node is an expression tree element. Evaluation never mutates the binding.
type node interface {
	eval(b Binding) (value, error)
	pos() int
}

type literalNode struct {
	at  int
	val value
}

type variableNode struct {
	at   int
	path string
	get  resolver
}

type listNode struct {
	at    int
	items []node
}

type unaryNode struct {
	at      int
	operand node
}

type binaryNode struct {
	at          int
	op          tokenKind
	left, right node
}

type callNode struct {
	at       int
	receiver node
	method   string
	args     []node
}

func (n *literalNode) pos() int  { return n.at }
func (n *variableNode) pos() int { return n.at }
func (n *listNode) pos() int     { return n.at }
func (n *unaryNode) pos() int    { return n.at }
func (n *binaryNode) pos() int   { return n.at }
func (n *callNode) pos() int     { return n.at }

type evalError struct {
	at  int
	msg string
}

func (e *evalError) Error() string { return e.msg }

func failAt(at int, format string, args ...any) error {
	return &evalError{at: at, msg: fmt.Sprintf(format, args...)}
}

func (n *literalNode) eval(Binding) (value, error) { return n.val, nil }

func (n *variableNode) eval(b Binding) (value, error) {
	v, ok := n.get(b)
	if !ok {
		return value{}, failAt(n.at, "variable %s is not bound in this scope", n.path)
	}
	return v, nil
}

func (n *listNode) eval(b Binding) (value, error) {
	out := make([]value, 0, len(n.items))
	for _, it := range n.items {
		v, err := it.eval(b)
		if err != nil {
			return value{}, err
		}
		out = append(out, v)
	}
	return listValue(out), nil
}

func (n *unaryNode) eval(b Binding) (value, error) {
	v, err := n.operand.eval(b)
	if err != nil {
		return value{}, err
	}
	if v.kind != kindBool {
		return value{}, failAt(n.at, "not expects bool, got %s", v.kind)
	}
	return boolValue(!v.b), nil
}

func (n *binaryNode) eval(b Binding) (value, error) {
	left, err := n.left.eval(b)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case tokAnd, tokOr:
		if left.kind != kindBool {
			return value{}, failAt(n.at, "logical operator expects bool, got %s", left.kind)
		}
		if n.op == tokAnd && !left.b {
			return boolValue(false), nil
		}
		if n.op == tokOr && left.b {
			return boolValue(true), nil
		}
		right, err := n.right.eval(b)
		if err != nil {
			return value{}, err
		}
		if right.kind != kindBool {
			return value{}, failAt(n.right.pos(), "logical operator expects bool, got %s", right.kind)
		}
		return boolValue(right.b), nil
	}

	right, err := n.right.eval(b)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case tokEq:
		return boolValue(left.equal(right)), nil
	case tokNeq:
		return boolValue(!left.equal(right)), nil
	case tokIn:
		if right.kind != kindList {
			return value{}, failAt(n.at, "in expects a list on the right, got %s", right.kind)
		}
		return boolValue(contains(right.list, left)), nil
	case tokLt, tokLte, tokGt, tokGte:
		if left.kind != kindNumber || right.kind != kindNumber {
			return value{}, failAt(n.at, "comparison expects numbers, got %s and %s", left.kind, right.kind)
		}
		cmp := left.n.Cmp(right.n)
		switch n.op {
		case tokLt:
			return boolValue(cmp < 0), nil
		case tokLte:
			return boolValue(cmp <= 0), nil
		case tokGt:
			return boolValue(cmp > 0), nil
		default:
			return boolValue(cmp >= 0), nil
		}
	}
	return value{}, failAt(n.at, "unsupported operator")
}

func (n *callNode) eval(b Binding) (value, error) {
	recv, err := n.receiver.eval(b)
	if err != nil {
		return value{}, err
	}
	args := make([]value, 0, len(n.args))
	for _, a := range n.args {
		v, err := a.eval(b)
		if err != nil {
			return value{}, err
		}
		args = append(args, v)
	}
	switch {
	case recv.kind == kindList && n.method == "contains":
		return boolValue(contains(recv.list, args[0])), nil
	case recv.kind == kindString && args[0].kind == kindString:
		switch n.method {
		case "contains":
			return boolValue(strings.Contains(recv.s, args[0].s)), nil
		case "startsWith":
			return boolValue(strings.HasPrefix(recv.s, args[0].s)), nil
		case "endsWith":
			return boolValue(strings.HasSuffix(recv.s, args[0].s)), nil
		}
	}
	return value{}, failAt(n.at, "method %s is not defined for %s(%s)", n.method, recv.kind, args[0].kind)
}

func contains(list []value, needle value) bool {
	for _, it := range list {
		if it.equal(needle) {
			return true
		}
	}
	return false
}
