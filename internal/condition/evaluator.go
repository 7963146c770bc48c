// Package condition compiles and evaluates promotion eligibility expressions.
//
// Expressions are parsed into a small syntax tree and interpreted against a
// read-only Binding. Evaluation is pure: it never mutates the binding and has
// no side effects, so a compiled Program can be shared between goroutines.
package condition

import (
	"errors"
	"strings"
	"sync"
)

// Program is a compiled eligibility expression.
type Program struct {
	expr string
	root node
}

// Expr returns the source expression.
func (p *Program) Expr() string { return p.expr }

// Eval runs the program against the binding.
func (p *Program) Eval(b Binding) (bool, error) {
	v, err := p.root.eval(b)
	if err != nil {
		var ee *evalError
		if errors.As(err, &ee) {
			return false, &Error{Expr: p.expr, Pos: ee.at, Msg: ee.msg}
		}
		return false, &Error{Expr: p.expr, Pos: -1, Msg: err.Error()}
	}
	if v.kind != kindBool {
		return false, &Error{Expr: p.expr, Pos: -1, Msg: "expression yields " + v.kind.String() + ", expected bool"}
	}
	return v.b, nil
}

// Compile parses expr without evaluating it.
func Compile(expr string) (*Program, error) {
	root, err := parse(expr)
	if err != nil {
		return nil, err
	}
	return &Program{expr: expr, root: root}, nil
}

// Evaluator compiles expressions on first use and caches the result, including
// compile failures, keyed by the trimmed expression text.
type Evaluator struct {
	cache sync.Map
}

type compiled struct {
	prog *Program
	err  error
}

// NewEvaluator returns an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate reports whether expr holds under b. Malformed expressions return
// false together with an error matching ErrCondition.
func (e *Evaluator) Evaluate(expr string, b Binding) (bool, error) {
	prog, err := e.program(expr)
	if err != nil {
		return false, err
	}
	return prog.Eval(b)
}

func (e *Evaluator) program(expr string) (*Program, error) {
	key := strings.TrimSpace(expr)
	if e == nil {
		return Compile(key)
	}
	if cached, ok := e.cache.Load(key); ok {
		c := cached.(compiled)
		return c.prog, c.err
	}
	prog, err := Compile(key)
	e.cache.Store(key, compiled{prog: prog, err: err})
	return prog, err
}
