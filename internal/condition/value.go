package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCondition is matched by every error produced while compiling or evaluating
// an eligibility expression.
var ErrCondition = errors.New("condition error")

// Error describes a malformed or unsupported eligibility expression.
type Error struct {
	Expr string
	Pos  int
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("condition: %s at offset %d in %q", e.Msg, e.Pos, e.Expr)
	}
	return fmt.Sprintf("condition: %s in %q", e.Msg, e.Expr)
}

// Is lets errors.Is match ErrCondition.
func (e *Error) Is(target error) bool { return target == ErrCondition }

type kind int

const (
	kindBool kind = iota
	kindString
	kindNumber
	kindList
)

func (k kind) String() string {
	switch k {
	case kindBool:
		return "bool"
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindList:
		return "list"
	default:
		return "unknown"
	}
}

// value is the dynamic result of evaluating an AST node.
type value struct {
	kind kind
	b    bool
	s    string
	n    decimal.Decimal
	list []value
}

func boolValue(b bool) value { return value{kind: kindBool, b: b} }
func stringValue(s string) value { return value{kind: kindString, s: s} }
func numberValue(n decimal.Decimal) value { return value{kind: kindNumber, n: n} }
func listValue(items []value) value { return value{kind: kindList, list: items} }

func stringList(items []string) value {
	out := make([]value, 0, len(items))
	for _, it := range items {
		out = append(out, stringValue(it))
	}
	return listValue(out)
}

func (v value) equal(o value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindBool:
		return v.b == o.b
	case kindString:
		return v.s == o.s
	case kindNumber:
		return v.n.Equal(o.n)
	case kindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v value) String() string {
	switch v.kind {
	case kindBool:
		if v.b {
			return "true"
		}
		return "false"
	case kindString:
		return fmt.Sprintf("%q", v.s)
	case kindNumber:
		return v.n.String()
	case kindList:
		parts := make([]string, 0, len(v.list))
		for _, it := range v.list {
			parts = append(parts, it.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}
