package condition

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// node is the closed set of expression tree nodes; only this package
// implements it.
type node interface {
	eval(Attributes) Result
	String() string
}

type operand interface {
	resolve(Attributes) (Value, bool)
	String() string
}

type attrRef struct {
	name string
	kind Kind
}

func (a attrRef) resolve(attrs Attributes) (Value, bool) {
	v, ok := attrs[a.name]
	if !ok || v.kind != a.kind {
		return Value{}, false
	}
	return v, true
}

func (a attrRef) String() string { return a.name }

type literal struct {
	value Value
}

func (l literal) resolve(Attributes) (Value, bool) { return l.value, true }

func (l literal) String() string { return l.value.String() }

type orNode struct{ left, right node }

type andNode struct{ left, right node }

type notNode struct{ inner node }

type truthNode struct{ operand operand }

type compareNode struct {
	op          Op
	left, right operand
}

func (n orNode) String() string {
	return fmt.Sprintf("(%s or %s)", n.left, n.right)
}

func (n andNode) String() string {
	return fmt.Sprintf("(%s and %s)", n.left, n.right)
}

func (n notNode) String() string {
	return "not " + n.inner.String()
}

func (n truthNode) String() string {
	return n.operand.String()
}

func (n compareNode) String() string {
	return strings.Join([]string{n.left.String(), string(n.op), n.right.String()}, " ")
}
