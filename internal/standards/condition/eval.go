package condition

import (
	"fmt"
	"strings"
)

// Result is the three-valued outcome of evaluating a condition.
type Result int

const (
	Unresolved Result = iota
	False
	True
)

func (r Result) String() string {
	switch r {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unresolved"
	}
}

func fromBool(b bool) Result {
	if b {
		return True
	}
	return False
}

// Evaluate runs the condition against attrs. A missing attribute or a type
// mismatch makes the affected sub-expression Unresolved; connectives follow
// Kleene logic so a decisive operand still settles the result.
func (c *Condition) Evaluate(attrs Attributes) Result {
	if c == nil || c.root == nil {
		return Unresolved
	}
	return c.root.eval(attrs)
}

func (n orNode) eval(attrs Attributes) Result {
	l := n.left.eval(attrs)
	if l == True {
		return True
	}
	r := n.right.eval(attrs)
	switch {
	case r == True:
		return True
	case l == False && r == False:
		return False
	default:
		return Unresolved
	}
}

func (n andNode) eval(attrs Attributes) Result {
	l := n.left.eval(attrs)
	if l == False {
		return False
	}
	r := n.right.eval(attrs)
	switch {
	case r == False:
		return False
	case l == True && r == True:
		return True
	default:
		return Unresolved
	}
}

func (n notNode) eval(attrs Attributes) Result {
	switch n.inner.eval(attrs) {
	case True:
		return False
	case False:
		return True
	default:
		return Unresolved
	}
}

func (n truthNode) eval(attrs Attributes) Result {
	v, ok := n.operand.resolve(attrs)
	if !ok || v.kind != KindBool {
		return Unresolved
	}
	return fromBool(v.b)
}

func (n compareNode) eval(attrs Attributes) Result {
	l, lok := n.left.resolve(attrs)
	r, rok := n.right.resolve(attrs)
	if !lok || !rok || l.kind != r.kind {
		return Unresolved
	}
	switch n.op {
	case OpEq:
		return fromBool(l == r)
	case OpNe:
		return fromBool(l != r)
	}
	if l.kind != KindInt {
		return Unresolved
	}
	switch n.op {
	case OpGt:
		return fromBool(l.i > r.i)
	case OpGe:
		return fromBool(l.i >= r.i)
	case OpLt:
		return fromBool(l.i < r.i)
	case OpLe:
		return fromBool(l.i <= r.i)
	default:
		return Unresolved
	}
}

// UnresolvedPolicy decides what an Unresolved condition means for compliance.
type UnresolvedPolicy string

const (
	// PolicyCompliant treats an unresolvable condition as "rule not violated".
	PolicyCompliant UnresolvedPolicy = "compliant"
	// PolicyViolation flags unresolvable conditions for manual review.
	PolicyViolation UnresolvedPolicy = "violation"
)

// ParsePolicy normalizes a policy name. Empty input yields PolicyCompliant.
func ParsePolicy(raw string) (UnresolvedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(PolicyCompliant):
		return PolicyCompliant, nil
	case string(PolicyViolation):
		return PolicyViolation, nil
	default:
		return "", fmt.Errorf("unknown unresolved policy %q", raw)
	}
}

// Evaluator maps condition results onto a violation verdict.
type Evaluator struct {
	Policy UnresolvedPolicy
}

// Violated reports whether the rule guarded by c is violated by attrs.
// A true condition is a violation; Unresolved follows the policy.
func (e Evaluator) Violated(c *Condition, attrs Attributes) bool {
	switch c.Evaluate(attrs) {
	case True:
		return true
	case False:
		return false
	default:
		return e.Policy == PolicyViolation
	}
}
