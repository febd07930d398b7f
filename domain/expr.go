package domain

import "fmt"

// Expr is a node of a parsed domain.
type Expr interface {
	expr()
	// String returns the node in prefix form, e.g. |(&(a = 1, b = 2), c = 3).
	String() string
}

// And matches when both operands match.
type And struct{ L, R Expr }

// Or matches when either operand matches.
type Or struct{ L, R Expr }

// Not matches when its operand does not match.
type Not struct{ X Expr }

// Cmp is a comparison leaf.
type Cmp struct{ Term }

func (*And) expr() {}
func (*Or) expr()  {}
func (*Not) expr() {}
func (*Cmp) expr() {}

func (e *And) String() string { return fmt.Sprintf("&(%s, %s)", e.L, e.R) }
func (e *Or) String() string  { return fmt.Sprintf("|(%s, %s)", e.L, e.R) }
func (e *Not) String() string { return fmt.Sprintf("!(%s)", e.X) }
func (e *Cmp) String() string { return fmt.Sprintf("%s %s %v", e.Field, e.Operator, e.Value) }

// binary reports whether e is an And or Or node.
func binary(e Expr) bool {
	switch e.(type) {
	case *And, *Or:
		return true
	}
	return false
}

// Walk calls fn for every node of e in depth-first order, stopping early
// when fn returns false.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch e := e.(type) {
	case *And:
		Walk(e.L, fn)
		Walk(e.R, fn)
	case *Or:
		Walk(e.L, fn)
		Walk(e.R, fn)
	case *Not:
		Walk(e.X, fn)
	}
}

// Fields returns the field names compared in e, in order of appearance.
func Fields(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(e, func(e Expr) bool {
		if c, ok := e.(*Cmp); ok && !seen[c.Field] {
			seen[c.Field] = true
			names = append(names, c.Field)
		}
		return true
	})
	return names
}
