package selector

import "fmt"

// UnresolvedError reports a selector or property path that could not be
// resolved to a usable value during evaluation. Conditions never mutate
// state, so this is the only way evaluation fails besides a type error.
type UnresolvedError struct {
	Expr   string
	Reason string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved selector %q: %s", e.Expr, e.Reason)
}

// TypeError reports operands of incompatible kinds reaching an operator.
type TypeError struct {
	Op     string
	Detail string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error in %q: %s", e.Op, e.Detail)
}
