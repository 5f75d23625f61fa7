package ir

import "fmt"

// InvariantError reports an internal contract breach inside the builder:
// a malformed node, an unresolved type, a bad slot. It is raised as a panic
// and recovered only at the compile boundary — it is never a user error and
// never part of the normal diagnostic flow.
type InvariantError struct {
	What string // stable classification: type, arity, child, instance, literal, slot
	Msg  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ir invariant (%s): %s", e.What, e.Msg)
}

func invariant(what, format string, args ...any) {
	panic(&InvariantError{What: what, Msg: fmt.Sprintf(format, args...)})
}
