package model

import "fmt"

// FormatError reports a malformed textual representation, such as a Docker
// image reference that cannot be parsed.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid format %q: %s", e.Value, e.Reason)
}

// ValidationError reports a field value that is out of range or otherwise
// unacceptable at construction time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvariantError reports a structural invariant violation detected while
// constructing a composite entity. An entity whose invariants do not hold is
// never returned to the caller.
type InvariantError struct {
	Entity string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s invariant violated: %s", e.Entity, e.Reason)
}
