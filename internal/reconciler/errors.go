package reconciler

import "fmt"

// ErrorKind classifies reconciliation failures. Store-write failures are
// kept distinct from business-rule failures so callers can tell a transient
// infrastructure problem from a permanent data problem.
type ErrorKind string

const (
	ErrSourceUnreachable ErrorKind = "source-unreachable"
	ErrParse             ErrorKind = "parse-error"
	ErrStoreWrite        ErrorKind = "store-write-failure"
	ErrNoEndpoint        ErrorKind = "no-endpoint"
)

// Error is a reconciliation failure scoped to a source or a single entry.
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconcile %s from %s: %v", e.Kind, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
