package facilitator

import "fmt"

// ErrorKind classifies facilitator call failures.
type ErrorKind string

const (
	ErrAuth         ErrorKind = "auth"
	ErrVerifyFailed ErrorKind = "verify-failed"
	ErrSettleFailed ErrorKind = "settle-failed"
	ErrUnreachable  ErrorKind = "unreachable"
)

// Error is returned when a facilitator operation fails. The message never
// carries credential material; it is safe to surface to callers.
type Error struct {
	Kind    ErrorKind
	Network string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("facilitator %s on %s: %s", e.Kind, e.Network, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
