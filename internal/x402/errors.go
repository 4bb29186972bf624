package x402

import "fmt"

// ProbeErrorKind classifies preflight probe failures. Timeouts and network
// failures are distinct from parse failures so callers can tell an
// unreachable endpoint from one that answered with garbage.
type ProbeErrorKind string

const (
	ProbeTimeout          ProbeErrorKind = "timeout"
	ProbeNetwork          ProbeErrorKind = "network-error"
	ProbeUnexpectedStatus ProbeErrorKind = "unexpected-status"
	ProbeParse            ProbeErrorKind = "parse-error"
)

// ProbeError is returned when a preflight probe does not yield a usable quote.
type ProbeError struct {
	Kind     ProbeErrorKind
	Endpoint string
	Status   int
	Reason   string
	Err      error
}

func (e *ProbeError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("probe %s failed (%s, status %d): %s", e.Endpoint, e.Kind, e.Status, e.Reason)
	}
	return fmt.Sprintf("probe %s failed (%s): %s", e.Endpoint, e.Kind, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ProxyErrorKind classifies payment proxy failures.
type ProxyErrorKind string

const (
	ProxyTimeout       ProxyErrorKind = "timeout"
	ProxyUpstream      ProxyErrorKind = "upstream-error"
	ProxyMalformedCall ProxyErrorKind = "malformed-call"
)

// ProxyError is returned when a forwarded request could not complete. The
// status class separates connectivity faults (502) from caller or programming
// faults (500) so handlers surface the right failure class.
type ProxyError struct {
	Kind   ProxyErrorKind
	Target string
	Err    error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy to %s failed (%s): %v", e.Target, e.Kind, e.Err)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// StatusClass returns the HTTP status that should represent this failure:
// 502 for connectivity problems, 500 for everything else.
func (e *ProxyError) StatusClass() int {
	switch e.Kind {
	case ProxyTimeout, ProxyUpstream:
		return 502
	default:
		return 500
	}
}
