package metrics

import "time"

// Recorder collects operational counters and latencies for payment-protocol
// operations. Implementations must be safe for concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
