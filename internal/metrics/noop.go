package metrics

import "time"

// NoopRecorder discards all observations. Used in tests and when metrics are
// disabled.
type NoopRecorder struct{}

func NewNoopRecorder() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncCounter(string, map[string]string) {}

func (n *NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
