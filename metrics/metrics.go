// Package metrics records per-operation counters, latencies and chain gauges
// for currency adapters.
package metrics

import "time"

// Recorder receives adapter telemetry. Every label map carries at least "currency".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)

	// SetGauge reports the latest observed value of name, such as chain height.
	SetGauge(name string, value float64, labels map[string]string)
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
