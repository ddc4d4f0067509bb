// Package metrics defines the recording contract for gate instrumentation.
// Counter names are gate outcomes; latency names are facilitator calls.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
