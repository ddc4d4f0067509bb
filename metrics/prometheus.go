package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers gate metrics on the default registry:
// a counter of gate decisions by operation and a latency histogram for
// facilitator calls by network.
func NewPrometheusRecorder() Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paygate",
			Name:      "requests_total",
			Help:      "Gate decisions per operation and outcome",
		},
		[]string{"outcome", "operation"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paygate",
			Name:      "facilitator_latency_seconds",
			Help:      "Facilitator verify/settle call latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"call", "network"},
	)

	prometheus.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"outcome":   name,
		"operation": labels["operation"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"call":    name,
		"network": labels["network"],
	}).Observe(d.Seconds())
}
