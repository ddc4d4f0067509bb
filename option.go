package paygate

import (
	"github.com/clearroute/paygate/facilitator"
	"github.com/clearroute/paygate/logger"
	"github.com/clearroute/paygate/metrics"
)

type Option func(*Gate)

// WithLogger sets the structured logger. Defaults to no logging.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

// WithMetrics sets the metrics recorder. Defaults to no recording.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gate) {
		g.recorder = r
	}
}

// WithFacilitator substitutes the facilitator implementation, bypassing the
// HTTP client. Intended for tests and custom transports.
func WithFacilitator(f facilitator.Facilitator) Option {
	return func(g *Gate) {
		g.fac = f
	}
}

// WithFacilitatorOptions passes extra options (timeouts, retry policy,
// circuit breaker) to the default HTTP facilitator client. Ignored when
// WithFacilitator is used.
func WithFacilitatorOptions(opts ...facilitator.ClientOption) Option {
	return func(g *Gate) {
		g.clientOpts = append(g.clientOpts, opts...)
	}
}
