// Package paygate gates priced HTTP operations behind the x402 pay-per-call
// protocol. A Gate is built once at startup from a declarative pricing
// source; per request it requires a verifiable payment proof, verifies it
// with a remote facilitator, runs the protected handler, settles the payment
// and attaches the settlement receipt to the response.
package paygate

import (
	"net/http"

	"github.com/clearroute/paygate/facilitator"
	"github.com/clearroute/paygate/logger"
	"github.com/clearroute/paygate/metrics"
	"github.com/clearroute/paygate/middleware"
	"github.com/clearroute/paygate/pricing"
	"github.com/clearroute/paygate/types"
)

// Config is the explicit startup configuration of a Gate. It is read once by
// New and never consulted again; there is no global state to reconfigure.
type Config struct {
	// Mode is the two-valued gate switch. Empty means disabled.
	Mode pricing.Mode

	// PricingFile is the path of the YAML pricing source. A missing file
	// yields an empty table; whether that is fatal depends on Mode.
	PricingFile string

	// PayTo is the operator address payments must be sent to.
	PayTo string

	// FacilitatorURL is the base URL of the facilitator service.
	FacilitatorURL string

	// FacilitatorAuth is an optional static Authorization header value for
	// facilitator calls.
	FacilitatorAuth string
}

// Gate is the composition surface of the payment gate. Construct one at
// process startup, wrap each operation's handler, then call Validate before
// accepting connections. A Gate is immutable after construction and safe for
// concurrent use.
type Gate struct {
	config   Config
	table    *pricing.Table
	registry *pricing.Registry
	keeper   *middleware.Gatekeeper
	fac      facilitator.Facilitator
	log      logger.Logger
	recorder metrics.Recorder

	clientOpts []facilitator.ClientOption
}

// New loads and validates the pricing source and wires the protocol core.
// Configuration problems surface as *types.ConfigError; a process receiving
// one must refuse to start.
func New(config Config, opts ...Option) (*Gate, error) {
	if config.Mode == "" {
		config.Mode = pricing.ModeDisabled
	}
	if config.Mode != pricing.ModeDisabled && config.Mode != pricing.ModeEnforced {
		return nil, types.NewConfigError("unknown pricing mode "+string(config.Mode), nil)
	}

	table, err := pricing.Load(config.PricingFile)
	if err != nil {
		return nil, err
	}

	g := &Gate{
		config:   config,
		table:    table,
		registry: pricing.NewRegistry(),
		log:      logger.NoopLogger{},
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}

	if config.Mode == pricing.ModeEnforced {
		if err := pricing.ValidatePayee(config.PayTo); err != nil {
			return nil, err
		}
		if g.fac == nil && config.FacilitatorURL == "" {
			return nil, types.NewConfigError("facilitator URL is required in enforced mode", nil)
		}
	}

	if g.fac == nil {
		clientOpts := append([]facilitator.ClientOption{
			facilitator.WithAuthorization(config.FacilitatorAuth),
			facilitator.WithMetrics(g.recorder),
		}, g.clientOpts...)
		g.fac = facilitator.NewClient(config.FacilitatorURL, clientOpts...)
	}

	// In disabled mode the gatekeeper sees an empty table, so every request
	// is ungated and passes through; the loaded table is still kept for
	// Validate to report inactive pricing.
	keeperTable := table
	if config.Mode != pricing.ModeEnforced {
		keeperTable = pricing.EmptyTable()
	}
	g.keeper = middleware.NewGatekeeper(keeperTable, config.PayTo, g.fac, g.log, g.recorder)

	return g, nil
}

// Wrap registers the operation and gates next behind it. For operations
// absent from the pricing table, and in disabled mode, the returned handler
// behaves identically to next.
func (g *Gate) Wrap(operation string, next http.Handler) http.Handler {
	g.registry.Add(operation)
	if g.config.Mode != pricing.ModeEnforced {
		return next
	}
	return g.keeper.Handler(operation, next)
}

// WrapFunc is Wrap for handler functions.
func (g *Gate) WrapFunc(operation string, next http.HandlerFunc) http.Handler {
	return g.Wrap(operation, next)
}

// RegisterOperation records an operation wired through an adapter (for
// example the gin package) instead of Wrap, so Validate can still
// cross-check it.
func (g *Gate) RegisterOperation(operation string) {
	g.registry.Add(operation)
}

// Gatekeeper exposes the protocol core for adapter packages.
func (g *Gate) Gatekeeper() *middleware.Gatekeeper {
	return g.keeper
}

// Validate cross-checks pricing against the registered operations. Call it
// once, after all handlers are wired and before accepting connections; a
// returned error is fatal.
func (g *Gate) Validate() error {
	return pricing.Validate(g.table, g.registry, g.config.Mode, g.log)
}

// Table returns the loaded pricing table.
func (g *Gate) Table() *pricing.Table {
	return g.table
}
