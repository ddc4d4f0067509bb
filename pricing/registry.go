package pricing

import (
	"sort"

	"github.com/clearroute/paygate/logger"
	"github.com/clearroute/paygate/types"
)

// Mode is the global switch determining whether the gate is enforced.
type Mode string

const (
	// ModeDisabled turns the gate off entirely; all operations pass through.
	ModeDisabled Mode = "disabled"

	// ModeEnforced gates every priced operation.
	ModeEnforced Mode = "enforced"
)

// ParseMode parses the two-valued mode flag from process configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDisabled, ModeEnforced:
		return Mode(s), nil
	case "":
		return ModeDisabled, nil
	default:
		return "", types.NewConfigError("pricing mode must be \"disabled\" or \"enforced\", got "+s, nil)
	}
}

// Registry records the operation identifiers actually exposed by the
// application. The composition root fills it while wiring handlers; it is
// then checked once against the pricing table and never consulted again.
type Registry struct {
	operations map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{operations: make(map[string]struct{})}
}

// Add records an exposed operation identifier. Adding twice is harmless.
func (r *Registry) Add(operation string) {
	r.operations[operation] = struct{}{}
}

// Contains reports whether the operation was registered.
func (r *Registry) Contains(operation string) bool {
	_, ok := r.operations[operation]
	return ok
}

// Operations returns the registered identifiers, sorted.
func (r *Registry) Operations() []string {
	ids := make([]string, 0, len(r.operations))
	for id := range r.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate cross-checks the pricing table against the registered operations.
// Run once at startup, never at request time. Pricing configuration and
// operation registration drift independently over time; without this check
// a typo silently demonetizes an endpoint, or an "enforced" server silently
// charges nothing.
//
// Rules:
//   - mode "enforced" with an empty table is a fatal ConfigError; running
//     enforcement with nothing to enforce is a configuration bug.
//   - operations priced but never registered are logged as likely typos
//     (warning, non-fatal).
//   - operations registered but unpriced are logged at debug severity as
//     intentionally free endpoints.
//   - mode "disabled" with a non-empty table warns, naming every configured
//     but inactive operation.
func Validate(table *Table, registry *Registry, mode Mode, log logger.Logger) error {
	if mode == ModeEnforced && table.IsEmpty() {
		return types.NewConfigError("mode is \"enforced\" but the pricing table is empty", nil)
	}

	if mode == ModeDisabled && !table.IsEmpty() {
		log.Warn("pricing configured but gate is disabled", map[string]any{
			"inactive_operations": table.Operations(),
		})
	}

	for _, operation := range table.Operations() {
		if !registry.Contains(operation) {
			log.Warn("priced operation is not registered, likely a typo", map[string]any{
				"operation": operation,
			})
		}
	}

	for _, operation := range registry.Operations() {
		if !table.Priced(operation) {
			log.Debug("registered operation has no pricing, serving it free", map[string]any{
				"operation": operation,
			})
		}
	}

	return nil
}
