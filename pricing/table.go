// Package pricing implements the declarative operation→price configuration:
// loading and validating the pricing source, deriving wire requirements, and
// the startup-time consistency check between configured and registered
// operations.
package pricing

import (
	"sort"

	"github.com/clearroute/paygate/types"
)

// Table maps operation identifiers to their ordered acceptable-payment
// options. A Table is built once at startup and never mutated afterwards, so
// concurrent reads need no synchronization. Option order is the declaration
// order of the source and drives tie-breaking when two options resolve to the
// same network.
type Table struct {
	operations map[string][]types.PaymentOption
}

// NewTable builds a Table from an operation→options mapping. The slices are
// copied so later mutation of the argument cannot leak into the table.
func NewTable(operations map[string][]types.PaymentOption) *Table {
	ops := make(map[string][]types.PaymentOption, len(operations))
	for id, options := range operations {
		ops[id] = append([]types.PaymentOption(nil), options...)
	}
	return &Table{operations: ops}
}

// EmptyTable returns a table pricing nothing. Every operation is ungated.
func EmptyTable() *Table {
	return &Table{operations: map[string][]types.PaymentOption{}}
}

// IsEmpty reports whether the table prices no operations at all.
func (t *Table) IsEmpty() bool {
	return len(t.operations) == 0
}

// Len returns the number of priced operations.
func (t *Table) Len() int {
	return len(t.operations)
}

// Options returns the configured options for an operation in declaration
// order, or nil if the operation is not priced.
func (t *Table) Options(operation string) []types.PaymentOption {
	return t.operations[operation]
}

// Priced reports whether the operation has at least one configured option.
func (t *Table) Priced(operation string) bool {
	return len(t.operations[operation]) > 0
}

// Operations returns the priced operation identifiers, sorted for stable
// logging and error output.
func (t *Table) Operations() []string {
	ids := make([]string, 0, len(t.operations))
	for id := range t.operations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Requirements derives the wire-level requirements for an operation, one per
// configured option, preserving declaration order. The payee address is the
// operator's receiving address. Returns nil for unpriced operations.
//
// Chain ids are validated against the network mapping at load time, so the
// per-option resolution cannot fail here; an option with an unknown chain is
// possible only in a hand-assembled table and is skipped.
func (t *Table) Requirements(operation, payee string) []types.PaymentRequirements {
	options := t.operations[operation]
	if len(options) == 0 {
		return nil
	}
	reqs := make([]types.PaymentRequirements, 0, len(options))
	for _, option := range options {
		req, err := option.Requirements(payee)
		if err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// Match selects the requirements entry whose network equals the payload's
// claimed network. When several options resolve to the same network the
// first declared one wins; the choice is config-order-driven and identical
// on every run with the same source.
func Match(reqs []types.PaymentRequirements, network string) (types.PaymentRequirements, bool) {
	for _, req := range reqs {
		if req.Network == network {
			return req, true
		}
	}
	return types.PaymentRequirements{}, false
}
