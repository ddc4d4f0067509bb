// Package facilitator defines the contract with the external facilitator
// service and its HTTP implementation. The facilitator is the trusted party
// that validates and settles payment proofs; the gate reaches it only
// through Verify and Settle. Replay protection of payment payloads is the
// facilitator's responsibility, not the gate's.
package facilitator

import (
	"context"

	"github.com/clearroute/paygate/types"
)

// Facilitator verifies and settles payment proofs on behalf of the operator.
type Facilitator interface {
	// Verify checks a payment proof against the selected requirements
	// without moving funds.
	Verify(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.VerificationResult, error)

	// Settle finalizes a verified payment so funds move, producing a receipt.
	Settle(ctx context.Context, payload types.PaymentPayload, requirements types.PaymentRequirements) (*types.SettlementReceipt, error)
}

// VerifyRequest is the body posted to the facilitator's /verify endpoint.
type VerifyRequest struct {
	ProtocolVersion     int                       `json:"x402_version"`
	PaymentPayload      types.PaymentPayload      `json:"payment_payload"`
	PaymentRequirements types.PaymentRequirements `json:"payment_requirements"`
}

// SettleRequest is the body posted to the facilitator's /settle endpoint.
type SettleRequest struct {
	ProtocolVersion     int                       `json:"x402_version"`
	PaymentPayload      types.PaymentPayload      `json:"payment_payload"`
	PaymentRequirements types.PaymentRequirements `json:"payment_requirements"`
}
