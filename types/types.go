// Package types defines the value types of the x402 request-side protocol:
// pricing rows, wire-level payment requirements and payloads, facilitator
// results, and the error taxonomy shared by the gate packages.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProtocolVersion is the x402 protocol version spoken on the wire.
const ProtocolVersion = 1

// PaymentOption is one acceptable-payment row for an operation, as declared
// in the pricing source. Options are immutable once loaded.
type PaymentOption struct {
	// ChainID identifies the blockchain the payment must be made on.
	ChainID int64 `json:"chain_id" yaml:"chain_id" validate:"required,gt=0"`

	// TokenAddress is the token contract address on that chain.
	TokenAddress string `json:"token_address" yaml:"token_address" validate:"required"`

	// TokenAmount is the price in atomic token units.
	TokenAmount uint64 `json:"token_amount" yaml:"token_amount"`
}

// PaymentRequirements is the wire-level descriptor derived at request time
// from a PaymentOption: the option's fields plus the resolved network name,
// the operator's payee address, and the protocol version. Entries appear in
// the "accepts" array of 402 responses and in facilitator requests.
type PaymentRequirements struct {
	// Network is the resolved network name for the option's chain id.
	// Always a pure function of ChainID, never mutated per request.
	Network string `json:"network"`

	// ChainID is the numeric chain identifier the network was resolved from.
	ChainID int64 `json:"chain_id"`

	// TokenAddress is the token contract address.
	TokenAddress string `json:"token_address"`

	// TokenAmount is the price in atomic token units.
	TokenAmount uint64 `json:"token_amount"`

	// PayeeAddress is the operator address the payment must be sent to.
	PayeeAddress string `json:"payee_address"`
}

// PaymentPayload is the decoded, untrusted payment proof supplied by the
// client in the X-PAYMENT header (base64-encoded JSON). Beyond the claimed
// network the contents are opaque to the gate and are forwarded to the
// facilitator verbatim.
type PaymentPayload struct {
	// Version is the x402 protocol version claimed by the client.
	Version int `json:"x402_version,omitempty"`

	// Network is the network the client claims to have paid on. Used to
	// select a matching PaymentRequirements entry; trusted for nothing else.
	Network string `json:"network"`

	// Evidence is the facilitator-specific payment proof. Opaque here.
	Evidence json.RawMessage `json:"evidence,omitempty"`
}

// VerificationResult is the facilitator's answer to a verify call.
type VerificationResult struct {
	IsValid       bool   `json:"is_valid"`
	InvalidReason string `json:"invalid_reason,omitempty"`

	// Payer is the paying address, when the facilitator reports it.
	Payer string `json:"payer,omitempty"`
}

// SettlementReceipt is the facilitator's settlement record. It is forwarded
// to the caller in the X-PAYMENT-RESPONSE header for audit; the gate does not
// interpret it beyond the Success flag.
type SettlementReceipt struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`

	// Proof is an opaque, facilitator-defined proof blob.
	Proof json.RawMessage `json:"proof,omitempty"`
}

// PaymentRequired is the JSON body of every 402 response.
type PaymentRequired struct {
	Error           string                `json:"error"`
	Accepts         []PaymentRequirements `json:"accepts"`
	ProtocolVersion int                   `json:"x402_version"`
}

// Sentinel errors for the per-request protocol.
var (
	// ErrMalformedHeader indicates the X-PAYMENT header is not decodable
	// base64-encoded JSON.
	ErrMalformedHeader = errors.New("paygate: malformed payment header")

	// ErrNoMatchingRequirements indicates the payload's claimed network
	// matches none of the operation's configured options.
	ErrNoMatchingRequirements = errors.New("paygate: no matching payment requirements")

	// ErrFacilitatorUnreachable indicates a transport-level failure talking
	// to the facilitator service.
	ErrFacilitatorUnreachable = errors.New("paygate: facilitator unreachable")

	// ErrVerificationFailed indicates the facilitator reported or caused a
	// verification failure.
	ErrVerificationFailed = errors.New("paygate: payment verification failed")

	// ErrSettlementFailed indicates the facilitator reported or caused a
	// settlement failure.
	ErrSettlementFailed = errors.New("paygate: payment settlement failed")
)

// ConfigError is a fatal startup-time configuration error: a malformed
// pricing source, or mode "enforced" with nothing to enforce. A process
// receiving one must refuse to start.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paygate config: %s: %v", e.Message, e.Err)
	}
	return "paygate config: " + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err as a fatal configuration error.
func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{Message: message, Err: err}
}
