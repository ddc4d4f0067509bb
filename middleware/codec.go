// Package middleware implements the request-gating core of the x402
// protocol: header codec, per-request state machine, and the HTTP middleware
// that enforces verify → execute → settle ordering.
package middleware

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/clearroute/paygate/types"
)

// Protocol headers.
const (
	// PaymentHeader carries the client's payment proof: base64-encoded JSON.
	PaymentHeader = "X-PAYMENT"

	// PaymentResponseHeader carries the settlement receipt back to the
	// caller as plain JSON.
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"
)

// DecodePayment decodes an X-PAYMENT header value into a PaymentPayload.
// Anything that is not base64-wrapped JSON is a malformed header.
func DecodePayment(header string) (types.PaymentPayload, error) {
	var payload types.PaymentPayload

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return payload, fmt.Errorf("%w: %v", types.ErrMalformedHeader, err)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", types.ErrMalformedHeader, err)
	}
	return payload, nil
}

// EncodePayment encodes a payload for the X-PAYMENT header. Provided for
// clients and tests; the gate itself only decodes.
func EncodePayment(payload types.PaymentPayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeReceipt serializes a settlement receipt for the X-PAYMENT-RESPONSE
// header. Unlike the inbound header this is plain JSON, not base64.
func EncodeReceipt(receipt types.SettlementReceipt) (string, error) {
	raw, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("marshal settlement receipt: %w", err)
	}
	return string(raw), nil
}

// DecodeReceipt parses an X-PAYMENT-RESPONSE header value.
func DecodeReceipt(header string) (types.SettlementReceipt, error) {
	var receipt types.SettlementReceipt
	if err := json.Unmarshal([]byte(header), &receipt); err != nil {
		return receipt, fmt.Errorf("unmarshal settlement receipt: %w", err)
	}
	return receipt, nil
}
