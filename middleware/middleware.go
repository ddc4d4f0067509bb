package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clearroute/paygate/facilitator"
	"github.com/clearroute/paygate/logger"
	"github.com/clearroute/paygate/metrics"
	"github.com/clearroute/paygate/pricing"
	"github.com/clearroute/paygate/types"
)

// Gate outcomes, used as metric counter names.
const (
	OutcomeUngated         = "ungated"
	OutcomeNoHeader        = "no_header"
	OutcomeMalformedHeader = "malformed_header"
	OutcomeNoMatch         = "no_match"
	OutcomeVerifyInvalid   = "verified_invalid"
	OutcomeVerifyError     = "verify_error"
	OutcomeUnreachable     = "facilitator_unreachable"
	OutcomeSettled         = "settled"
	OutcomeSettleFailed    = "settle_failed"
)

// Client-facing error strings of the 402 body.
const (
	msgNoHeader        = "no payment header provided"
	msgMalformedHeader = "invalid payment header format"
	msgNoMatch         = "no matching payment requirements found"
	msgUnreachable     = "payment facilitator unreachable"
)

// Gatekeeper enforces the pay-per-call protocol for priced operations. All
// fields are set once at startup; the only state shared between concurrent
// requests is the immutable pricing table, so no synchronization is needed.
type Gatekeeper struct {
	table    *pricing.Table
	payee    string
	fac      facilitator.Facilitator
	log      logger.Logger
	recorder metrics.Recorder
}

// NewGatekeeper wires the protocol core. Nil logger or recorder default to
// no-ops.
func NewGatekeeper(table *pricing.Table, payee string, fac facilitator.Facilitator, log logger.Logger, recorder metrics.Recorder) *Gatekeeper {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Gatekeeper{table: table, payee: payee, fac: fac, log: log, recorder: recorder}
}

// Denial is a terminal protocol answer produced before the protected
// handler runs.
type Denial struct {
	Status int
	Body   types.PaymentRequired
}

// Admission carries a verified payment through to execution and settlement.
type Admission struct {
	Operation    string
	Payload      types.PaymentPayload
	Requirements types.PaymentRequirements
	Verification *types.VerificationResult
}

// Admit runs the pre-execution protocol steps for one request: pricing
// lookup, header decode, requirements matching, and facilitator
// verification. It returns exactly one of:
//   - (nil, nil): the operation is not priced; pass the request through
//     untouched.
//   - (nil, denial): terminal answer, usually 402 with the accepts list.
//   - (admission, nil): payment verified; execute the handler, then settle.
func (g *Gatekeeper) Admit(ctx context.Context, operation, paymentHeader string) (*Admission, *Denial) {
	if !g.table.Priced(operation) {
		g.count(OutcomeUngated, operation)
		return nil, nil
	}

	accepts := g.table.Requirements(operation, g.payee)

	if paymentHeader == "" {
		g.count(OutcomeNoHeader, operation)
		g.log.Info("no payment header provided", map[string]any{"operation": operation})
		return nil, g.deny(http.StatusPaymentRequired, msgNoHeader, accepts)
	}

	payload, err := DecodePayment(paymentHeader)
	if err != nil {
		g.count(OutcomeMalformedHeader, operation)
		g.log.Warn("malformed payment header", map[string]any{
			"operation": operation,
			"error":     err.Error(),
		})
		return nil, g.deny(http.StatusPaymentRequired, msgMalformedHeader, accepts)
	}

	selected, ok := pricing.Match(accepts, payload.Network)
	if !ok {
		g.count(OutcomeNoMatch, operation)
		g.log.Info("no matching payment requirements", map[string]any{
			"operation":       operation,
			"claimed_network": payload.Network,
		})
		return nil, g.deny(http.StatusPaymentRequired, msgNoMatch, accepts)
	}

	result, err := g.fac.Verify(ctx, payload, selected)
	if err != nil {
		if errors.Is(err, types.ErrFacilitatorUnreachable) {
			g.count(OutcomeUnreachable, operation)
			g.log.Error("facilitator unreachable during verification", map[string]any{
				"operation": operation,
				"network":   selected.Network,
				"error":     err.Error(),
			})
			return nil, g.deny(http.StatusServiceUnavailable, msgUnreachable, accepts)
		}
		g.count(OutcomeVerifyError, operation)
		g.log.Warn("payment verification errored", map[string]any{
			"operation": operation,
			"network":   selected.Network,
			"error":     err.Error(),
		})
		return nil, g.deny(http.StatusPaymentRequired, err.Error(), accepts)
	}

	if !result.IsValid {
		g.count(OutcomeVerifyInvalid, operation)
		g.log.Info("payment rejected by facilitator", map[string]any{
			"operation": operation,
			"network":   selected.Network,
			"reason":    result.InvalidReason,
		})
		return nil, g.deny(http.StatusPaymentRequired, result.InvalidReason, accepts)
	}

	g.log.Debug("payment verified", map[string]any{
		"operation": operation,
		"network":   selected.Network,
		"payer":     result.Payer,
		"amount":    types.DisplayAmount(selected.TokenAmount),
	})

	return &Admission{
		Operation:    operation,
		Payload:      payload,
		Requirements: selected,
		Verification: result,
	}, nil
}

// Settle finalizes the admission's payment after the protected handler has
// produced its result. A nil receipt or an unsuccessful one means the
// handler's response must still go out, without the receipt header: the
// completed work is not discarded, and the gap is an operational anomaly
// requiring reconciliation against the facilitator.
func (g *Gatekeeper) Settle(ctx context.Context, adm *Admission) *types.SettlementReceipt {
	receipt, err := g.fac.Settle(ctx, adm.Payload, adm.Requirements)
	if err == nil && receipt.Success {
		g.count(OutcomeSettled, adm.Operation)
		g.log.Info("payment settled", map[string]any{
			"operation":   adm.Operation,
			"network":     adm.Requirements.Network,
			"transaction": receipt.Transaction,
		})
		return receipt
	}

	fields := map[string]any{
		"operation": adm.Operation,
		"network":   adm.Requirements.Network,
		"payer":     adm.Verification.Payer,
		"amount":    types.DisplayAmount(adm.Requirements.TokenAmount),
	}
	if err != nil {
		fields["error"] = err.Error()
	} else {
		fields["reason"] = receipt.ErrorReason
	}
	g.count(OutcomeSettleFailed, adm.Operation)
	g.log.Error("settlement failed after handler execution, reconciliation required", fields)
	return nil
}

// Handler wraps next with the payment gate for the given operation. The
// protocol ordering is strict: verification completes before the handler
// runs, and settlement runs only after the handler has produced a result.
// The handler executes at most once per request and its response is
// forwarded unchanged apart from the receipt header.
func (g *Gatekeeper) Handler(operation string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adm, denial := g.Admit(r.Context(), operation, r.Header.Get(PaymentHeader))
		if denial != nil {
			writeDenial(w, denial)
			return
		}
		if adm == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithVerification(r.Context(), adm.Verification)
		captured := newCaptureWriter()
		next.ServeHTTP(captured, r.WithContext(ctx))

		if receipt := g.Settle(r.Context(), adm); receipt != nil {
			if encoded, err := EncodeReceipt(*receipt); err == nil {
				captured.Header().Set(PaymentResponseHeader, encoded)
			} else {
				g.log.Error("encode settlement receipt", map[string]any{"error": err.Error()})
			}
		}

		captured.flushTo(w)
	})
}

func (g *Gatekeeper) deny(status int, message string, accepts []types.PaymentRequirements) *Denial {
	return &Denial{
		Status: status,
		Body: types.PaymentRequired{
			Error:           message,
			Accepts:         accepts,
			ProtocolVersion: types.ProtocolVersion,
		},
	}
}

func (g *Gatekeeper) count(outcome, operation string) {
	g.recorder.IncCounter(outcome, map[string]string{"operation": operation})
}

func writeDenial(w http.ResponseWriter, denial *Denial) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(denial.Status)
	_ = json.NewEncoder(w).Encode(denial.Body)
}

type contextKey struct{}

// WithVerification stores the facilitator's verification result for the
// protected handler.
func WithVerification(ctx context.Context, result *types.VerificationResult) context.Context {
	return context.WithValue(ctx, contextKey{}, result)
}

// GetVerification returns the verification result for a gated request, or
// nil for ungated ones.
func GetVerification(ctx context.Context) *types.VerificationResult {
	result, _ := ctx.Value(contextKey{}).(*types.VerificationResult)
	return result
}
