package facilitator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clearroute/paygate/retry"
	"github.com/clearroute/paygate/types"
)

var (
	testPayload = types.PaymentPayload{
		Version: types.ProtocolVersion,
		Network: types.NetworkBase,
	}
	testRequirements = types.PaymentRequirements{
		Network:      types.NetworkBase,
		ChainID:      8453,
		TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		TokenAmount:  1000,
		PayeeAddress: "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
	}
)

func fastRetry() ClientOption {
	return WithRetry(retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	})
}

func TestVerifySendsProtocolRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header = %q", got)
		}
		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ProtocolVersion != types.ProtocolVersion {
			t.Errorf("x402_version = %d", req.ProtocolVersion)
		}
		if req.PaymentRequirements.Network != types.NetworkBase {
			t.Errorf("requirements not forwarded: %+v", req.PaymentRequirements)
		}
		_ = json.NewEncoder(w).Encode(types.VerificationResult{IsValid: true, Payer: "0xpayer"})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithAuthorization("Bearer secret"))
	result, err := client.Verify(context.Background(), testPayload, testRequirements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsValid || result.Payer != "0xpayer" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestVerifyInvalidIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.VerificationResult{
			IsValid:       false,
			InvalidReason: "authorization expired",
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).Verify(context.Background(), testPayload, testRequirements)
	if err != nil {
		t.Fatalf("facilitator-stated rejection is not a transport error: %v", err)
	}
	if result.IsValid || result.InvalidReason != "authorization expired" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestVerifyRejectionIsTerminal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"invalid_reason":"unsupported scheme"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, fastRetry()).Verify(context.Background(), testPayload, testRequirements)
	if !errors.Is(err, types.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("4xx answers must not be retried, got %d calls", calls.Load())
	}
}

func TestServerErrorsAreRetriedAsUnreachable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, fastRetry()).Verify(context.Background(), testPayload, testRequirements)
	if !errors.Is(err, types.ErrFacilitatorUnreachable) {
		t.Fatalf("expected ErrFacilitatorUnreachable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	_, err := NewClient(server.URL, fastRetry()).Verify(context.Background(), testPayload, testRequirements)
	if !errors.Is(err, types.ErrFacilitatorUnreachable) {
		t.Fatalf("expected ErrFacilitatorUnreachable, got %v", err)
	}
}

func TestSettleDecodesReceipt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/settle" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(types.SettlementReceipt{
			Success:     true,
			Transaction: "0xdeadbeef",
			Network:     types.NetworkBase,
		})
	}))
	defer server.Close()

	receipt, err := NewClient(server.URL).Settle(context.Background(), testPayload, testRequirements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !receipt.Success || receipt.Transaction != "0xdeadbeef" {
		t.Errorf("unexpected receipt: %+v", receipt)
	}
}

func TestSettleFailureCarriesReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error_reason":"authorization already used"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, fastRetry()).Settle(context.Background(), testPayload, testRequirements)
	if !errors.Is(err, types.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "authorization already used") {
		t.Errorf("reason not surfaced: %v", err)
	}
}
