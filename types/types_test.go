package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNetworkForChainID(t *testing.T) {
	network, ok := NetworkForChainID(8453)
	if !ok || network != NetworkBase {
		t.Fatalf("expected base for chain 8453, got %q ok=%v", network, ok)
	}

	if _, ok := NetworkForChainID(999999); ok {
		t.Fatal("unknown chain id should not resolve")
	}
}

func TestOptionRequirements(t *testing.T) {
	option := PaymentOption{
		ChainID:      8453,
		TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		TokenAmount:  1000,
	}

	req, err := option.Requirements("0x209693Bc6afc0C5328bA36FaF03C514EF312287C")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Network != NetworkBase {
		t.Errorf("expected network base, got %q", req.Network)
	}
	if req.ChainID != 8453 || req.TokenAmount != 1000 {
		t.Errorf("option fields not carried over: %+v", req)
	}
	if req.PayeeAddress != "0x209693Bc6afc0C5328bA36FaF03C514EF312287C" {
		t.Errorf("payee not set: %+v", req)
	}

	// Same option, same derivation, every time.
	again, _ := option.Requirements(req.PayeeAddress)
	if again != req {
		t.Errorf("requirements derivation is not deterministic: %+v vs %+v", again, req)
	}
}

func TestOptionRequirementsUnknownChain(t *testing.T) {
	option := PaymentOption{ChainID: 42, TokenAddress: "0xAbc", TokenAmount: 1}
	if _, err := option.Requirements("0x209693Bc6afc0C5328bA36FaF03C514EF312287C"); err == nil {
		t.Fatal("expected error for unmapped chain id")
	}
}

func TestPaymentRequiredWireShape(t *testing.T) {
	body := PaymentRequired{
		Error: "no payment header provided",
		Accepts: []PaymentRequirements{{
			Network:      NetworkBase,
			ChainID:      8453,
			TokenAddress: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			TokenAmount:  1000,
			PayeeAddress: "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		}},
		ProtocolVersion: ProtocolVersion,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"error", "accepts", "x402_version"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("402 body missing %q: %s", key, raw)
		}
	}

	accepts := decoded["accepts"].([]any)[0].(map[string]any)
	for _, key := range []string{"network", "chain_id", "token_address", "token_amount", "payee_address"} {
		if _, ok := accepts[key]; !ok {
			t.Errorf("accepts entry missing %q: %s", key, raw)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   uint64
		decimals int32
		want     string
	}{
		{1000, 6, "0.001"},
		{1000000, 6, "1"},
		{0, 6, "0"},
		{1234567, 6, "1.234567"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.amount, tc.decimals); got != tc.want {
			t.Errorf("FormatAmount(%d, %d) = %q, want %q", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestConfigErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewConfigError("load", inner)
	if !errors.Is(err, inner) {
		t.Error("ConfigError should unwrap to its cause")
	}
	var cfgErr *ConfigError
	if !errors.As(error(err), &cfgErr) {
		t.Error("errors.As should find *ConfigError")
	}
}
