package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/clearroute/paygate/types"
)

const validPricing = `
operations:
  get_weather_forecast:
    - chain_id: 8453
      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
      token_amount: 1000
  get_tide_tables:
    - chain_id: 8453
      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
      token_amount: 500
    - chain_id: 137
      token_address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
      token_amount: 500
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	table, err := Load(writeTemp(t, validPricing))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 operations, got %d", table.Len())
	}
	if got := len(table.Options("get_tide_tables")); got != 2 {
		t.Errorf("expected 2 options for get_tide_tables, got %d", got)
	}
	if table.Priced("unknown_operation") {
		t.Error("unknown operation should not be priced")
	}
}

func TestLoadMissingFileYieldsEmptyTable(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not fail loading: %v", err)
	}
	if !table.IsEmpty() {
		t.Error("missing file should yield an empty table")
	}
}

func TestLoadEmptyPathYieldsEmptyTable(t *testing.T) {
	table, err := Load("")
	if err != nil {
		t.Fatalf("empty path must not fail loading: %v", err)
	}
	if !table.IsEmpty() {
		t.Error("empty path should yield an empty table")
	}
}

func TestLoadRejectsMalformedSource(t *testing.T) {
	cases := map[string]string{
		"not yaml":       "{{{{",
		"not a mapping":  "operations:\n  - just\n  - a\n  - list\n",
		"negative amount": `
operations:
  op:
    - chain_id: 8453
      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
      token_amount: -5
`,
		"non-numeric chain id": `
operations:
  op:
    - chain_id: base
      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
      token_amount: 5
`,
		"missing token address": `
operations:
  op:
    - chain_id: 8453
      token_amount: 5
`,
		"unknown chain id": `
operations:
  op:
    - chain_id: 424242
      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
      token_amount: 5
`,
		"bad token address": `
operations:
  op:
    - chain_id: 8453
      token_address: "not-an-address"
      token_amount: 5
`,
		"no options": `
operations:
  op: []
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTemp(t, content))
			if err == nil {
				t.Fatal("expected a config error")
			}
			var cfgErr *types.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("expected *types.ConfigError, got %T: %v", err, err)
			}
		})
	}
}

func TestLoadIsRepeatable(t *testing.T) {
	path := writeTemp(t, validPricing)
	first, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Operations()) != len(second.Operations()) {
		t.Error("same source must yield the same table")
	}
}

func TestValidatePayee(t *testing.T) {
	if err := ValidatePayee("0x209693Bc6afc0C5328bA36FaF03C514EF312287C"); err != nil {
		t.Errorf("valid payee rejected: %v", err)
	}
	if err := ValidatePayee("bogus"); err == nil {
		t.Error("invalid payee accepted")
	}
}
