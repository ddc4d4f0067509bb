package types

import (
	"github.com/shopspring/decimal"
)

// USDCDecimals is the decimal precision of USDC on every supported chain.
const USDCDecimals = 6

// FormatAmount renders an atomic-unit token amount as a human-readable
// decimal string, e.g. FormatAmount(1000, 6) == "0.001".
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromUint64(amount).Shift(-decimals).String()
}

// DisplayAmount renders an atomic-unit amount at USDC precision. Used in
// logs and examples; the wire always carries atomic units.
func DisplayAmount(amount uint64) string {
	return FormatAmount(amount, USDCDecimals)
}
