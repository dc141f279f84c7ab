package valuation

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale converts a raw amount into token units: raw / 10^decimals, exactly.
func Scale(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// Unscale is the inverse of Scale. Digits beyond decimals are truncated.
func Unscale(scaled decimal.Decimal, decimals uint8) *big.Int {
	return scaled.Shift(int32(decimals)).BigInt()
}

// ScaleFloat64 is Scale for display only; large amounts lose precision.
func ScaleFloat64(raw *big.Int, decimals uint8) float64 {
	return Scale(raw, decimals).InexactFloat64()
}

// NormalizeFees scales uncollected fee amounts per token. Fees are flat
// quantities and do not depend on the position's range.
func NormalizeFees(fee0Raw, fee1Raw *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	return Scale(fee0Raw, decimals0), Scale(fee1Raw, decimals1)
}
