package valuation

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Region is where the current tick sits relative to a position's range.
type Region int

const (
	RegionBelow Region = iota
	RegionInRange
	RegionAbove
)

func (r Region) String() string {
	switch r {
	case RegionBelow:
		return "below"
	case RegionInRange:
		return "in_range"
	case RegionAbove:
		return "above"
	default:
		return fmt.Sprintf("region(%d)", int(r))
	}
}

// Classify places tick against [tickLower, tickUpper]. A tick equal to
// tickLower is below the range; a tick equal to tickUpper is in range.
func Classify(tick, tickLower, tickUpper int32) Region {
	switch {
	case tick <= tickLower:
		return RegionBelow
	case tick > tickUpper:
		return RegionAbove
	default:
		return RegionInRange
	}
}

// ValidateRange checks tickLower < tickUpper and that both ticks are usable.
func ValidateRange(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("tick lower %d must be below tick upper %d: %w", tickLower, tickUpper, ErrInvalidRange)
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return fmt.Errorf("ticks [%d, %d] outside [%d, %d]: %w", tickLower, tickUpper, MinTick, MaxTick, ErrInvalidRange)
	}
	return nil
}

// Amounts holds raw token quantities in each token's smallest unit.
type Amounts struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// AmountsForLiquidity derives the raw token amounts represented by liquidity
// over [tickLower, tickUpper] at the given pool price. The tick derived from
// sqrtPriceX96 picks the region; the mixed region uses sqrtPriceX96 itself.
// Amounts are floored.
func AmountsForLiquidity(sqrtPriceX96 *big.Int, tickLower, tickUpper int32, liquidity *big.Int) (Region, Amounts, error) {
	tick, err := GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return 0, Amounts{}, err
	}
	if err := ValidateRange(tickLower, tickUpper); err != nil {
		return 0, Amounts{}, err
	}
	return amountsAtTick(sqrtPriceX96, tick, tickLower, tickUpper, liquidity)
}

func amountsAtTick(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int32, liquidity *big.Int) (Region, Amounts, error) {
	liq, err := toUint256(liquidity)
	if err != nil {
		return 0, Amounts{}, fmt.Errorf("liquidity: %w", err)
	}
	sqrtA, err := sqrtRatioAtTick(tickLower)
	if err != nil {
		return 0, Amounts{}, err
	}
	sqrtB, err := sqrtRatioAtTick(tickUpper)
	if err != nil {
		return 0, Amounts{}, err
	}

	region := Classify(tick, tickLower, tickUpper)
	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)

	switch region {
	case RegionBelow:
		if amount0, err = amount0ForLiquidity(sqrtA, sqrtB, liq); err != nil {
			return 0, Amounts{}, err
		}
	case RegionAbove:
		if amount1, err = amount1ForLiquidity(sqrtA, sqrtB, liq); err != nil {
			return 0, Amounts{}, err
		}
	default:
		sqrtP, err := toUint256(sqrtPriceX96)
		if err != nil {
			return 0, Amounts{}, fmt.Errorf("sqrt price: %w", err)
		}
		if sqrtP.Lt(sqrtA) {
			sqrtP.Set(sqrtA)
		}
		if sqrtP.Gt(sqrtB) {
			sqrtP.Set(sqrtB)
		}
		if amount0, err = amount0ForLiquidity(sqrtP, sqrtB, liq); err != nil {
			return 0, Amounts{}, err
		}
		if amount1, err = amount1ForLiquidity(sqrtA, sqrtP, liq); err != nil {
			return 0, Amounts{}, err
		}
	}

	return region, Amounts{Amount0: amount0.ToBig(), Amount1: amount1.ToBig()}, nil
}

// amount0ForLiquidity computes floor(L * (sqrtB - sqrtA) / (sqrtA * sqrtB))
// with Q64.96 ratios: mulDiv(L << 96, sqrtB - sqrtA, sqrtB) / sqrtA.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.BitLen() > 256-96 {
		return nil, fmt.Errorf("liquidity %s << 96: %w", liquidity.Dec(), ErrOverflow)
	}
	numerator := new(uint256.Int).Lsh(liquidity, 96)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)

	out, overflow := new(uint256.Int).MulDivOverflow(numerator, diff, sqrtB)
	if overflow {
		return nil, fmt.Errorf("amount0 for liquidity %s: %w", liquidity.Dec(), ErrOverflow)
	}
	return out.Div(out, sqrtA), nil
}

// amount1ForLiquidity computes floor(L * (sqrtB - sqrtA)).
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	out, overflow := new(uint256.Int).MulDivOverflow(liquidity, diff, q96)
	if overflow {
		return nil, fmt.Errorf("amount1 for liquidity %s: %w", liquidity.Dec(), ErrOverflow)
	}
	return out, nil
}

func toUint256(value *big.Int) (*uint256.Int, error) {
	if value == nil {
		return new(uint256.Int), nil
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s: %w", value, ErrOverflow)
	}
	out, overflow := uint256.FromBig(value)
	if overflow {
		return nil, fmt.Errorf("value %s exceeds 256 bits: %w", value, ErrOverflow)
	}
	return out, nil
}
