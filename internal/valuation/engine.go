package valuation

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Input is one snapshot of the raw on-chain figures for a position.
type Input struct {
	SqrtPriceX96     *big.Int
	TickLower        int32
	TickUpper        int32
	Liquidity        *big.Int
	Decimals0        uint8
	Decimals1        uint8
	UnclaimedFee0Raw *big.Int
	UnclaimedFee1Raw *big.Int
}

// Result is the value of a position: token amounts held and fees owed,
// scaled by each token's decimals. The raw amounts are kept alongside.
type Result struct {
	Tick          int32
	Region        Region
	Amount0Raw    *big.Int
	Amount1Raw    *big.Int
	Amount0       decimal.Decimal
	Amount1       decimal.Decimal
	UnclaimedFee0 decimal.Decimal
	UnclaimedFee1 decimal.Decimal
}

// Value runs the valuation pipeline. It either returns a complete Result or
// an error wrapping ErrInvalidPrice, ErrInvalidRange or ErrOverflow.
// Value does not modify its input and is safe for concurrent use.
func Value(in Input) (Result, error) {
	tick, err := GetTickAtSqrtRatio(in.SqrtPriceX96)
	if err != nil {
		return Result{}, err
	}
	if err := ValidateRange(in.TickLower, in.TickUpper); err != nil {
		return Result{}, err
	}

	region, amounts, err := amountsAtTick(in.SqrtPriceX96, tick, in.TickLower, in.TickUpper, in.Liquidity)
	if err != nil {
		return Result{}, err
	}

	if _, err := toUint256(in.UnclaimedFee0Raw); err != nil {
		return Result{}, fmt.Errorf("unclaimed fee0: %w", err)
	}
	if _, err := toUint256(in.UnclaimedFee1Raw); err != nil {
		return Result{}, fmt.Errorf("unclaimed fee1: %w", err)
	}
	fee0, fee1 := NormalizeFees(in.UnclaimedFee0Raw, in.UnclaimedFee1Raw, in.Decimals0, in.Decimals1)

	return Result{
		Tick:          tick,
		Region:        region,
		Amount0Raw:    amounts.Amount0,
		Amount1Raw:    amounts.Amount1,
		Amount0:       Scale(amounts.Amount0, in.Decimals0),
		Amount1:       Scale(amounts.Amount1, in.Decimals1),
		UnclaimedFee0: fee0,
		UnclaimedFee1: fee1,
	}, nil
}
