package valuation

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Tick bounds of the V3 core TickMath library.
const (
	MinTick int32 = -887272
	MaxTick int32 = -MinTick
)

var (
	// MinSqrtRatio is the sqrt ratio at MinTick.
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is the sqrt ratio at MaxTick.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	q96        = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	maxUint256 = new(uint256.Int).SetAllOne()

	// log base sqrt(1.0001) of 2 as a 128.128 fixed point number, and the
	// error bounds of the log2 approximation.
	logSqrt10001Multiplier, _ = new(big.Int).SetString("255738958999603826347141", 10)
	tickLowOffset, _          = new(big.Int).SetString("3402992956809132418596140100660247210", 10)
	tickHighOffset, _         = new(big.Int).SetString("291339464771989622907027621153398088495", 10)
)

// sqrt(1.0001^-(2^i)) * 2^128 for i = 0..19.
var sqrtRatioFactors = [20]*uint256.Int{
	uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
	uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
	uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
	uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
	uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
	uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
	uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
	uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
	uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
	uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
	uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
	uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
	uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
	uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
	uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
	uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
	uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
	uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
	uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
	uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, rounded up, exactly as
// the on-chain TickMath library computes it.
func GetSqrtRatioAtTick(tick int32) (*big.Int, error) {
	ratio, err := sqrtRatioAtTick(tick)
	if err != nil {
		return nil, err
	}
	return ratio.ToBig(), nil
}

func sqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of bounds: %w", tick, ErrInvalidRange)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(q128)
	if absTick&0x1 != 0 {
		ratio.Set(sqrtRatioFactors[0])
	}
	for i := 1; i < len(sqrtRatioFactors); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, sqrtRatioFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the result is never below the true ratio.
	remainder := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// GetTickAtSqrtRatio returns the greatest tick t such that
// GetSqrtRatioAtTick(t) <= sqrtPriceX96, i.e. floor(log_1.0001(price)).
// The log is taken with the integer bit-length method of the on-chain
// TickMath library, so the result agrees with slot0.tick.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int32, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, fmt.Errorf("sqrt price must be positive, got %v: %w", sqrtPriceX96, ErrInvalidPrice)
	}
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("sqrt price %s out of bounds: %w", sqrtPriceX96, ErrInvalidPrice)
	}

	ratio := new(big.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	r := new(big.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	log2 := new(big.Int).Lsh(big.NewInt(int64(msb)-128), 64)
	f := new(big.Int)
	for i := 63; i >= 50; i-- {
		r.Mul(r, r)
		r.Rsh(r, 127)
		f.Rsh(r, 128)
		log2.Add(log2, new(big.Int).Lsh(f, uint(i)))
		r.Rsh(r, uint(f.Uint64()))
	}

	logSqrt10001 := new(big.Int).Mul(log2, logSqrt10001Multiplier)

	tickLow := int32(new(big.Int).Rsh(new(big.Int).Sub(logSqrt10001, tickLowOffset), 128).Int64())
	tickHigh := int32(new(big.Int).Rsh(new(big.Int).Add(logSqrt10001, tickHighOffset), 128).Int64())
	if tickLow == tickHigh {
		return tickLow, nil
	}

	atHigh, err := GetSqrtRatioAtTick(tickHigh)
	if err != nil {
		return tickLow, nil
	}
	if atHigh.Cmp(sqrtPriceX96) <= 0 {
		return tickHigh, nil
	}
	return tickLow, nil
}
