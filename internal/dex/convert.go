package dex

import (
	"bytes"
	"fmt"
	"math/big"
)

// output returns unpacked ABI output i as T. go-ethereum unpacks uint8..64
// and int8..64 to native ints, other widths to *big.Int, address to
// common.Address and bytes32 to [32]byte.
func output[T any](values []interface{}, i int) (T, error) {
	var zero T
	if i >= len(values) {
		return zero, fmt.Errorf("missing output %d of %d", i, len(values))
	}
	v, ok := values[i].(T)
	if !ok {
		return zero, fmt.Errorf("output %d: unexpected type %T", i, values[i])
	}
	return v, nil
}

func bytes32ToString(value interface{}) string {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00"))
	case []byte:
		return string(bytes.TrimRight(v, "\x00"))
	default:
		return ""
	}
}

var (
	minInt24 = big.NewInt(-1 << 23)
	maxInt24 = big.NewInt(1<<23 - 1)
)

func int24FromBig(value *big.Int) (int32, error) {
	if value == nil || value.Cmp(minInt24) < 0 || value.Cmp(maxInt24) > 0 {
		return 0, fmt.Errorf("int24 overflow: %v", value)
	}
	return int32(value.Int64()), nil
}

func uint24FromBig(value *big.Int) (uint32, error) {
	if value == nil || value.Sign() < 0 || value.BitLen() > 24 {
		return 0, fmt.Errorf("uint24 overflow: %v", value)
	}
	return uint32(value.Uint64()), nil
}

// int24Output reads an int24 output, which go-ethereum unpacks as *big.Int.
func int24Output(values []interface{}, i int) (int32, error) {
	v, err := output[*big.Int](values, i)
	if err != nil {
		return 0, err
	}
	return int24FromBig(v)
}

func uint24Output(values []interface{}, i int) (uint32, error) {
	v, err := output[*big.Int](values, i)
	if err != nil {
		return 0, err
	}
	return uint24FromBig(v)
}
