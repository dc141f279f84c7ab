package snapshot

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// BlockRef selects the chain state a valuation reads: a fixed block or the
// latest block at fetch time.
type BlockRef struct {
	Number uint64
	Latest bool
}

// Latest refers to the newest block.
func Latest() BlockRef { return BlockRef{Latest: true} }

// AtBlock refers to a fixed block height.
func AtBlock(number uint64) BlockRef { return BlockRef{Number: number} }

func (b BlockRef) String() string {
	if b.Latest {
		return "latest"
	}
	return strconv.FormatUint(b.Number, 10)
}

// ParseBlockRef accepts "latest" (or empty), a decimal height, or a
// 0x-prefixed hex height.
func ParseBlockRef(input string) (BlockRef, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "" || strings.EqualFold(input, "latest"):
		return Latest(), nil
	case strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X"):
		n, err := hexutil.DecodeUint64("0x" + input[2:])
		if err != nil {
			return BlockRef{}, fmt.Errorf("invalid block %q: %w", input, err)
		}
		return AtBlock(n), nil
	default:
		n, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return BlockRef{}, fmt.Errorf("invalid block %q: %w", input, err)
		}
		return AtBlock(n), nil
	}
}

// ParseTokenID parses a position NFT id (decimal or 0x-hex).
func ParseTokenID(input string) (*big.Int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("token id is required")
	}
	id, ok := new(big.Int).SetString(input, 0)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid token id %q", input)
	}
	return id, nil
}
