package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxUint128 is the amount cap passed to collect to request every owed fee.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// PositionData is the decoded result of NonfungiblePositionManager.positions.
type PositionData struct {
	Operator    common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickLower   int32
	TickUpper   int32
	Liquidity   *big.Int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// collectParams mirrors INonfungiblePositionManager.CollectParams.
type collectParams struct {
	TokenId    *big.Int
	Recipient  common.Address
	Amount0Max *big.Int
	Amount1Max *big.Int
}

// FetchPosition reads a position NFT's range and liquidity at block (nil = latest).
func FetchPosition(ctx context.Context, caller ContractCaller, manager common.Address, tokenID *big.Int, block *big.Int) (PositionData, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return PositionData{}, fmt.Errorf("parse position manager abi: %w", err)
	}

	values, err := callMethod(ctx, caller, callRequest{
		to:     manager,
		parsed: parsed,
		method: "positions",
		args:   []interface{}{tokenID},
		block:  block,
	})
	if err != nil {
		return PositionData{}, err
	}
	if len(values) != 12 {
		return PositionData{}, fmt.Errorf("positions return size %d", len(values))
	}

	var pos PositionData
	fields := []struct {
		name string
		read func() error
	}{
		{"operator", func() (err error) { pos.Operator, err = output[common.Address](values, 1); return }},
		{"token0", func() (err error) { pos.Token0, err = output[common.Address](values, 2); return }},
		{"token1", func() (err error) { pos.Token1, err = output[common.Address](values, 3); return }},
		{"fee", func() (err error) { pos.Fee, err = uint24Output(values, 4); return }},
		{"tick lower", func() (err error) { pos.TickLower, err = int24Output(values, 5); return }},
		{"tick upper", func() (err error) { pos.TickUpper, err = int24Output(values, 6); return }},
		{"liquidity", func() (err error) { pos.Liquidity, err = output[*big.Int](values, 7); return }},
		{"tokens owed0", func() (err error) { pos.TokensOwed0, err = output[*big.Int](values, 10); return }},
		{"tokens owed1", func() (err error) { pos.TokensOwed1, err = output[*big.Int](values, 11); return }},
	}
	for _, field := range fields {
		if err := field.read(); err != nil {
			return PositionData{}, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	return pos, nil
}

// FetchOwner returns the current holder of the position NFT.
func FetchOwner(ctx context.Context, caller ContractCaller, manager common.Address, tokenID *big.Int, block *big.Int) (common.Address, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse position manager abi: %w", err)
	}
	values, err := callMethod(ctx, caller, callRequest{
		to:     manager,
		parsed: parsed,
		method: "ownerOf",
		args:   []interface{}{tokenID},
		block:  block,
	})
	if err != nil {
		return common.Address{}, err
	}
	return output[common.Address](values, 0)
}

// FetchPoolAddress resolves the pool for a token pair and fee tier through
// the factory. A zero address means no such pool exists.
func FetchPoolAddress(ctx context.Context, caller ContractCaller, factory, token0, token1 common.Address, fee uint32, block *big.Int) (common.Address, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, callRequest{
		to:     factory,
		parsed: parsed,
		method: "getPool",
		args:   []interface{}{token0, token1, new(big.Int).SetUint64(uint64(fee))},
		block:  block,
	})
	if err != nil {
		return common.Address{}, err
	}
	pool, err := output[common.Address](values, 0)
	if err != nil {
		return common.Address{}, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no pool for %s/%s fee %d", token0.Hex(), token1.Hex(), fee)
	}
	return pool, nil
}

// FetchSlot0 reads the pool's current sqrt price and tick.
func FetchSlot0(ctx context.Context, caller ContractCaller, pool common.Address, block *big.Int) (*big.Int, int32, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return nil, 0, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, callRequest{to: pool, parsed: parsed, method: "slot0", block: block})
	if err != nil {
		return nil, 0, err
	}
	if len(values) < 2 {
		return nil, 0, fmt.Errorf("slot0 return size %d", len(values))
	}
	sqrtPriceX96, err := output[*big.Int](values, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("sqrt price: %w", err)
	}
	tick, err := int24Output(values, 1)
	if err != nil {
		return nil, 0, fmt.Errorf("tick: %w", err)
	}
	return sqrtPriceX96, tick, nil
}

// SimulateCollect returns the fees the owner would receive by calling
// collect with uncapped amounts. It is an eth_call sent from owner, so no
// state changes.
func SimulateCollect(ctx context.Context, caller ContractCaller, manager common.Address, tokenID *big.Int, owner common.Address, block *big.Int) (*big.Int, *big.Int, error) {
	parsed, err := PositionManagerABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse position manager abi: %w", err)
	}
	params := collectParams{
		TokenId:    tokenID,
		Recipient:  owner,
		Amount0Max: MaxUint128,
		Amount1Max: MaxUint128,
	}
	values, err := callMethod(ctx, caller, callRequest{
		to:     manager,
		from:   owner,
		parsed: parsed,
		method: "collect",
		args:   []interface{}{params},
		block:  block,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("collect return size %d", len(values))
	}
	amount0, err := output[*big.Int](values, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("amount0: %w", err)
	}
	amount1, err := output[*big.Int](values, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("amount1: %w", err)
	}
	return amount0, amount1, nil
}
