package snapshot

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/dex"
	"positionScope/internal/model"
	"positionScope/internal/valuation"
)

// ChainReader is the read-only chain access a Fetcher needs.
type ChainReader interface {
	dex.ContractCaller
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds the contract addresses and retry policy of a Fetcher.
type Config struct {
	PositionManager common.Address
	Factory         common.Address
	MaxRetries      int
	RetryBackoff    time.Duration
}

// Snapshot is every raw figure a valuation reads, all taken at one block.
type Snapshot struct {
	ChainID          uint64
	TokenID          *big.Int
	BlockNumber      uint64
	Timestamp        uint64
	Owner            common.Address
	Pool             common.Address
	Position         dex.PositionData
	Token0           model.TokenMeta
	Token1           model.TokenMeta
	SqrtPriceX96     *big.Int
	PoolTick         int32
	UnclaimedFee0Raw *big.Int
	UnclaimedFee1Raw *big.Int
}

// Input converts the snapshot into valuation engine input.
func (s Snapshot) Input() valuation.Input {
	return valuation.Input{
		SqrtPriceX96:     s.SqrtPriceX96,
		TickLower:        s.Position.TickLower,
		TickUpper:        s.Position.TickUpper,
		Liquidity:        s.Position.Liquidity,
		Decimals0:        s.Token0.Decimals,
		Decimals1:        s.Token1.Decimals,
		UnclaimedFee0Raw: s.UnclaimedFee0Raw,
		UnclaimedFee1Raw: s.UnclaimedFee1Raw,
	}
}

type poolKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// Fetcher collects position snapshots from chain.
type Fetcher struct {
	cfg    Config
	chain  ChainReader
	tokens *dex.TokenMetaCache
	logger *zap.Logger

	mu    sync.RWMutex
	pools map[poolKey]common.Address
}

// NewFetcher builds a Fetcher. A nil logger disables logging.
func NewFetcher(cfg Config, chainReader ChainReader, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		chain:  chainReader,
		tokens: dex.NewTokenMetaCache(),
		logger: logger,
		pools:  make(map[poolKey]common.Address),
	}
}

// Fetch reads a consistent snapshot of position tokenID. A latest ref is
// pinned to a concrete block first so every call sees the same state.
func (f *Fetcher) Fetch(ctx context.Context, tokenID *big.Int, ref BlockRef) (Snapshot, error) {
	if f.chain == nil {
		return Snapshot{}, fmt.Errorf("chain reader is nil")
	}
	if tokenID == nil {
		return Snapshot{}, fmt.Errorf("token id is required")
	}

	snap := Snapshot{TokenID: new(big.Int).Set(tokenID)}

	err := f.retry(ctx, "chain id", func(ctx context.Context) (err error) {
		snap.ChainID, err = f.chain.ChainID(ctx)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}

	snap.BlockNumber = ref.Number
	if ref.Latest {
		err := f.retry(ctx, "latest block", func(ctx context.Context) (err error) {
			snap.BlockNumber, err = f.chain.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return Snapshot{}, err
		}
	}
	block := new(big.Int).SetUint64(snap.BlockNumber)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"position", func(ctx context.Context) (err error) {
			snap.Position, err = dex.FetchPosition(ctx, f.chain, f.cfg.PositionManager, tokenID, block)
			return err
		}},
		{"owner", func(ctx context.Context) (err error) {
			snap.Owner, err = dex.FetchOwner(ctx, f.chain, f.cfg.PositionManager, tokenID, block)
			return err
		}},
		{"pool", func(ctx context.Context) (err error) {
			snap.Pool, err = f.poolAddress(ctx, snap.Position, block)
			return err
		}},
		{"slot0", func(ctx context.Context) (err error) {
			snap.SqrtPriceX96, snap.PoolTick, err = dex.FetchSlot0(ctx, f.chain, snap.Pool, block)
			return err
		}},
		{"token0", func(ctx context.Context) (err error) {
			snap.Token0, err = dex.CachedTokenMeta(ctx, f.chain, f.tokens, snap.Position.Token0, f.logger)
			return err
		}},
		{"token1", func(ctx context.Context) (err error) {
			snap.Token1, err = dex.CachedTokenMeta(ctx, f.chain, f.tokens, snap.Position.Token1, f.logger)
			return err
		}},
		{"collect", func(ctx context.Context) (err error) {
			snap.UnclaimedFee0Raw, snap.UnclaimedFee1Raw, err = dex.SimulateCollect(ctx, f.chain, f.cfg.PositionManager, tokenID, snap.Owner, block)
			return err
		}},
		{"timestamp", func(ctx context.Context) (err error) {
			snap.Timestamp, err = f.chain.BlockTimestamp(ctx, snap.BlockNumber)
			return err
		}},
	}
	for _, step := range steps {
		if err := f.retry(ctx, step.name, step.fn); err != nil {
			return Snapshot{}, err
		}
	}

	f.logger.Debug("snapshot fetched",
		zap.String("token_id", tokenID.String()),
		zap.Uint64("block", snap.BlockNumber),
		zap.String("pool", snap.Pool.Hex()),
		zap.String("sqrt_price_x96", snap.SqrtPriceX96.String()),
		zap.Int32("pool_tick", snap.PoolTick),
	)
	return snap, nil
}

func (f *Fetcher) poolAddress(ctx context.Context, pos dex.PositionData, block *big.Int) (common.Address, error) {
	key := poolKey{token0: pos.Token0, token1: pos.Token1, fee: pos.Fee}
	f.mu.RLock()
	pool, ok := f.pools[key]
	f.mu.RUnlock()
	if ok {
		return pool, nil
	}

	pool, err := dex.FetchPoolAddress(ctx, f.chain, f.cfg.Factory, pos.Token0, pos.Token1, pos.Fee, block)
	if err != nil {
		return common.Address{}, err
	}
	f.mu.Lock()
	f.pools[key] = pool
	f.mu.Unlock()
	return pool, nil
}

func (f *Fetcher) retry(ctx context.Context, what string, fn func(context.Context) error) error {
	err := withRetry(ctx, f.cfg.MaxRetries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil {
			f.logger.Warn("chain read failed", zap.String("step", what), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", what, err)
	}
	return nil
}
