package snapshot

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/valuation"
)

// Service fetches a position snapshot and values it.
type Service struct {
	fetcher *Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// NewService builds a Service on top of a Fetcher.
func NewService(fetcher *Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, logger: logger, now: time.Now}
}

// Value values position tokenID at ref.
func (s *Service) Value(ctx context.Context, tokenID *big.Int, ref BlockRef) (model.ValuationRecord, error) {
	snap, err := s.fetcher.Fetch(ctx, tokenID, ref)
	if err != nil {
		return model.ValuationRecord{}, err
	}

	res, err := valuation.Value(snap.Input())
	if err != nil {
		s.logger.Warn("valuation rejected snapshot",
			zap.String("token_id", tokenID.String()),
			zap.Uint64("block", snap.BlockNumber),
			zap.String("sqrt_price_x96", snap.SqrtPriceX96.String()),
			zap.Int32("tick_lower", snap.Position.TickLower),
			zap.Int32("tick_upper", snap.Position.TickUpper),
			zap.Error(err),
		)
		return model.ValuationRecord{}, fmt.Errorf("value position %s at block %d: %w", tokenID, snap.BlockNumber, err)
	}

	if res.Tick != snap.PoolTick {
		// slot0.tick can trail the price by one tick right after a swap that
		// ends exactly on a tick boundary.
		s.logger.Debug("derived tick differs from slot0",
			zap.Int32("derived", res.Tick),
			zap.Int32("slot0", snap.PoolTick),
		)
	}

	return BuildRecord(snap, res, s.now()), nil
}

// BuildRecord flattens a snapshot and its valuation into a record.
func BuildRecord(snap Snapshot, res valuation.Result, valuedAt time.Time) model.ValuationRecord {
	return model.ValuationRecord{
		ChainID:          snap.ChainID,
		TokenID:          bigString(snap.TokenID),
		BlockNumber:      snap.BlockNumber,
		Timestamp:        snap.Timestamp,
		Owner:            snap.Owner.Hex(),
		Pool:             snap.Pool.Hex(),
		Token0:           snap.Position.Token0.Hex(),
		Token1:           snap.Position.Token1.Hex(),
		Symbol0:          snap.Token0.Symbol,
		Symbol1:          snap.Token1.Symbol,
		Decimals0:        snap.Token0.Decimals,
		Decimals1:        snap.Token1.Decimals,
		Fee:              snap.Position.Fee,
		TickLower:        snap.Position.TickLower,
		TickUpper:        snap.Position.TickUpper,
		Tick:             res.Tick,
		Region:           res.Region.String(),
		SqrtPriceX96:     bigString(snap.SqrtPriceX96),
		Liquidity:        bigString(snap.Position.Liquidity),
		Amount0Raw:       bigString(res.Amount0Raw),
		Amount1Raw:       bigString(res.Amount1Raw),
		Amount0:          res.Amount0.String(),
		Amount1:          res.Amount1.String(),
		UnclaimedFee0Raw: bigString(snap.UnclaimedFee0Raw),
		UnclaimedFee1Raw: bigString(snap.UnclaimedFee1Raw),
		UnclaimedFee0:    res.UnclaimedFee0.String(),
		UnclaimedFee1:    res.UnclaimedFee1.String(),
		ValuedAt:         valuedAt.UTC().Format(time.RFC3339Nano),
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
