package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"positionScope/internal/model"
)

// Store provides Postgres persistence for position valuations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const upsertValuationSQL = `
	INSERT INTO position_valuations (
		chain_id, token_id, block_number, block_ts, owner, pool_address, token0, token1,
		fee, tick_lower, tick_upper, tick, region, sqrt_price_x96, liquidity,
		amount0_raw, amount1_raw, amount0, amount1,
		unclaimed_fee0_raw, unclaimed_fee1_raw, unclaimed_fee0, unclaimed_fee1,
		created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,now(),now())
	ON CONFLICT (chain_id, token_id, block_number)
	DO UPDATE SET
		block_ts = EXCLUDED.block_ts,
		owner = EXCLUDED.owner,
		pool_address = EXCLUDED.pool_address,
		tick = EXCLUDED.tick,
		region = EXCLUDED.region,
		sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
		liquidity = EXCLUDED.liquidity,
		amount0_raw = EXCLUDED.amount0_raw,
		amount1_raw = EXCLUDED.amount1_raw,
		amount0 = EXCLUDED.amount0,
		amount1 = EXCLUDED.amount1,
		unclaimed_fee0_raw = EXCLUDED.unclaimed_fee0_raw,
		unclaimed_fee1_raw = EXCLUDED.unclaimed_fee1_raw,
		unclaimed_fee0 = EXCLUDED.unclaimed_fee0,
		unclaimed_fee1 = EXCLUDED.unclaimed_fee1,
		updated_at = now()
`

// valuationArgs orders a record's columns for upsertValuationSQL. Numeric
// columns are sent as text so Postgres NUMERIC keeps full precision.
func valuationArgs(rec model.ValuationRecord) []interface{} {
	return []interface{}{
		int64(rec.ChainID),
		rec.TokenID,
		int64(rec.BlockNumber),
		int64(rec.Timestamp),
		rec.Owner,
		rec.Pool,
		rec.Token0,
		rec.Token1,
		int64(rec.Fee),
		rec.TickLower,
		rec.TickUpper,
		rec.Tick,
		rec.Region,
		rec.SqrtPriceX96,
		rec.Liquidity,
		rec.Amount0Raw,
		rec.Amount1Raw,
		rec.Amount0,
		rec.Amount1,
		rec.UnclaimedFee0Raw,
		rec.UnclaimedFee1Raw,
		rec.UnclaimedFee0,
		rec.UnclaimedFee1,
	}
}

// PutValuations upserts valuation records keyed by chain, token and block.
func (s *Store) PutValuations(ctx context.Context, records []model.ValuationRecord) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertValuationSQL, valuationArgs(rec)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert valuation: %w", err)
		}
	}
	return nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM valuer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO valuer_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
