package history

import (
	"context"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"positionScope/internal/model"
	"positionScope/internal/snapshot"
	"positionScope/internal/storage"
)

// Valuer values a position at a block.
type Valuer interface {
	Value(ctx context.Context, tokenID *big.Int, ref snapshot.BlockRef) (model.ValuationRecord, error)
}

// HeadReader resolves the chain head when no end block is configured.
type HeadReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// RunConfig holds runtime settings for a history run.
type RunConfig struct {
	TokenID   *big.Int
	FromBlock uint64
	ToBlock   uint64
	Step      uint64
	BatchSize int
}

// Runner values one position across a block range and writes the records to
// a sink, checkpointing after every flushed batch.
type Runner struct {
	cfg    RunConfig
	valuer Valuer
	head   HeadReader
	sink   storage.Sink
	state  StateStore
	logger *zap.Logger
}

// NewRunner builds a Runner with its dependencies. state may be nil.
func NewRunner(cfg RunConfig, valuer Valuer, head HeadReader, sink storage.Sink, state StateStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Runner{
		cfg:    cfg,
		valuer: valuer,
		head:   head,
		sink:   sink,
		state:  state,
		logger: logger.With(zap.String("run_id", uuid.NewString())),
	}
}

// Run executes the sampling loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.valuer == nil {
		return fmt.Errorf("valuer is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.TokenID == nil {
		return fmt.Errorf("token id is required")
	}

	to := r.cfg.ToBlock
	if to == 0 {
		if r.head == nil {
			return fmt.Errorf("to block is required")
		}
		latest, err := r.head.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	blocks, err := SampleBlocks(r.cfg.FromBlock, to, r.cfg.Step)
	if err != nil {
		return err
	}

	if r.state != nil {
		last, ok, err := r.state.Load(ctx)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		if ok {
			blocks = after(blocks, last)
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Int("remaining", len(blocks)))
		}
	}

	if len(blocks) == 0 {
		r.logger.Info("nothing to value", zap.Uint64("from", r.cfg.FromBlock), zap.Uint64("to", to))
		return nil
	}

	batch := make([]model.ValuationRecord, 0, r.cfg.BatchSize)
	for _, block := range blocks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.valuer.Value(ctx, r.cfg.TokenID, snapshot.AtBlock(block))
		if err != nil {
			return fmt.Errorf("value block %d: %w", block, err)
		}
		batch = append(batch, rec)

		if len(batch) >= r.cfg.BatchSize {
			if err := r.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return r.flush(ctx, batch)
	}
	return nil
}

func (r *Runner) flush(ctx context.Context, batch []model.ValuationRecord) error {
	if err := r.sink.PutValuations(ctx, batch); err != nil {
		return fmt.Errorf("store valuations: %w", err)
	}
	last := batch[len(batch)-1].BlockNumber
	if r.state != nil {
		if err := r.state.Save(ctx, last); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	r.logger.Info("batch complete",
		zap.Int("records", len(batch)),
		zap.Uint64("from", batch[0].BlockNumber),
		zap.Uint64("to", last),
	)
	return nil
}

func after(blocks []uint64, last uint64) []uint64 {
	for i, block := range blocks {
		if block > last {
			return blocks[i:]
		}
	}
	return nil
}
