package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/history"
	"positionScope/internal/snapshot"
)

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenID, err := snapshot.ParseTokenID(cfg.TokenID)
	if err != nil {
		return err
	}
	if cfg.Step == 0 {
		return fmt.Errorf("step must be greater than zero")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	service, err := newService(cfg, chainClient, logger)
	if err != nil {
		return err
	}

	outputs, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	defer outputs.Close()
	if len(outputs.multi) == 0 {
		return fmt.Errorf("at least one output (out, pg-dsn or influx-url) is required")
	}

	var state history.StateStore
	switch {
	case cfg.Checkpoint != "":
		state = &history.FileStateStore{Path: cfg.Checkpoint}
	case outputs.store != nil:
		state = &history.DBStateStore{Store: outputs.store, Name: history.StateName(tokenID.String())}
	}

	runner := history.NewRunner(history.RunConfig{
		TokenID:   tokenID,
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		Step:      cfg.Step,
		BatchSize: cfg.BatchSize,
	}, service, chainClient, outputs.multi, state, logger)

	logger.Info("history start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("token_id", tokenID.String()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("step", cfg.Step),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("influx", cfg.Influx.Enabled()),
	)

	if err := runner.Run(ctx); err != nil {
		logger.Error("history failed", zap.String("token_id", tokenID.String()), zap.Error(err))
		return err
	}
	return nil
}
