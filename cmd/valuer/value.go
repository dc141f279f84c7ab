package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/model"
	"positionScope/internal/snapshot"
)

var errValuationFailed = errors.New("valuation failed")

func runValue(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenID, err := snapshot.ParseTokenID(cfg.TokenID)
	if err != nil {
		return err
	}
	ref, err := snapshot.ParseBlockRef(cfg.Block)
	if err != nil {
		return err
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

	logger.Info("value start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("token_id", tokenID.String()),
		zap.String("block", ref.String()),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Bool("influx", cfg.Influx.Enabled()),
	)

	rec, err := service.Value(ctx, tokenID, ref)
	if err != nil {
		logger.Error("valuation failed", zap.String("token_id", tokenID.String()), zap.Error(err))
		return errValuationFailed
	}

	if len(outputs.multi) > 0 {
		if err := outputs.multi.PutValuations(ctx, []model.ValuationRecord{rec}); err != nil {
			return fmt.Errorf("store valuation: %w", err)
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
