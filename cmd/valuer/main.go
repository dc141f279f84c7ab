package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionScope/internal/chain"
	"positionScope/internal/config"
	"positionScope/internal/snapshot"
	"positionScope/internal/storage"
	"positionScope/internal/storage/influx"
	"positionScope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "valuer",
		Short:        "Uniswap V3 position valuer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	valueCmd := &cobra.Command{
		Use:   "value",
		Short: "Value a position at one block",
		RunE:  runValue,
	}
	addCommonFlags(valueCmd.Flags())
	valueCmd.Flags().String("block", "latest", "block number or \"latest\"")
	valueCmd.Flags().String("out", "", "optional JSONL path to append the record to")

	root.AddCommand(valueCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Value a position across a block range",
		RunE:  runHistory,
	}
	addCommonFlags(historyCmd.Flags())
	historyCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	historyCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	historyCmd.Flags().Uint64("step", 7200, "blocks between samples")
	historyCmd.Flags().Int("batch-size", 50, "records per sink write")
	historyCmd.Flags().String("out", "./data/valuations.jsonl", "output JSONL path")
	historyCmd.Flags().String("checkpoint", "", "checkpoint file path (defaults to the pg state table when pg-dsn is set)")

	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addCommonFlags(flags *pflag.FlagSet) {
	flags.String("rpc", config.DefaultRPCURL, "Ethereum RPC URL (archive node for historical blocks)")
	flags.String("position-manager", config.DefaultPositionManager, "NonfungiblePositionManager address")
	flags.String("factory", config.DefaultFactory, "UniswapV3Factory address")
	flags.String("token-id", "", "position token id")
	flags.String("pg-dsn", "", "optional Postgres DSN")
	flags.String("influx-url", "", "optional InfluxDB URL")
	flags.String("influx-token", "", "InfluxDB token")
	flags.String("influx-org", "", "InfluxDB organization")
	flags.String("influx-bucket", "", "InfluxDB bucket")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func newService(cfg config.Config, chainClient *chain.Client, logger *zap.Logger) (*snapshot.Service, error) {
	manager, err := parseAddress("position manager", cfg.PositionManager)
	if err != nil {
		return nil, err
	}
	factory, err := parseAddress("factory", cfg.Factory)
	if err != nil {
		return nil, err
	}

	fetcher := snapshot.NewFetcher(snapshot.Config{
		PositionManager: manager,
		Factory:         factory,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, chainClient, logger)
	return snapshot.NewService(fetcher, logger), nil
}

// sinks holds the configured outputs and closes them together.
type sinks struct {
	multi  storage.MultiSink
	store  *postgres.Store
	influx *influx.Sink
}

func openSinks(ctx context.Context, cfg config.Config) (*sinks, error) {
	s := &sinks{}
	if cfg.Out != "" {
		s.multi = append(s.multi, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.store = store
		s.multi = append(s.multi, store)
	}
	if cfg.Influx.Enabled() {
		sink, err := influx.NewSink(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect influx: %w", err)
		}
		s.influx = sink
		s.multi = append(s.multi, sink)
	}
	return s, nil
}

func (s *sinks) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.influx != nil {
		s.influx.Close()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
