package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Uniswap V3 deployment on Ethereum mainnet.
const (
	DefaultRPCURL          = "https://ethereum.publicnode.com"
	DefaultPositionManager = "0xC36442b4a4522E871399CD717aBDD847Ab11FE88"
	DefaultFactory         = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	PositionManager string
	Factory         string
	TokenID         string
	Block           string
	FromBlock       uint64
	ToBlock         uint64
	Step            uint64
	BatchSize       int
	Out             string
	Checkpoint      string
	PGDSN           string
	Influx          InfluxConfig
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
}

// InfluxConfig selects an InfluxDB v2 bucket. It is disabled when URL is empty.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VALUER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("position-manager", DefaultPositionManager)
	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("block", "latest")
	v.SetDefault("step", uint64(7200))
	v.SetDefault("batch-size", 50)
	v.SetDefault("checkpoint", "")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:          strings.TrimSpace(v.GetString("rpc")),
		PositionManager: strings.TrimSpace(v.GetString("position-manager")),
		Factory:         strings.TrimSpace(v.GetString("factory")),
		TokenID:         strings.TrimSpace(v.GetString("token-id")),
		Block:           strings.TrimSpace(v.GetString("block")),
		FromBlock:       v.GetUint64("from"),
		ToBlock:         v.GetUint64("to"),
		Step:            v.GetUint64("step"),
		BatchSize:       v.GetInt("batch-size"),
		Out:             v.GetString("out"),
		Checkpoint:      v.GetString("checkpoint"),
		PGDSN:           v.GetString("pg-dsn"),
		Influx: InfluxConfig{
			URL:    v.GetString("influx-url"),
			Token:  v.GetString("influx-token"),
			Org:    v.GetString("influx-org"),
			Bucket: v.GetString("influx-bucket"),
		},
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.TokenID == "" {
		return fmt.Errorf("token id is required")
	}
	if c.PositionManager == "" || c.Factory == "" {
		return fmt.Errorf("position manager and factory addresses are required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0")
	}
	if c.Influx.Enabled() && c.Influx.Bucket == "" {
		return fmt.Errorf("influx bucket is required when influx url is set")
	}
	return nil
}
