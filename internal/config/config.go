package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL        string
	DataURL       string
	DataURLBackup string

	StartBlock          uint64
	BlockRangeSize      uint64
	MaxBlocksPerRequest uint64
	MaxLogsPerRequest   int

	MaxRetries     int
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	RateLimitDelay time.Duration

	BatchSize           int
	SleepBetweenBatches time.Duration

	PoolManager          string
	PoolID               string
	ModifyLiquidityTopic string
	OwnerChecker         string
	NFTContract          string
	Multicall3           string

	Currency0   string
	Currency1   string
	FeeTier     uint32
	TickSpacing int32
	Hooks       string

	CountdownSeconds int
	BlocksPerScan    uint64

	SnapshotFile string
	PGDSN        string
	MetricsAddr  string
	LogLevel     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POSITIONSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("block-range-size", uint64(1000))
	v.SetDefault("max-blocks-per-request", uint64(1000))
	v.SetDefault("max-logs-per-request", 10000)
	v.SetDefault("max-retries", 5)
	v.SetDefault("base-retry-delay", time.Second)
	v.SetDefault("max-retry-delay", 30*time.Second)
	v.SetDefault("rate-limit-delay", 1250*time.Millisecond)
	v.SetDefault("batch-size", 50)
	v.SetDefault("sleep-between-batches", 600*time.Millisecond)
	v.SetDefault("countdown-seconds", 50)
	v.SetDefault("blocks-per-scan", uint64(1996))
	v.SetDefault("snapshot-file", "./data/positions.json")
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
		RPCURL:               v.GetString("rpc"),
		DataURL:              v.GetString("data-url"),
		DataURLBackup:        v.GetString("data-url-backup"),
		StartBlock:           v.GetUint64("start-block"),
		BlockRangeSize:       v.GetUint64("block-range-size"),
		MaxBlocksPerRequest:  v.GetUint64("max-blocks-per-request"),
		MaxLogsPerRequest:    v.GetInt("max-logs-per-request"),
		MaxRetries:           v.GetInt("max-retries"),
		BaseRetryDelay:       v.GetDuration("base-retry-delay"),
		MaxRetryDelay:        v.GetDuration("max-retry-delay"),
		RateLimitDelay:       v.GetDuration("rate-limit-delay"),
		BatchSize:            v.GetInt("batch-size"),
		SleepBetweenBatches:  v.GetDuration("sleep-between-batches"),
		PoolManager:          v.GetString("pool-manager"),
		PoolID:               v.GetString("pool-id"),
		ModifyLiquidityTopic: v.GetString("modify-liquidity-topic"),
		OwnerChecker:         v.GetString("owner-checker"),
		NFTContract:          v.GetString("nft-contract"),
		Multicall3:           v.GetString("multicall3"),
		Currency0:            v.GetString("currency0"),
		Currency1:            v.GetString("currency1"),
		FeeTier:              v.GetUint32("fee-tier"),
		TickSpacing:          v.GetInt32("tick-spacing"),
		Hooks:                v.GetString("hooks"),
		CountdownSeconds:     v.GetInt("countdown-seconds"),
		BlocksPerScan:        v.GetUint64("blocks-per-scan"),
		SnapshotFile:         v.GetString("snapshot-file"),
		PGDSN:                v.GetString("pg-dsn"),
		MetricsAddr:          v.GetString("metrics-addr"),
		LogLevel:             v.GetString("log-level"),
	}

	return cfg, nil
}

// EffectivePageSize caps the scanner page at the provider's range limit.
func (c Config) EffectivePageSize() uint64 {
	size := c.BlockRangeSize
	if c.MaxBlocksPerRequest > 0 && size > c.MaxBlocksPerRequest {
		size = c.MaxBlocksPerRequest
	}
	if size == 0 {
		size = 1000
	}
	return size
}
