package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"positionScope/internal/config"
	"positionScope/internal/monitor"
	"positionScope/internal/seed"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Pool position indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the position monitor",
		RunE:  runMonitor,
	}
	addIndexFlags(runCmd.Flags())
	runCmd.Flags().Int("countdown-seconds", 50, "seconds between reconciliations")
	runCmd.Flags().Uint64("blocks-per-scan", 1996, "blocks per catch-up window")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")
	root.AddCommand(runCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single reconciliation and exit",
		RunE:  runScan,
	}
	addIndexFlags(scanCmd.Flags())
	scanCmd.Flags().Uint64("blocks-per-scan", 1996, "blocks per catch-up window")
	root.AddCommand(scanCmd)

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the persisted snapshot summary",
		RunE:  runSnapshot,
	}
	snapshotCmd.Flags().String("snapshot-file", "./data/positions.json", "local snapshot path")
	snapshotCmd.Flags().String("pg-dsn", "", "Postgres DSN (overrides the file store)")
	snapshotCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addIndexFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "JSON-RPC endpoint URL")
	flags.String("data-url", "", "primary snapshot seed URL")
	flags.String("data-url-backup", "", "backup snapshot seed URL")
	flags.Uint64("start-block", 0, "cursor when no snapshot exists")
	flags.Uint64("block-range-size", 1000, "blocks per eth_getLogs page")
	flags.Uint64("max-blocks-per-request", 1000, "provider block-range cap")
	flags.Int("max-logs-per-request", 10000, "provider log-count cap")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("base-retry-delay", 0, "initial retry backoff")
	flags.Duration("max-retry-delay", 0, "retry backoff cap")
	flags.Duration("rate-limit-delay", 0, "minimum gap between RPC requests")
	flags.Int("batch-size", 50, "token ids per owner lookup batch")
	flags.Duration("sleep-between-batches", 0, "pause between owner lookup batches")
	flags.String("pool-manager", "", "pool manager contract address")
	flags.String("pool-id", "", "target pool id (topic1)")
	flags.String("modify-liquidity-topic", "", "ModifyLiquidity topic0 override")
	flags.String("owner-checker", "", "owner checker helper contract address")
	flags.String("nft-contract", "", "position NFT contract address")
	flags.String("multicall3", "", "Multicall3 contract address")
	flags.String("currency0", "", "pool key currency0 address")
	flags.String("currency1", "", "pool key currency1 address")
	flags.Uint32("fee-tier", 0, "pool key fee")
	flags.Int32("tick-spacing", 0, "pool key tick spacing")
	flags.String("hooks", "", "pool key hooks address")
	flags.String("snapshot-file", "./data/positions.json", "local snapshot path")
	flags.String("pg-dsn", "", "Postgres DSN (overrides the file store)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server failed", zap.Error(err))
			}
		}()
		defer server.Close()
	}

	mon := monitor.New(
		monitor.Config{
			StartBlock:       cfg.StartBlock,
			CountdownSeconds: cfg.CountdownSeconds,
			BlocksPerScan:    cfg.BlocksPerScan,
		},
		app.store,
		app.scanner,
		app.validator,
		app.chain,
		seed.NewLoader(cfg.DataURL, cfg.DataURLBackup, logger),
		app.persist,
		nil,
		prometheus.DefaultRegisterer,
		logger,
	)

	initial, err := mon.Start(ctx)
	if err != nil {
		return err
	}
	logger.Info("monitor started",
		zap.Uint64("current_block", initial.Metadata.CurrentBlock),
		zap.Int("valid_positions", len(initial.ValidPositions)),
		zap.Int("nft_owners", len(initial.NFTOwners)),
	)

	<-ctx.Done()
	mon.Stop()
	<-mon.Done()
	return nil
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
