package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"positionScope/internal/config"
	"positionScope/internal/monitor"
	"positionScope/internal/seed"
)

func runScan(cmd *cobra.Command, _ []string) error {
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

	loader := seed.NewLoader(cfg.DataURL, cfg.DataURLBackup, logger)
	remote, haveRemote := loader.FetchRemote(ctx)
	local, haveLocal, err := app.persist.Load(ctx)
	if err != nil {
		logger.Warn("local snapshot load failed", zap.Error(err))
		haveLocal = false
	}
	chosen, source := seed.Choose(remote, haveRemote, local, haveLocal, logger)
	if source != seed.SourceNone {
		app.store.Seed(chosen)
	} else if cfg.StartBlock > 0 {
		app.store.SetCursor(cfg.StartBlock)
	}

	mon := monitor.New(
		monitor.Config{
			StartBlock:    cfg.StartBlock,
			BlocksPerScan: cfg.BlocksPerScan,
		},
		app.store,
		app.scanner,
		app.validator,
		app.chain,
		nil,
		app.persist,
		nil,
		nil,
		logger,
	)

	if err := mon.Reconcile(ctx); err != nil {
		return err
	}

	snap := app.store.Snapshot()
	logger.Info("scan complete",
		zap.Uint64("current_block", snap.Metadata.CurrentBlock),
		zap.Int("valid_positions", len(snap.ValidPositions)),
		zap.Int("invalid_positions", len(snap.InvalidPositions)),
		zap.Int("nft_owners", len(snap.NFTOwners)),
	)
	return nil
}
