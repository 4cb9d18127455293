package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"positionScope/internal/config"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
)

func runSnapshot(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var snapStore storage.SnapshotStore
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN, "positions")
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		snapStore = pgStore
	} else {
		snapStore = storage.NewFileStore(cfg.SnapshotFile)
	}

	snap, ok, err := snapStore.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no snapshot found")
		return nil
	}

	fmt.Printf("current_block:      %d\n", snap.Metadata.CurrentBlock)
	fmt.Printf("last_updated:       %s\n", snap.Metadata.LastUpdated)
	fmt.Printf("valid_positions:    %d\n", len(snap.ValidPositions))
	fmt.Printf("invalid_positions:  %d\n", len(snap.InvalidPositions))
	fmt.Printf("nft_owners:         %d\n", len(snap.NFTOwners))
	return nil
}
