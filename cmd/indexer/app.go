package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/config"
	"positionScope/internal/model"
	"positionScope/internal/progress"
	"positionScope/internal/scanner"
	"positionScope/internal/storage"
	"positionScope/internal/storage/postgres"
	"positionScope/internal/store"
	"positionScope/internal/validator"
)

// app bundles the wired core components shared by run and scan.
type app struct {
	chain     *chain.Client
	store     *store.Store
	scanner   *scanner.Scanner
	validator *validator.Validator
	persist   storage.SnapshotStore
	pgStore   *postgres.Store
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	poolManager, err := parseAddress("pool-manager", cfg.PoolManager)
	if err != nil {
		return nil, err
	}
	ownerChecker, err := parseAddress("owner-checker", cfg.OwnerChecker)
	if err != nil {
		return nil, err
	}
	nftContract, err := parseAddress("nft-contract", cfg.NFTContract)
	if err != nil {
		return nil, err
	}
	multicall3, err := parseAddress("multicall3", cfg.Multicall3)
	if err != nil {
		return nil, err
	}

	poolID, err := resolvePoolID(cfg, logger)
	if err != nil {
		return nil, err
	}

	topic0Hex := cfg.ModifyLiquidityTopic
	if topic0Hex == "" {
		topic0Hex, err = scanner.ModifyLiquidityTopic()
		if err != nil {
			return nil, err
		}
	}
	topic0, err := parseHash("modify-liquidity-topic", topic0Hex)
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RateLimitDelay)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	retryCfg := chain.RetryConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseRetryDelay,
		MaxDelay:   cfg.MaxRetryDelay,
	}
	if retryCfg.BaseDelay <= 0 || retryCfg.MaxDelay <= 0 {
		defaults := chain.DefaultRetryConfig()
		if retryCfg.BaseDelay <= 0 {
			retryCfg.BaseDelay = defaults.BaseDelay
		}
		if retryCfg.MaxDelay <= 0 {
			retryCfg.MaxDelay = defaults.MaxDelay
		}
	}

	positions := store.New(logger)

	logScanner := scanner.New(scanner.Config{
		PoolManager: poolManager,
		Topic0:      topic0,
		PoolID:      poolID,
		PageSize:    cfg.EffectivePageSize(),
		MaxLogs:     cfg.MaxLogsPerRequest,
		Retry:       retryCfg,
	}, chainClient, progress.Nop{}, logger)

	ownerValidator := validator.New(validator.Config{
		OwnerChecker:        ownerChecker,
		NFTContract:         nftContract,
		Multicall3:          multicall3,
		BatchSize:           cfg.BatchSize,
		SleepBetweenBatches: cfg.SleepBetweenBatches,
	}, chainClient, logger)

	a := &app{
		chain:     chainClient,
		store:     positions,
		scanner:   logScanner,
		validator: ownerValidator,
	}

	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN, "positions")
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pgStore = pgStore
		a.persist = pgStore
	} else {
		a.persist = storage.NewFileStore(cfg.SnapshotFile)
	}

	return a, nil
}

func (a *app) Close() {
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.chain != nil {
		a.chain.Close()
	}
}

// resolvePoolID returns the topic1 filter. When the full pool key is
// configured, its hash must agree with an explicitly configured pool id; a
// mismatched filter would silently return nothing.
func resolvePoolID(cfg config.Config, logger *zap.Logger) (common.Hash, error) {
	haveKey := cfg.Currency0 != "" && cfg.Currency1 != "" && cfg.Hooks != ""

	var keyID common.Hash
	if haveKey {
		key, err := model.ParsePoolKey(cfg.Currency0, cfg.Currency1, cfg.FeeTier, cfg.TickSpacing, cfg.Hooks)
		if err != nil {
			return common.Hash{}, err
		}
		keyID = key.ID()
	}

	if cfg.PoolID == "" {
		if !haveKey {
			return common.Hash{}, fmt.Errorf("pool-id or full pool key (currency0, currency1, hooks) is required")
		}
		logger.Info("pool id derived from pool key", zap.String("pool_id", keyID.Hex()))
		return keyID, nil
	}

	poolID, err := parseHash("pool-id", cfg.PoolID)
	if err != nil {
		return common.Hash{}, err
	}
	if haveKey && poolID != keyID {
		return common.Hash{}, fmt.Errorf("pool-id %s does not match pool key hash %s", poolID.Hex(), keyID.Hex())
	}
	return poolID, nil
}

func parseAddress(name, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, input)
	}
	return common.HexToAddress(input), nil
}

func parseHash(name, input string) (common.Hash, error) {
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid %s: %q", name, input)
	}
	if len(data) != 32 {
		return common.Hash{}, fmt.Errorf("invalid %s length: %q", name, input)
	}
	return common.BytesToHash(data), nil
}
