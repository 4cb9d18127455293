package validator

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/model"
)

// ChainCaller is the chain surface the validator needs.
type ChainCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// Config holds validator settings.
type Config struct {
	OwnerChecker        common.Address
	NFTContract         common.Address
	Multicall3          common.Address
	BatchSize           int
	SleepBetweenBatches time.Duration
	RateLimitRetries    int
}

// Validator resolves current owners for candidate positions through the
// on-chain owner checker, batched behind Multicall3.
type Validator struct {
	cfg    Config
	caller ChainCaller
	logger *zap.Logger
}

// Outcome is the result of one validation pass.
type Outcome struct {
	Valid            []model.Position
	Invalid          []model.Position
	Resolved         int
	Unresolved       int
	OwnershipChanges int
}

// ErrNoResolution is returned when no token could be resolved at all. The
// caller must keep the previous store contents in that case.
var ErrNoResolution = fmt.Errorf("validator: no tokens resolved")

func New(cfg Config, caller ChainCaller, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SleepBetweenBatches <= 0 {
		cfg.SleepBetweenBatches = 600 * time.Millisecond
	}
	if cfg.RateLimitRetries <= 0 {
		cfg.RateLimitRetries = 5
	}
	return &Validator{cfg: cfg, caller: caller, logger: logger}
}

// Validate classifies every candidate by its resolved on-chain owner. Tokens
// in batches that fail with a non-rate-limit error stay unresolved and keep
// whatever owner the merge gave them, so a previously valid position is not
// flipped by a transient provider failure.
func (v *Validator) Validate(ctx context.Context, candidates []model.Position) (Outcome, error) {
	outcome := Outcome{}
	if len(candidates) == 0 {
		return outcome, nil
	}

	tokenIDs := dedupTokenIDs(candidates)
	resolved := make(map[string]string, len(tokenIDs))

	for start := 0; start < len(tokenIDs); start += v.cfg.BatchSize {
		end := start + v.cfg.BatchSize
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batch := tokenIDs[start:end]

		owners, err := v.resolveBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			v.logger.Warn("batch unresolved",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			outcome.Unresolved += len(batch)
		} else {
			for i, tokenID := range batch {
				resolved[tokenID] = strings.ToLower(owners[i].Hex())
			}
			outcome.Resolved += len(batch)
		}

		if end < len(tokenIDs) {
			if err := sleepCtx(ctx, v.cfg.SleepBetweenBatches); err != nil {
				return outcome, err
			}
		}
	}

	if outcome.Resolved == 0 {
		return outcome, ErrNoResolution
	}

	for _, candidate := range candidates {
		owner, ok := resolved[candidate.TokenID]
		if ok {
			if candidate.HasOwner() && owner != model.ZeroAddress && owner != candidate.Owner {
				outcome.OwnershipChanges++
			}
			if owner == model.ZeroAddress {
				candidate.Owner = model.OwnerUnknown
			} else {
				candidate.Owner = owner
			}
		}
		if candidate.HasOwner() {
			outcome.Valid = append(outcome.Valid, candidate)
		} else {
			candidate.Owner = model.OwnerUnknown
			outcome.Invalid = append(outcome.Invalid, candidate)
		}
	}

	v.logger.Info("validation complete",
		zap.Int("valid", len(outcome.Valid)),
		zap.Int("invalid", len(outcome.Invalid)),
		zap.Int("unresolved", outcome.Unresolved),
		zap.Int("ownership_changes", outcome.OwnershipChanges),
	)
	return outcome, nil
}

// resolveBatch issues one multicall for a batch, retrying only on rate
// limiting with the validator's own schedule.
func (v *Validator) resolveBatch(ctx context.Context, tokenIDs []string) ([]common.Address, error) {
	var lastErr error
	for attempt := 0; attempt <= v.cfg.RateLimitRetries; attempt++ {
		owners, err := v.callOwners(ctx, tokenIDs)
		if err == nil {
			return owners, nil
		}
		lastErr = err
		if !chain.IsRateLimit(err) {
			return nil, err
		}

		delay := time.Duration(2000*(1<<uint(attempt)))*time.Millisecond +
			time.Duration(rand.Int63n(1000))*time.Millisecond
		v.logger.Warn("batch rate limited, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

type multicall3Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type multicall3Result struct {
	Success    bool
	ReturnData []byte
}

func (v *Validator) callOwners(ctx context.Context, tokenIDs []string) ([]common.Address, error) {
	checkerABI, multicallABI, err := loadABIs()
	if err != nil {
		return nil, err
	}

	ids := make([]*big.Int, 0, len(tokenIDs))
	for _, tokenID := range tokenIDs {
		n, ok := new(big.Int).SetString(tokenID, 10)
		if !ok {
			return nil, fmt.Errorf("invalid token id: %s", tokenID)
		}
		ids = append(ids, n)
	}

	innerData, err := checkerABI.Pack("getOwnersSafe", v.cfg.NFTContract, ids)
	if err != nil {
		return nil, fmt.Errorf("pack getOwnersSafe: %w", err)
	}

	callData, err := multicallABI.Pack("aggregate3", []multicall3Call{{
		Target:       v.cfg.OwnerChecker,
		AllowFailure: true,
		CallData:     innerData,
	}})
	if err != nil {
		return nil, fmt.Errorf("pack aggregate3: %w", err)
	}

	msg := ethereum.CallMsg{To: &v.cfg.Multicall3, Data: callData}
	resp, err := v.caller.CallContract(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("multicall: %w", err)
	}

	values, err := multicallABI.Unpack("aggregate3", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	results := *abi.ConvertType(values[0], new([]multicall3Result)).(*[]multicall3Result)
	if len(results) != 1 {
		return nil, fmt.Errorf("unexpected multicall results: %d", len(results))
	}
	if !results[0].Success {
		return nil, fmt.Errorf("getOwnersSafe reverted")
	}

	ownerValues, err := checkerABI.Unpack("getOwnersSafe", results[0].ReturnData)
	if err != nil {
		return nil, fmt.Errorf("unpack getOwnersSafe: %w", err)
	}
	owners := *abi.ConvertType(ownerValues[0], new([]common.Address)).(*[]common.Address)
	if len(owners) != len(tokenIDs) {
		return nil, fmt.Errorf("owner count mismatch: %d != %d", len(owners), len(tokenIDs))
	}
	return owners, nil
}

func dedupTokenIDs(candidates []model.Position) []string {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.TokenID]; ok {
			continue
		}
		seen[c.TokenID] = struct{}{}
		out = append(out, c.TokenID)
	}
	sort.Strings(out)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
