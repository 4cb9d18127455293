package scanner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"positionScope/internal/chain"
	"positionScope/internal/model"
	"positionScope/internal/progress"
)

// ChainReader is the chain surface the scanner needs.
type ChainReader interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, address common.Address, topics [][]common.Hash) ([]types.Log, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
}

// Config holds scanner settings. PageSize is the effective sub-range size;
// callers cap it at the provider's block-range limit.
type Config struct {
	PoolManager common.Address
	Topic0      common.Hash
	PoolID      common.Hash
	PageSize    uint64
	MaxLogs     int
	Retry       chain.RetryConfig
}

// Scanner pages through block ranges and decodes ModifyLiquidity logs into
// candidate position records.
type Scanner struct {
	cfg    Config
	chain  ChainReader
	logger *zap.Logger
	sink   progress.Sink
}

// Result is the outcome of one scan window. NextCursor is the next block to
// scan; it only covers fully processed sub-ranges.
type Result struct {
	Candidates      []model.Position
	NextCursor      uint64
	SkippedZeroSalt int
	DecodeFailures  []model.DecodeError
}

func New(cfg Config, chainReader ChainReader, sink progress.Sink, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 1000
	}
	return &Scanner{cfg: cfg, chain: chainReader, logger: logger, sink: sink}
}

// Scan processes [from, to] in ascending sub-ranges. stop is checked at the
// top of each sub-range; a nil stop never interrupts. On a sub-range failure
// the result covers the sub-ranges that succeeded and the error is returned,
// so the caller's cursor never moves past unprocessed blocks.
func (s *Scanner) Scan(ctx context.Context, from, to uint64, stop func() bool) (Result, error) {
	result := Result{NextCursor: from}
	if to < from {
		return result, nil
	}

	ranges, err := SplitRange(from, to, s.cfg.PageSize)
	if err != nil {
		return result, err
	}

	s.sink.OnShow()
	defer s.sink.OnHide()

	for i, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if stop != nil && stop() {
			s.logger.Info("scan stopped", zap.Uint64("next_cursor", result.NextCursor))
			return result, nil
		}

		s.sink.OnStatus(fmt.Sprintf("Scanning blocks %d-%d", blockRange.From, blockRange.To))

		logs, err := s.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return result, fmt.Errorf("filter logs [%d,%d]: %w", blockRange.From, blockRange.To, err)
		}
		if s.cfg.MaxLogs > 0 && len(logs) >= s.cfg.MaxLogs {
			s.logger.Warn("log count at provider cap, response may be truncated",
				zap.Int("logs", len(logs)),
				zap.Uint64("from", blockRange.From),
				zap.Uint64("to", blockRange.To),
			)
		}

		for _, log := range logs {
			candidate, err := s.decode(ctx, log)
			if err != nil {
				result.DecodeFailures = append(result.DecodeFailures, decodeFailure(log, err))
				s.logger.Warn("decode log failed",
					zap.Uint64("block", log.BlockNumber),
					zap.String("tx", log.TxHash.Hex()),
					zap.Error(err),
				)
				continue
			}
			if candidate == nil {
				result.SkippedZeroSalt++
				continue
			}
			result.Candidates = append(result.Candidates, *candidate)
		}

		result.NextCursor = blockRange.To + 1
		s.sink.OnProgress(float64(i+1) / float64(len(ranges)) * 100)

		s.logger.Debug("sub-range complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("logs", len(logs)),
		)
	}

	s.logger.Info("scan window complete",
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("skipped_zero_salt", result.SkippedZeroSalt),
	)
	return result, nil
}

func (s *Scanner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := chain.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		logs, err = s.chain.FilterLogs(ctx, fromBlock, toBlock, s.cfg.PoolManager, [][]common.Hash{
			{s.cfg.Topic0},
			{s.cfg.PoolID},
		})
		if err != nil {
			s.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

// decode turns one ModifyLiquidity log into a candidate. A nil candidate
// with nil error means the log is a direct pool interaction (salt zero).
func (s *Scanner) decode(ctx context.Context, log types.Log) (*model.Position, error) {
	parsed, err := PoolManagerABI()
	if err != nil {
		return nil, err
	}
	event := parsed.Events["ModifyLiquidity"]

	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack data: %w", err)
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("unexpected value count: %d", len(values))
	}

	tickLower, err := int24FromValue(values[0])
	if err != nil {
		return nil, fmt.Errorf("tickLower: %w", err)
	}
	tickUpper, err := int24FromValue(values[1])
	if err != nil {
		return nil, fmt.Errorf("tickUpper: %w", err)
	}
	liquidityDelta, err := asBigInt(values[2])
	if err != nil {
		return nil, fmt.Errorf("liquidityDelta: %w", err)
	}
	salt, err := asBytes32(values[3])
	if err != nil {
		return nil, fmt.Errorf("salt: %w", err)
	}

	tokenID := new(big.Int).SetBytes(salt[:])
	if tokenID.Sign() == 0 {
		return nil, nil
	}

	ts, err := s.blockTimestampWithRetry(ctx, log.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
	}

	sender := common.BytesToAddress(log.Topics[2].Bytes())

	candidate := model.Position{
		TokenID:        tokenID.String(),
		PoolID:         log.Topics[1].Hex(),
		Salt:           common.Hash(salt).Hex(),
		Sender:         sender.Hex(),
		Owner:          model.OwnerUnknown,
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		LiquidityDelta: liquidityDelta.String(),
		BlockNumber:    log.BlockNumber,
		TxHash:         log.TxHash.Hex(),
		Timestamp:      ts,
	}
	candidate.Normalize()
	return &candidate, nil
}

func (s *Scanner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := chain.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var err error
		ts, err = s.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			s.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func decodeFailure(log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return model.DecodeError{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
