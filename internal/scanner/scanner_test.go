package scanner

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"positionScope/internal/chain"
)

var (
	testPoolID  = common.HexToHash("0x0000000000000000000000000000000000000000000000000000000000000abc")
	testManager = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSender  = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
)

type fakeReader struct {
	filterFn func(from, to uint64) ([]types.Log, error)
	ranges   [][2]uint64
}

func (f *fakeReader) FilterLogs(_ context.Context, from, to uint64, _ common.Address, _ [][]common.Hash) ([]types.Log, error) {
	f.ranges = append(f.ranges, [2]uint64{from, to})
	if f.filterFn == nil {
		return nil, nil
	}
	return f.filterFn(from, to)
}

func (f *fakeReader) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1700000000 + number, nil
}

func testScanner(reader ChainReader) *Scanner {
	topic0, _ := ModifyLiquidityTopic()
	return New(Config{
		PoolManager: testManager,
		Topic0:      common.HexToHash(topic0),
		PoolID:      testPoolID,
		PageSize:    1000,
		Retry:       chain.RetryConfig{MaxRetries: 0, BaseDelay: time.Millisecond},
	}, reader, nil, nil)
}

func modifyLiquidityLog(t *testing.T, block uint64, salt [32]byte) types.Log {
	t.Helper()
	parsed, err := PoolManagerABI()
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	event := parsed.Events["ModifyLiquidity"]

	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(-600),
		big.NewInt(600),
		big.NewInt(1000000),
		salt,
	)
	if err != nil {
		t.Fatalf("pack data: %v", err)
	}

	return types.Log{
		Address:     testManager,
		Topics:      []common.Hash{event.ID, testPoolID, common.BytesToHash(testSender.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.HexToHash("0xdead"),
	}
}

func TestScanDecodesCandidate(t *testing.T) {
	var salt [32]byte
	salt[31] = 42

	reader := &fakeReader{filterFn: func(from, to uint64) ([]types.Log, error) {
		return []types.Log{modifyLiquidityLog(t, 500, salt)}, nil
	}}

	result, err := testScanner(reader).Scan(context.Background(), 400, 600, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}

	c := result.Candidates[0]
	if c.TokenID != "42" {
		t.Fatalf("token id mismatch: %q", c.TokenID)
	}
	if c.PoolID != testPoolID.Hex() {
		t.Fatalf("pool id mismatch: %q", c.PoolID)
	}
	if c.Sender != "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("sender not normalized: %q", c.Sender)
	}
	if c.TickLower != -600 || c.TickUpper != 600 {
		t.Fatalf("ticks mismatch: %d %d", c.TickLower, c.TickUpper)
	}
	if c.LiquidityDelta != "1000000" {
		t.Fatalf("liquidity delta mismatch: %q", c.LiquidityDelta)
	}
	if c.Timestamp != 1700000500 {
		t.Fatalf("timestamp mismatch: %d", c.Timestamp)
	}
	if result.NextCursor != 601 {
		t.Fatalf("next cursor mismatch: %d", result.NextCursor)
	}
}

func TestScanSkipsZeroSalt(t *testing.T) {
	reader := &fakeReader{filterFn: func(from, to uint64) ([]types.Log, error) {
		return []types.Log{modifyLiquidityLog(t, 500, [32]byte{})}, nil
	}}

	result, err := testScanner(reader).Scan(context.Background(), 400, 600, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(result.Candidates))
	}
	if result.SkippedZeroSalt != 1 {
		t.Fatalf("expected 1 skipped log, got %d", result.SkippedZeroSalt)
	}
}

func TestScanPagesSubRanges(t *testing.T) {
	reader := &fakeReader{}
	s := testScanner(reader)
	s.cfg.PageSize = 100

	result, err := s.Scan(context.Background(), 0, 249, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	want := [][2]uint64{{0, 99}, {100, 199}, {200, 249}}
	if len(reader.ranges) != len(want) {
		t.Fatalf("expected %d sub-ranges, got %d", len(want), len(reader.ranges))
	}
	for i, r := range want {
		if reader.ranges[i] != r {
			t.Fatalf("sub-range %d mismatch: %v != %v", i, reader.ranges[i], r)
		}
	}
	if result.NextCursor != 250 {
		t.Fatalf("next cursor mismatch: %d", result.NextCursor)
	}
}

func TestScanCursorStopsAtFailure(t *testing.T) {
	reader := &fakeReader{filterFn: func(from, to uint64) ([]types.Log, error) {
		if from >= 100 {
			return nil, errors.New("provider down")
		}
		return nil, nil
	}}
	s := testScanner(reader)
	s.cfg.PageSize = 100

	result, err := s.Scan(context.Background(), 0, 299, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if result.NextCursor != 100 {
		t.Fatalf("cursor should cover only the completed sub-range, got %d", result.NextCursor)
	}
}

func TestScanHonorsStop(t *testing.T) {
	reader := &fakeReader{}
	s := testScanner(reader)
	s.cfg.PageSize = 100

	result, err := s.Scan(context.Background(), 0, 299, func() bool { return true })
	if err != nil {
		t.Fatalf("stop is not an error: %v", err)
	}
	if len(reader.ranges) != 0 {
		t.Fatalf("no sub-range should run after stop, got %d", len(reader.ranges))
	}
	if result.NextCursor != 0 {
		t.Fatalf("cursor should not advance, got %d", result.NextCursor)
	}
}

func TestScanRecordsDecodeFailures(t *testing.T) {
	bad := types.Log{
		Address:     testManager,
		Topics:      []common.Hash{testPoolID}, // missing sender topic
		BlockNumber: 77,
		TxHash:      common.HexToHash("0xbeef"),
	}
	reader := &fakeReader{filterFn: func(from, to uint64) ([]types.Log, error) {
		return []types.Log{bad}, nil
	}}

	result, err := testScanner(reader).Scan(context.Background(), 0, 99, nil)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(result.DecodeFailures) != 1 {
		t.Fatalf("expected 1 decode failure, got %d", len(result.DecodeFailures))
	}
	if result.DecodeFailures[0].BlockNumber != 77 {
		t.Fatalf("decode failure block mismatch: %d", result.DecodeFailures[0].BlockNumber)
	}
	if result.NextCursor != 100 {
		t.Fatalf("decode failures must not stall the cursor, got %d", result.NextCursor)
	}
}

func TestScanEmptyWindow(t *testing.T) {
	reader := &fakeReader{}
	result, err := testScanner(reader).Scan(context.Background(), 200, 100, nil)
	if err != nil {
		t.Fatalf("inverted window is a no-op: %v", err)
	}
	if len(reader.ranges) != 0 {
		t.Fatalf("no RPC expected for inverted window")
	}
	if result.NextCursor != 200 {
		t.Fatalf("cursor mismatch: %d", result.NextCursor)
	}
}
