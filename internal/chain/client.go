package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// DefaultRateLimitDelay is the minimum gap between outbound requests.
const DefaultRateLimitDelay = 1250 * time.Millisecond

// Client wraps go-ethereum RPC with process-wide request pacing. All callers
// share one limiter, so concurrent use still observes the minimum gap.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	pacer     *rate.Limiter

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials the RPC URL. A non-positive pacingDelay falls back to
// DefaultRateLimitDelay.
func NewClient(ctx context.Context, rpcURL string, pacingDelay time.Duration) (*Client, error) {
	if pacingDelay <= 0 {
		pacingDelay = DefaultRateLimitDelay
	}

	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		pacer:     rate.NewLimiter(rate.Every(pacingDelay), 1),
		tsCache:   make(map[uint64]uint64),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) pace(ctx context.Context) error {
	return c.pacer.Wait(ctx)
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	id, err := c.ethClient.ChainID(ctx)
	return id, wrapRPCError(err)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if err := c.pace(ctx); err != nil {
		return 0, err
	}
	n, err := c.ethClient.BlockNumber(ctx)
	return n, wrapRPCError(err)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	header, err := c.ethClient.HeaderByNumber(ctx, number)
	return header, wrapRPCError(err)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given inclusive range matching the address
// and topic filters. Topics follow the eth_getLogs positional convention.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	address common.Address,
	topics [][]common.Hash,
) ([]types.Log, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{address},
		Topics:    topics,
	}
	logs, err := c.ethClient.FilterLogs(ctx, query)
	return logs, wrapRPCError(err)
}

// CallContract performs an eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	out, err := c.ethClient.CallContract(ctx, msg, nil)
	return out, wrapRPCError(err)
}

// wrapRPCError converts go-ethereum rpc errors into typed errors so callers
// can classify rate limiting.
func wrapRPCError(err error) error {
	if err == nil {
		return nil
	}
	if httpErr, ok := err.(rpc.HTTPError); ok {
		return &TransportError{Status: httpErr.StatusCode, Err: err}
	}
	if rpcErr, ok := err.(rpc.Error); ok {
		return &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	return err
}
