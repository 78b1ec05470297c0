// Package gateway relays JSON-RPC calls to the upstream chain node.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/sand/chain-feed/backend/internal/core/ports"
	"github.com/sand/chain-feed/backend/internal/entities"
)

var (
	ErrMissingRPCURL = errors.New("upstream rpc url is not configured")
	ErrNotFound      = ports.ErrNotFound
)

// Gateway is a thin client over the upstream node. It interprets nothing beyond the JSON-RPC envelope.
type Gateway struct {
	logger  *slog.Logger
	client  *rpc.Client
	timeout time.Duration
}

// Dial connects to rpcURL. An empty URL is a fatal misconfiguration.
func Dial(ctx context.Context, logger *slog.Logger, rpcURL string, timeout time.Duration) (*Gateway, error) {
	if rpcURL == "" {
		return nil, ErrMissingRPCURL
	}

	client, err := rpc.DialOptions(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to upstream node: %w", err)
	}

	return New(logger, client, timeout), nil
}

func New(logger *slog.Logger, client *rpc.Client, timeout time.Duration) *Gateway {
	return &Gateway{
		logger:  logger,
		client:  client,
		timeout: timeout,
	}
}

func (g *Gateway) Close() {
	g.client.Close()
}

// Relay forwards method and params and returns the raw result.
// Errors reported by the node are returned as *entities.RPCError.
func (g *Gateway) Relay(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var result json.RawMessage
	if err := g.client.CallContext(ctx, &result, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			upstream := &entities.RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
			var dataErr rpc.DataError
			if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
				upstream.Data, _ = json.Marshal(dataErr.ErrorData())
			}
			return nil, upstream
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	g.logger.DebugContext(ctx, "rpc call completed", "method", method, "bytes", len(result))
	return result, nil
}

func (g *Gateway) HeadBlockNumber(ctx context.Context) (uint64, error) {
	var head hexutil.Uint64
	if err := g.call(ctx, &head, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(head), nil
}

// BlockTransactionHashes returns the hashes of the block's transactions in block order.
func (g *Gateway) BlockTransactionHashes(ctx context.Context, number uint64) ([]string, error) {
	var block entities.RPCBlock
	if err := g.call(ctx, &block, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	return block.Transactions, nil
}

func (g *Gateway) TransactionByHash(ctx context.Context, hash string) (*entities.RPCTransaction, error) {
	var tx entities.RPCTransaction
	if err := g.call(ctx, &tx, "eth_getTransactionByHash", common.HexToHash(hash)); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (g *Gateway) TransactionReceipt(ctx context.Context, hash string) (*entities.RPCReceipt, error) {
	var receipt entities.RPCReceipt
	if err := g.call(ctx, &receipt, "eth_getTransactionReceipt", common.HexToHash(hash)); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// call relays and decodes; a null result becomes ErrNotFound.
func (g *Gateway) call(ctx context.Context, out any, method string, params ...any) error {
	raw, err := g.Relay(ctx, method, params...)
	if errors.Is(err, rpc.ErrNoResult) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ErrNotFound
	}
	if err = json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
