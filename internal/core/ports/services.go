package ports

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/sand/chain-feed/backend/internal/entities"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrPipelineStopped = errors.New("pipeline stopped")
	ErrTickInProgress  = errors.New("previous poll tick still in flight")
)

// ChainGateway relays JSON-RPC calls to the upstream node.
// Typed helpers return ErrNotFound when the node answers with a null result.
type ChainGateway interface {
	Relay(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	HeadBlockNumber(ctx context.Context) (uint64, error)
	BlockTransactionHashes(ctx context.Context, number uint64) ([]string, error)
	TransactionByHash(ctx context.Context, hash string) (*entities.RPCTransaction, error)
	TransactionReceipt(ctx context.Context, hash string) (*entities.RPCReceipt, error)
}

// LabelClassifier maps transaction features to a display label.
type LabelClassifier interface {
	Classify(value *big.Int, methodSelector *string, slippage, priceImpact *float64) string
}

// FeedSink receives enriched transactions.
type FeedSink interface {
	Upsert(tx entities.EnrichedTransaction)
}

// TransactionEnricher turns a transaction hash into a feed entry.
type TransactionEnricher interface {
	Enrich(ctx context.Context, blockNumber uint64, hash string)
}

// BlockProcessor handles the transaction hashes of one block.
type BlockProcessor interface {
	ProcessBlock(ctx context.Context, blockNumber uint64, hashes []string)
}

// StatusReporter collects the poller outcome shown to the UI.
type StatusReporter interface {
	ReportError(err error)
	TickCompleted(cursor uint64)
}

// ActivityGate tells long-running work whether it may continue.
type ActivityGate interface {
	// ShouldRun is false while paused or hidden.
	ShouldRun() bool
	// Active is false after teardown.
	Active() bool
}
