package workers

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.openly.dev/pointy"
	"golang.org/x/sync/errgroup"

	"github.com/sand/chain-feed/backend/internal/core/ports"
	"github.com/sand/chain-feed/backend/internal/entities"
	"github.com/sand/chain-feed/backend/internal/shared"
)

var percent = big.NewFloat(100)

// Enricher fetches a transaction and its receipt, derives the feed metrics and hands the result to the sink.
type Enricher struct {
	logger     *slog.Logger
	gateway    ports.ChainGateway
	classifier ports.LabelClassifier
	sink       ports.FeedSink
	gate       ports.ActivityGate

	mu       sync.Mutex
	inFlight map[string]struct{}

	now func() time.Time
}

func NewEnricher(
	logger *slog.Logger,
	gateway ports.ChainGateway,
	classifier ports.LabelClassifier,
	sink ports.FeedSink,
	gate ports.ActivityGate,
) *Enricher {
	return &Enricher{
		logger:     logger,
		gateway:    gateway,
		classifier: classifier,
		sink:       sink,
		gate:       gate,
		inFlight:   make(map[string]struct{}),
		now:        time.Now,
	}
}

// Enrich never returns an error: failures are logged and the hash is skipped.
// A hash already being enriched is ignored.
func (e *Enricher) Enrich(ctx context.Context, blockNumber uint64, hash string) {
	if !e.acquire(hash) {
		e.logger.DebugContext(ctx, "Transaction already in flight", "tx_hash", hash)
		return
	}
	defer e.release(hash)

	txID := uuid.New().String()
	startTime := time.Now()

	var (
		tx      *entities.RPCTransaction
		receipt *entities.RPCReceipt
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tx, err = e.gateway.TransactionByHash(gCtx, hash)
		return err
	})
	g.Go(func() error {
		var err error
		receipt, err = e.gateway.TransactionReceipt(gCtx, hash)
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			e.logger.DebugContext(ctx, "Transaction or receipt not found, skipping",
				"tx_id", txID,
				"tx_hash", hash,
				"block_number", blockNumber)
			return
		}
		e.logger.ErrorContext(ctx, "Failed to fetch transaction",
			"error", err,
			"tx_id", txID,
			"tx_hash", hash,
			"block_number", blockNumber,
			"duration", time.Since(startTime).String())
		return
	}
	if tx == nil || receipt == nil {
		return
	}

	record := BuildRecord(tx, receipt, e.classifier, e.now())
	record.BlockNumber = blockNumber
	if record.Hash == "" {
		record.Hash = hash
	}

	if e.gate != nil && !e.gate.Active() {
		e.logger.DebugContext(ctx, "Pipeline stopped, discarding enriched transaction", "tx_id", txID, "tx_hash", hash)
		return
	}

	e.sink.Upsert(record)

	e.logger.DebugContext(ctx, "Transaction enriched",
		"tx_id", txID,
		"tx_hash", hash,
		"block_number", blockNumber,
		"label", record.Label,
		"duration", time.Since(startTime).String())
}

// InFlight reports whether hash is currently being enriched.
func (e *Enricher) InFlight(hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[hash]
	return ok
}

func (e *Enricher) acquire(hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inFlight[hash]; ok {
		return false
	}
	e.inFlight[hash] = struct{}{}
	return true
}

func (e *Enricher) release(hash string) {
	e.mu.Lock()
	delete(e.inFlight, hash)
	e.mu.Unlock()
}

// BuildRecord derives the feed entry from a transaction and its receipt.
// Metrics whose inputs are missing are left nil.
func BuildRecord(
	tx *entities.RPCTransaction,
	receipt *entities.RPCReceipt,
	classifier ports.LabelClassifier,
	observedAt time.Time,
) entities.EnrichedTransaction {
	value := shared.ToBig(tx.Value)
	gasPrice := shared.ToBig(tx.GasPrice)
	effectiveGasPrice := shared.ToBig(receipt.EffectiveGasPrice)
	gasUsed := shared.ToBig(receipt.GasUsed)

	record := entities.EnrichedTransaction{
		Hash:           tx.Hash,
		From:           tx.From,
		Value:          shared.BigString(tx.Value),
		GasFee:         shared.BigString(receipt.EffectiveGasPrice),
		ObservedAt:     observedAt,
		MethodSelector: shared.MethodSelector(tx.Input),
		Slippage:       Slippage(gasPrice, effectiveGasPrice),
		PriceImpact:    PriceImpact(gasUsed, effectiveGasPrice, value),
	}
	if tx.To != nil {
		record.To = *tx.To
	}
	if receipt.EffectiveGasPrice == nil && tx.GasPrice != nil {
		record.GasFee = shared.BigString(tx.GasPrice)
	}

	record.Label = classifier.Classify(value, record.MethodSelector, record.Slippage, record.PriceImpact)
	return record
}

// Slippage is (effectiveGasPrice - gasPrice) / gasPrice * 100.
func Slippage(gasPrice, effectiveGasPrice *big.Int) *float64 {
	if gasPrice == nil || effectiveGasPrice == nil || gasPrice.Sign() == 0 {
		return nil
	}
	delta := new(big.Float).SetInt(new(big.Int).Sub(effectiveGasPrice, gasPrice))
	ratio := new(big.Float).Quo(delta, new(big.Float).SetInt(gasPrice))
	result, _ := ratio.Mul(ratio, percent).Float64()
	return pointy.Float64(result)
}

// PriceImpact is gasUsed * effectiveGasPrice / value * 100.
func PriceImpact(gasUsed, effectiveGasPrice, value *big.Int) *float64 {
	if gasUsed == nil || effectiveGasPrice == nil || value == nil || value.Sign() == 0 {
		return nil
	}
	cost := new(big.Float).SetInt(new(big.Int).Mul(gasUsed, effectiveGasPrice))
	ratio := new(big.Float).Quo(cost, new(big.Float).SetInt(value))
	result, _ := ratio.Mul(ratio, percent).Float64()
	return pointy.Float64(result)
}
