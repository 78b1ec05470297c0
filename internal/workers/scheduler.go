package workers

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sand/chain-feed/backend/internal/core/ports"
)

// BatchScheduler enriches a block's hashes in fixed-size batches: one batch at a time,
// every hash of a batch concurrently, with a pacing delay between batches.
type BatchScheduler struct {
	logger   *slog.Logger
	enricher ports.TransactionEnricher
	gate     ports.ActivityGate

	batchSize  int
	batchDelay time.Duration
}

func NewBatchScheduler(
	logger *slog.Logger,
	enricher ports.TransactionEnricher,
	gate ports.ActivityGate,
	batchSize int,
	batchDelay time.Duration,
) *BatchScheduler {
	if batchSize <= 0 {
		batchSize = ports.DefaultBatchSize
	}
	if batchDelay < 0 {
		batchDelay = 0
	}
	return &BatchScheduler{
		logger:     logger,
		enricher:   enricher,
		gate:       gate,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// ProcessBlock returns once every dispatched batch has settled. Dispatch stops early when the
// pipeline is paused, hidden or torn down; tasks already started are not cancelled.
func (s *BatchScheduler) ProcessBlock(ctx context.Context, blockNumber uint64, hashes []string) {
	batches := Partition(hashes, s.batchSize)
	if len(batches) == 0 {
		return
	}

	startTime := time.Now()
	// In-flight enrichment outlives teardown; its result is dropped by the enricher's gate check.
	taskCtx := context.WithoutCancel(ctx)

	for i, batch := range batches {
		if i > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.batchDelay):
			}
		}

		if !s.gate.Active() || !s.gate.ShouldRun() {
			s.logger.InfoContext(ctx, "Batch dispatch stopped",
				"block_number", blockNumber,
				"dispatched_batches", i,
				"total_batches", len(batches))
			return
		}

		var g errgroup.Group
		g.SetLimit(len(batch))
		for _, hash := range batch {
			hash := hash
			g.Go(func() error {
				s.enricher.Enrich(taskCtx, blockNumber, hash)
				return nil
			})
		}
		_ = g.Wait()
	}

	s.logger.DebugContext(ctx, "Block transactions dispatched",
		"block_number", blockNumber,
		"tx_count", len(hashes),
		"batches", len(batches),
		"duration", time.Since(startTime).String())
}

// Partition splits hashes into contiguous batches of at most size elements.
func Partition(hashes []string, size int) [][]string {
	if size <= 0 {
		size = ports.DefaultBatchSize
	}
	batches := make([][]string, 0, (len(hashes)+size-1)/size)
	for start := 0; start < len(hashes); start += size {
		end := min(start+size, len(hashes))
		batches = append(batches, hashes[start:end])
	}
	return batches
}
