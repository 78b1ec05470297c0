package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sand/chain-feed/backend/internal/core/ports"
)

// BlockPoller tracks the last processed block and, on every tick, hands each new block's
// transaction hashes to the processor in ascending order.
type BlockPoller struct {
	logger    *slog.Logger
	gateway   ports.ChainGateway
	processor ports.BlockProcessor
	gate      ports.ActivityGate
	status    ports.StatusReporter

	interval       time.Duration
	bootstrapDepth uint64

	mu        sync.Mutex
	cursor    uint64
	cursorSet bool

	ticking atomic.Bool
}

func NewBlockPoller(
	logger *slog.Logger,
	gateway ports.ChainGateway,
	processor ports.BlockProcessor,
	gate ports.ActivityGate,
	status ports.StatusReporter,
	interval time.Duration,
	bootstrapDepth int,
) *BlockPoller {
	if interval <= 0 {
		interval = ports.DefaultPollInterval
	}
	if bootstrapDepth < 0 {
		bootstrapDepth = ports.DefaultBootstrapDepth
	}
	return &BlockPoller{
		logger:         logger,
		gateway:        gateway,
		processor:      processor,
		gate:           gate,
		status:         status,
		interval:       interval,
		bootstrapDepth: uint64(bootstrapDepth),
	}
}

// Run ticks immediately and then every interval until ctx is done. Ticks run on this goroutine,
// so a slow tick delays the next one instead of overlapping it.
func (p *BlockPoller) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "Starting block poller",
		"interval", p.interval.String(),
		"bootstrap_depth", p.bootstrapDepth)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "Block poller stopped")
			return
		case <-ticker.C:
			p.runTick(ctx)
		}
	}
}

func (p *BlockPoller) runTick(ctx context.Context) {
	if !p.gate.Active() || !p.gate.ShouldRun() {
		return
	}
	if err := p.Tick(ctx); err != nil {
		p.logger.DebugContext(ctx, "Poll tick ended early", "error", err)
	}
}

// Tick performs one poll: fetch head, process the pending range, advance the cursor.
func (p *BlockPoller) Tick(ctx context.Context) error {
	if !p.ticking.CompareAndSwap(false, true) {
		return ports.ErrTickInProgress
	}
	defer p.ticking.Store(false)

	if !p.gate.Active() {
		return ports.ErrPipelineStopped
	}

	head, err := p.gateway.HeadBlockNumber(ctx)
	if err != nil {
		err = fmt.Errorf("failed to get latest block number: %w", err)
		if p.gate.Active() {
			p.status.ReportError(err)
		}
		p.logger.ErrorContext(ctx, "Failed to get latest block number", "error", err)
		return err
	}

	if !p.gate.Active() {
		return ports.ErrPipelineStopped
	}

	from, to, pending := p.pendingRange(head)
	if !pending {
		p.status.TickCompleted(head)
		return nil
	}

	startTime := time.Now()
	p.logger.InfoContext(ctx, "New blocks detected", "from", from, "to", to)

	for blockNum := from; blockNum <= to; blockNum++ {
		if !p.gate.Active() {
			return ports.ErrPipelineStopped
		}

		hashes, e := p.gateway.BlockTransactionHashes(ctx, blockNum)
		if e != nil {
			p.logger.ErrorContext(ctx, "Failed to get block", "block", blockNum, "error", e)
			continue
		}

		p.processor.ProcessBlock(ctx, blockNum, hashes)
	}

	if !p.gate.Active() {
		return ports.ErrPipelineStopped
	}

	p.advance(head)
	p.status.TickCompleted(head)

	p.logger.InfoContext(ctx, "Block range processed",
		"from", from,
		"to", to,
		"duration", time.Since(startTime).String())
	return nil
}

// Cursor returns the last fully processed block and whether one has been processed yet.
func (p *BlockPoller) Cursor() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor, p.cursorSet
}

// pendingRange returns the inclusive block range still to process for head.
func (p *BlockPoller) pendingRange(head uint64) (from, to uint64, pending bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.cursorSet {
		from = 0
		if head > p.bootstrapDepth {
			from = head - p.bootstrapDepth
		}
		return from, head, true
	}
	if head > p.cursor {
		return p.cursor + 1, head, true
	}
	return 0, 0, false
}

func (p *BlockPoller) advance(head uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.cursorSet || head > p.cursor {
		p.cursor = head
		p.cursorSet = true
	}
}
