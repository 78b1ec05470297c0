package workers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sand/chain-feed/backend/internal/core/ports"
	"github.com/sand/chain-feed/backend/internal/entities"
)

var errUpstream = errors.New("upstream unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hexBig(v int64) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(v))
}

type fakeGateway struct {
	mu sync.Mutex

	head      uint64
	headErr   error
	headCalls int

	blocks        map[uint64][]string
	blockErr      map[uint64]error
	blockRequests []uint64

	txs          map[string]*entities.RPCTransaction
	receipts     map[string]*entities.RPCReceipt
	txErr        map[string]error
	txCalls      map[string]int
	receiptCalls map[string]int

	// release, when set, blocks transaction fetches until closed.
	release chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		blocks:       map[uint64][]string{},
		blockErr:     map[uint64]error{},
		txs:          map[string]*entities.RPCTransaction{},
		receipts:     map[string]*entities.RPCReceipt{},
		txErr:        map[string]error{},
		txCalls:      map[string]int{},
		receiptCalls: map[string]int{},
	}
}

func (g *fakeGateway) Relay(context.Context, string, ...any) (json.RawMessage, error) {
	return json.RawMessage(`null`), nil
}

func (g *fakeGateway) HeadBlockNumber(context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.headCalls++
	return g.head, g.headErr
}

func (g *fakeGateway) setHead(head uint64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.head, g.headErr = head, err
}

func (g *fakeGateway) BlockTransactionHashes(_ context.Context, number uint64) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockRequests = append(g.blockRequests, number)
	if err := g.blockErr[number]; err != nil {
		return nil, err
	}
	return g.blocks[number], nil
}

func (g *fakeGateway) TransactionByHash(_ context.Context, hash string) (*entities.RPCTransaction, error) {
	g.mu.Lock()
	g.txCalls[hash]++
	release := g.release
	g.mu.Unlock()

	if release != nil {
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.txErr[hash]; err != nil {
		return nil, err
	}
	tx, ok := g.txs[hash]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return tx, nil
}

func (g *fakeGateway) TransactionReceipt(_ context.Context, hash string) (*entities.RPCReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.receiptCalls[hash]++
	receipt, ok := g.receipts[hash]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return receipt, nil
}

func (g *fakeGateway) calls(hash string) (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.txCalls[hash], g.receiptCalls[hash]
}

type fakeGate struct {
	inactive atomic.Bool
	paused   atomic.Bool
}

func (g *fakeGate) Active() bool    { return !g.inactive.Load() }
func (g *fakeGate) ShouldRun() bool { return !g.paused.Load() }

type fakeStatus struct {
	mu        sync.Mutex
	errs      []error
	completed []uint64
}

func (s *fakeStatus) ReportError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *fakeStatus) TickCompleted(cursor uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, cursor)
}

type fakeProcessor struct {
	mu     sync.Mutex
	blocks []uint64
	hashes map[uint64][]string
	hook   func(blockNumber uint64)
}

func (p *fakeProcessor) ProcessBlock(_ context.Context, blockNumber uint64, hashes []string) {
	p.mu.Lock()
	p.blocks = append(p.blocks, blockNumber)
	if p.hashes == nil {
		p.hashes = map[uint64][]string{}
	}
	p.hashes[blockNumber] = hashes
	hook := p.hook
	p.mu.Unlock()

	if hook != nil {
		hook(blockNumber)
	}
}

func (p *fakeProcessor) processed() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.blocks...)
}

type fakeSink struct {
	mu  sync.Mutex
	txs []entities.EnrichedTransaction
}

func (s *fakeSink) Upsert(tx entities.EnrichedTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
}

func (s *fakeSink) all() []entities.EnrichedTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.EnrichedTransaction(nil), s.txs...)
}

type staticClassifier string

func (c staticClassifier) Classify(*big.Int, *string, *float64, *float64) string {
	return string(c)
}
