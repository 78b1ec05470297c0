package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sand/chain-feed/backend/config"
	"github.com/sand/chain-feed/backend/internal/core/ports"
	"github.com/sand/chain-feed/backend/internal/entities"
	"github.com/sand/chain-feed/backend/internal/feed"
	"github.com/sand/chain-feed/backend/internal/workers"
)

var ErrMissingGateway = errors.New("feed service requires an upstream gateway")

var (
	_ ports.ActivityGate   = (*FeedService)(nil)
	_ ports.StatusReporter = (*FeedService)(nil)
)

// FeedService is the pipeline context: it owns the buffer and the workers for one chain
// and is torn down explicitly with Stop.
type FeedService struct {
	logger *slog.Logger

	buffer    *feed.Buffer
	enricher  *workers.Enricher
	scheduler *workers.BatchScheduler
	poller    *workers.BlockPoller

	mu      sync.RWMutex
	paused  bool
	visible bool
	loading bool
	lastErr string

	lifeMu  sync.Mutex
	active  atomic.Bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	subsMu      sync.Mutex
	subscribers map[chan struct{}]struct{}
}

func NewFeedService(
	logger *slog.Logger,
	cfg config.Feed,
	gateway ports.ChainGateway,
	classifier ports.LabelClassifier,
) (*FeedService, error) {
	if gateway == nil {
		return nil, ErrMissingGateway
	}

	s := &FeedService{
		logger:      logger,
		visible:     true,
		loading:     true,
		done:        make(chan struct{}),
		subscribers: make(map[chan struct{}]struct{}),
	}
	s.active.Store(true)

	s.buffer = feed.NewBuffer(cfg.Capacity, s.notify)
	s.enricher = workers.NewEnricher(logger, gateway, classifier, s.buffer, s)
	s.scheduler = workers.NewBatchScheduler(logger, s.enricher, s, cfg.BatchSize, cfg.BatchDelay)
	s.poller = workers.NewBlockPoller(logger, gateway, s.scheduler, s, s, cfg.PollInterval, cfg.BootstrapDepth)

	return s, nil
}

// Start launches the polling loop. It fails after Stop; a second Start is a no-op.
func (s *FeedService) Start(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.active.Load() {
		return ports.ErrPipelineStopped
	}
	if s.started {
		return nil
	}
	s.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		defer close(s.done)
		s.poller.Run(loopCtx)
	}()

	s.logger.InfoContext(ctx, "Feed pipeline started")
	return nil
}

// Stop tears the pipeline down permanently and waits for the polling loop to exit.
// Enrichment calls already issued finish on their own; their results are discarded.
func (s *FeedService) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.active.CompareAndSwap(true, false) {
		return
	}
	if s.started {
		s.cancel()
		<-s.done
	}

	s.subsMu.Lock()
	for ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, ch)
	}
	s.subsMu.Unlock()

	s.logger.Info("Feed pipeline stopped")
}

// Pause freezes the displayed feed and stops new ticks and batch dispatch.
func (s *FeedService) Pause() {
	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.buffer.Freeze()
	s.mu.Unlock()

	s.logger.Info("Feed paused", "buffered", s.buffer.Len())
}

// Resume merges everything that arrived during the pause and restarts polling.
func (s *FeedService) Resume() {
	s.mu.Lock()
	if !s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = false
	s.buffer.Thaw()
	s.mu.Unlock()

	s.logger.Info("Feed resumed", "buffered", s.buffer.Len())
}

// SetVisible gates polling on whether anyone is looking at the feed.
func (s *FeedService) SetVisible(visible bool) {
	s.mu.Lock()
	changed := s.visible != visible
	s.visible = visible
	s.mu.Unlock()

	if changed {
		s.logger.Debug("Feed visibility changed", "visible", visible)
		s.notify()
	}
}

func (s *FeedService) ShouldRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.paused && s.visible
}

func (s *FeedService) Active() bool {
	return s.active.Load()
}

func (s *FeedService) ReportError(err error) {
	if !s.active.Load() {
		return
	}
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.notify()
}

func (s *FeedService) TickCompleted(uint64) {
	if !s.active.Load() {
		return
	}
	s.mu.Lock()
	s.lastErr = ""
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// State is the snapshot read by the presentation layer.
func (s *FeedService) State() entities.FeedState {
	s.mu.RLock()
	state := entities.FeedState{
		Loading: s.loading,
		Error:   s.lastErr,
		Paused:  s.paused,
		Visible: s.visible,
	}
	s.mu.RUnlock()

	state.Transactions = s.buffer.View()
	if cursor, ok := s.poller.Cursor(); ok {
		state.Cursor = &cursor
	}
	return state
}

// Subscribe returns a channel signalled (coalesced) whenever the state changes, and a cancel func.
// The channel is closed on Stop.
func (s *FeedService) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subsMu.Lock()
	if !s.active.Load() {
		s.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
			s.subsMu.Unlock()
		})
	}
}

func (s *FeedService) notify() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
