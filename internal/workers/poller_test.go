package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/chain-feed/backend/internal/core/ports"
)

func newTestPoller(gw *fakeGateway, proc *fakeProcessor, gate *fakeGate, status *fakeStatus) *BlockPoller {
	return NewBlockPoller(discardLogger(), gw, proc, gate, status, 10*time.Millisecond, 2)
}

func TestTick_BootstrapProcessesHeadWindowOldestFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(50, nil)
	proc := &fakeProcessor{}
	status := &fakeStatus{}
	p := newTestPoller(gw, proc, &fakeGate{}, status)

	require.NoError(t, p.Tick(context.Background()))

	assert.Equal(t, []uint64{48, 49, 50}, proc.processed())
	cursor, ok := p.Cursor()
	assert.True(t, ok)
	assert.Equal(t, uint64(50), cursor)
	assert.Equal(t, []uint64{50}, status.completed)
}

func TestTick_BootstrapSkipsNegativeBlocks(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(1, nil)
	proc := &fakeProcessor{}
	p := newTestPoller(gw, proc, &fakeGate{}, &fakeStatus{})

	require.NoError(t, p.Tick(context.Background()))

	assert.Equal(t, []uint64{0, 1}, proc.processed())
}

func TestTick_RangeAdvancesPastFailedBlock(t *testing.T) {
	gw := newFakeGateway()
	gw.blocks[101] = []string{"0xa"}
	gw.blockErr[102] = errUpstream
	gw.blocks[103] = []string{"0xb", "0xc"}
	gw.setHead(103, nil)
	proc := &fakeProcessor{}
	p := newTestPoller(gw, proc, &fakeGate{}, &fakeStatus{})
	p.cursor, p.cursorSet = 100, true

	require.NoError(t, p.Tick(context.Background()))

	assert.Equal(t, []uint64{101, 102, 103}, gw.blockRequests)
	assert.Equal(t, []uint64{101, 103}, proc.processed())
	assert.Equal(t, []string{"0xb", "0xc"}, proc.hashes[103])
	cursor, _ := p.Cursor()
	assert.Equal(t, uint64(103), cursor)
}

func TestTick_NoNewBlocksIsNoop(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(100, nil)
	proc := &fakeProcessor{}
	status := &fakeStatus{}
	p := newTestPoller(gw, proc, &fakeGate{}, status)
	p.cursor, p.cursorSet = 100, true

	require.NoError(t, p.Tick(context.Background()))

	assert.Empty(t, proc.processed())
	assert.Empty(t, gw.blockRequests)
	assert.Equal(t, []uint64{100}, status.completed)
}

func TestTick_HeadBehindCursorKeepsCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(90, nil)
	p := newTestPoller(gw, &fakeProcessor{}, &fakeGate{}, &fakeStatus{})
	p.cursor, p.cursorSet = 100, true

	require.NoError(t, p.Tick(context.Background()))

	cursor, _ := p.Cursor()
	assert.Equal(t, uint64(100), cursor)
}

func TestTick_HeadFailureReportsAndKeepsCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(0, errUpstream)
	status := &fakeStatus{}
	p := newTestPoller(gw, &fakeProcessor{}, &fakeGate{}, status)
	p.cursor, p.cursorSet = 100, true

	err := p.Tick(context.Background())

	assert.ErrorIs(t, err, errUpstream)
	require.Len(t, status.errs, 1)
	assert.ErrorIs(t, status.errs[0], errUpstream)
	cursor, _ := p.Cursor()
	assert.Equal(t, uint64(100), cursor)

	gw.setHead(101, nil)
	require.NoError(t, p.Tick(context.Background()))
	cursor, _ = p.Cursor()
	assert.Equal(t, uint64(101), cursor)
}

func TestTick_FailedBootstrapLeavesCursorUnset(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(0, errUpstream)
	p := newTestPoller(gw, &fakeProcessor{}, &fakeGate{}, &fakeStatus{})

	require.Error(t, p.Tick(context.Background()))

	_, ok := p.Cursor()
	assert.False(t, ok)
}

func TestTick_TeardownMidRangeLeavesCursor(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(105, nil)
	gate := &fakeGate{}
	proc := &fakeProcessor{hook: func(blockNumber uint64) {
		if blockNumber == 102 {
			gate.inactive.Store(true)
		}
	}}
	status := &fakeStatus{}
	p := newTestPoller(gw, proc, gate, status)
	p.cursor, p.cursorSet = 100, true

	err := p.Tick(context.Background())

	assert.ErrorIs(t, err, ports.ErrPipelineStopped)
	assert.Equal(t, []uint64{101, 102}, proc.processed())
	cursor, _ := p.Cursor()
	assert.Equal(t, uint64(100), cursor)
	assert.Empty(t, status.completed)
}

func TestTick_RejectsOverlap(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(10, nil)
	entered := make(chan struct{})
	release := make(chan struct{})
	proc := &fakeProcessor{hook: func(blockNumber uint64) {
		if blockNumber == 8 {
			close(entered)
			<-release
		}
	}}
	p := newTestPoller(gw, proc, &fakeGate{}, &fakeStatus{})

	done := make(chan error, 1)
	go func() { done <- p.Tick(context.Background()) }()
	<-entered

	assert.ErrorIs(t, p.Tick(context.Background()), ports.ErrTickInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []uint64{8, 9, 10}, proc.processed())
}

func TestRun_SkipsTicksWhilePaused(t *testing.T) {
	gw := newFakeGateway()
	gw.setHead(10, nil)
	gate := &fakeGate{}
	gate.paused.Store(true)
	p := newTestPoller(gw, &fakeProcessor{}, gate, &fakeStatus{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	gw.mu.Lock()
	assert.Zero(t, gw.headCalls)
	gw.mu.Unlock()

	gate.paused.Store(false)
	require.Eventually(t, func() bool {
		_, ok := p.Cursor()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
