package lockout

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	tk := &manualTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, tk)

	return tk
}

func (c *manualClock) latest(t *testing.T) *manualTicker {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	require.NotEmpty(t, c.tickers, "no ticker created")

	return c.tickers[len(c.tickers)-1]
}

// tick delivers n ticks to the newest ticker.
func (c *manualClock) tick(t *testing.T, n int) {
	t.Helper()

	tk := c.latest(t)
	for range n {
		select {
		case tk.ch <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick not consumed")
		}
	}
}

type countingCue struct {
	plays atomic.Int32
	stops atomic.Int32
}

func (c *countingCue) Play() { c.plays.Add(1) }
func (c *countingCue) Stop() { c.stops.Add(1) }

func newTestTimer(cue Cue) (*Timer, *manualClock) {
	clk := &manualClock{}

	return New(cue, WithClock(clk), WithThreshold(5*time.Second), WithInterval(time.Second)), clk
}

func TestTimer_CountsDownAndExpiresOnce(t *testing.T) {
	t.Parallel()

	cue := &countingCue{}
	tm, clk := newTestTimer(cue)

	var expiries atomic.Int32
	expired := make(chan struct{}, 1)

	tm.Start(10*time.Second, func() {
		expiries.Add(1)
		expired <- struct{}{}
	})
	require.Equal(t, Counting, tm.State())
	require.Equal(t, 10*time.Second, tm.Remaining())

	clk.tick(t, 4)
	require.Eventually(t, func() bool { return tm.Remaining() == 6*time.Second }, time.Second, time.Millisecond)
	require.Zero(t, cue.plays.Load(), "cue must not play above threshold")

	clk.tick(t, 6)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("onExpire not called")
	}

	require.Equal(t, Expired, tm.State())
	require.Equal(t, time.Duration(0), tm.Remaining())
	require.EqualValues(t, 1, cue.plays.Load())
	require.EqualValues(t, 1, expiries.Load())
	require.True(t, clk.latest(t).stopped.Load(), "ticker must be stopped on expiry")
}

func TestTimer_CueFiresOnceDespiteRestarts(t *testing.T) {
	t.Parallel()

	cue := &countingCue{}
	tm, clk := newTestTimer(cue)

	expired := make(chan struct{}, 4)
	onExpire := func() { expired <- struct{}{} }

	tm.Start(10*time.Second, onExpire)
	clk.tick(t, 2)

	// Duplicate trigger while counting replaces the countdown.
	tm.Start(10*time.Second, onExpire)
	require.True(t, clk.tickers[0].stopped.Load(), "previous ticker must be stopped")

	clk.tick(t, 10)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("onExpire not called")
	}

	require.EqualValues(t, 1, cue.plays.Load())
	require.Len(t, expired, 0, "expiry must fire once")
}

func TestTimer_ShortCountdownNeverCues(t *testing.T) {
	t.Parallel()

	cue := &countingCue{}
	tm, clk := newTestTimer(cue)

	expired := make(chan struct{}, 1)
	tm.Start(3*time.Second, func() { expired <- struct{}{} })

	clk.tick(t, 3)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("onExpire not called")
	}

	require.Zero(t, cue.plays.Load())
}

func TestTimer_CancelInvalidatesPendingTicks(t *testing.T) {
	t.Parallel()

	cue := &countingCue{}
	tm, clk := newTestTimer(cue)

	var expiries atomic.Int32

	tm.Start(6*time.Second, func() { expiries.Add(1) })
	clk.tick(t, 1)
	require.Eventually(t, func() bool { return cue.plays.Load() == 1 }, time.Second, time.Millisecond)

	tk := clk.latest(t)
	tm.Cancel()

	require.Equal(t, Idle, tm.State())
	require.True(t, tk.stopped.Load())
	require.GreaterOrEqual(t, cue.stops.Load(), int32(1), "cancel must silence the cue")

	// A stale tick sent after cancel must not be consumed as progress.
	select {
	case tk.ch <- time.Now():
		t.Fatalf("cancelled countdown still consuming ticks")
	case <-time.After(50 * time.Millisecond):
	}

	require.Zero(t, expiries.Load())
	require.Equal(t, time.Duration(0), tm.Remaining())
}

func TestTimer_CancelWhenIdleIsSafe(t *testing.T) {
	t.Parallel()

	tm, _ := newTestTimer(nil)

	tm.Cancel()
	tm.Cancel()

	require.Equal(t, Idle, tm.State())
}

func TestTimer_ZeroDurationExpiresImmediately(t *testing.T) {
	t.Parallel()

	tm, _ := newTestTimer(nil)

	expired := make(chan struct{}, 1)
	tm.Start(0, func() { expired <- struct{}{} })

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatalf("onExpire not called")
	}

	require.Equal(t, Expired, tm.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "counting", Counting.String())
	require.Equal(t, "expired", Expired.String())
	require.Equal(t, "State(9)", State(9).String())
}
