// Package lockout implements the depletion lockout countdown: a single
// Idle -> Counting -> Expired state machine that plays an audio cue once as
// the countdown nears its end and hands control back to its owner at zero.
package lockout

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the countdown lifecycle state.
type State int

const (
	Idle State = iota
	Counting
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Counting:
		return "counting"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cue is the audio side effect. Play and Stop are called while the timer
// holds its lock, so they must not block or call back into the Timer.
type Cue interface {
	Play()
	Stop()
}

// NopCue plays nothing.
type NopCue struct{}

func (NopCue) Play() {}
func (NopCue) Stop() {}

const (
	DefaultThreshold = 5 * time.Second
	DefaultInterval  = time.Second
)

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces the system clock.
func WithClock(c Clock) Option { return func(t *Timer) { t.clock = c } }

// WithThreshold sets the remaining time at which the cue plays.
func WithThreshold(d time.Duration) Option { return func(t *Timer) { t.threshold = d } }

// WithInterval sets the tick length.
func WithInterval(d time.Duration) Option { return func(t *Timer) { t.interval = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(t *Timer) { t.log = l } }

// Timer is a restartable countdown. The zero value is not usable; call New.
type Timer struct {
	clock     Clock
	cue       Cue
	threshold time.Duration
	interval  time.Duration
	log       *slog.Logger

	mu        sync.Mutex
	state     State
	remaining time.Duration
	cueFired  bool
	// gen identifies the current countdown; ticks from older ones are dropped.
	gen    uint64
	ticker Ticker
	stop   chan struct{}
}

// New returns an idle timer driving cue.
func New(cue Cue, opts ...Option) *Timer {
	if cue == nil {
		cue = NopCue{}
	}

	t := &Timer{
		clock:     SystemClock,
		cue:       cue,
		threshold: DefaultThreshold,
		interval:  DefaultInterval,
		log:       slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start begins a countdown of d and calls onExpire once it reaches zero.
// A countdown already in progress is cancelled first. onExpire runs on the
// timer's goroutine after the transition to Expired.
func (t *Timer) Start(d time.Duration, onExpire func()) {
	t.mu.Lock()

	if t.state == Counting {
		t.log.Debug("lockout countdown restarted", "remaining", t.remaining)
	}

	if t.cueFired {
		t.cue.Stop()
	}

	t.stopLocked()

	t.gen++
	t.state = Counting
	t.remaining = max(d, 0)
	t.cueFired = false

	if t.remaining == 0 {
		t.state = Expired
		t.mu.Unlock()

		if onExpire != nil {
			go onExpire()
		}

		return
	}

	t.ticker = t.clock.NewTicker(t.interval)
	t.stop = make(chan struct{})

	go t.run(t.gen, t.ticker, t.stop, onExpire)

	t.mu.Unlock()
}

// Cancel stops the countdown and silences the cue. Safe to call when idle.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	t.gen++
	t.state = Idle
	t.remaining = 0

	t.cue.Stop()
}

// State reports the lifecycle state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Remaining reports the time left on the current countdown.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

func (t *Timer) stopLocked() {
	if t.ticker == nil {
		return
	}

	t.ticker.Stop()
	close(t.stop)

	t.ticker = nil
	t.stop = nil
}

func (t *Timer) run(gen uint64, ticker Ticker, stop <-chan struct{}, onExpire func()) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			expired, done := t.tick(gen)
			if expired && onExpire != nil {
				onExpire()
			}

			if done {
				return
			}
		}
	}
}

// tick advances the countdown identified by gen.
func (t *Timer) tick(gen uint64) (expired, done bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen || t.state != Counting {
		return false, true
	}

	prev := t.remaining
	t.remaining = max(t.remaining-t.interval, 0)

	if !t.cueFired && prev > t.threshold && t.remaining <= t.threshold && t.remaining > 0 {
		t.cueFired = true
		t.cue.Play()
	}

	if t.remaining > 0 {
		return false, false
	}

	t.state = Expired
	t.stopLocked()

	t.log.Info("lockout countdown expired")

	return true, true
}
