// Package economy owns a player's Knowledge Point balance for the active
// session. Deltas are applied locally before the remote call resolves and
// reconciled with the remote response afterwards; operations are queued so
// each one builds on the previous one's result.
package economy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Remote is the authoritative economy service, bound to one player.
type Remote interface {
	State(ctx context.Context) (RemoteState, error)
	ApplyDelta(ctx context.Context, eventID string, amount int64) (DeltaResult, error)
	Restore(ctx context.Context) (RestoreResult, error)
	CompleteLevel(ctx context.Context, req LevelRequest) (LevelResult, error)
}

// Lockout is the countdown the controller hands off to when the balance is
// depleted. *lockout.Timer implements it.
type Lockout interface {
	Start(d time.Duration, onExpire func())
	Cancel()
	Remaining() time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

// OnChange registers an observer called after every local state change.
func OnChange(fn func(State)) Option { return func(c *Controller) { c.onChange = fn } }

// Controller serializes all economy mutations for one player session.
type Controller struct {
	remote   Remote
	timer    Lockout
	cfg      Config
	log      *slog.Logger
	onChange func(State)

	// queue admits one operation at a time; blocked senders are served in
	// arrival order.
	queue chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	state  State
	stale  bool
	closed bool
}

// New returns a controller with a zero, active balance. Call Refresh (or
// Seed then Refresh) before mutating.
func New(remote Remote, timer Lockout, cfg Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		remote: remote,
		timer:  timer,
		cfg:    cfg,
		log:    slog.Default(),
		queue:  make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns a snapshot of the local state.
func (c *Controller) State() State {
	c.mu.RLock()
	s := c.state
	stale := c.stale
	c.mu.RUnlock()

	if s.Locked() && !stale {
		s.LockoutRemaining = c.timer.Remaining()
	}

	return s
}

// Seed installs a cached state for display. Mutations are refused until a
// successful Refresh replaces it.
func (c *Controller) Seed(s State) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	if s.Balance < c.cfg.Floor {
		s.Balance = c.cfg.Floor
	}

	c.state = s
	c.stale = true
	snap := c.state

	c.mu.Unlock()

	c.notify(snap)
}

// ApplyDelta adds amount to the balance, clamped at the floor, and persists
// it remotely. Local state changes before the remote call; a remote failure
// is returned as a *SyncError and the local value is kept. If eventID is
// empty one is generated.
func (c *Controller) ApplyDelta(ctx context.Context, eventID string, amount int64) (DeltaResult, error) {
	err := c.acquire(ctx)
	if err != nil {
		return DeltaResult{}, err
	}
	defer c.release()

	if eventID == "" {
		eventID = uuid.NewString()
	}

	optimistic, err := c.applyLocal("apply delta", amount)
	if err != nil {
		return DeltaResult{}, err
	}

	res, err := c.remote.ApplyDelta(ctx, eventID, amount)
	if err != nil {
		c.log.Warn("apply delta not persisted", "event_id", eventID, "amount", amount, "error", err)

		return optimistic, &SyncError{Op: "apply delta", Err: err}
	}

	if res.Replayed {
		c.log.Info("delta already applied remotely", "event_id", eventID)
	}

	c.reconcile(res.NewBalance, res.Locked, c.cfg.LockoutDuration, false)

	return res, nil
}

// CompleteLevel settles a finished level through the remote's one-step
// endpoint. amount is applied locally first, like ApplyDelta; the remote
// result then overwrites it.
func (c *Controller) CompleteLevel(ctx context.Context, req LevelRequest, amount int64) (LevelResult, error) {
	err := c.acquire(ctx)
	if err != nil {
		return LevelResult{}, err
	}
	defer c.release()

	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	optimistic, err := c.applyLocal("complete level", amount)
	if err != nil {
		return LevelResult{}, err
	}

	res, err := c.remote.CompleteLevel(ctx, req)
	if err != nil {
		c.log.Warn("level completion not persisted", "event_id", req.EventID, "content_id", req.ContentID, "error", err)

		return LevelResult{NewBalance: optimistic.NewBalance, Locked: optimistic.Locked}, &SyncError{Op: "complete level", Err: err}
	}

	c.reconcile(res.NewBalance, res.Locked, c.cfg.LockoutDuration, false)

	return res, nil
}

// RestoreEnergy ends a lockout by resetting the balance to the restore floor.
// It fails with ErrNotLocked while active.
func (c *Controller) RestoreEnergy(ctx context.Context) (RestoreResult, error) {
	err := c.acquire(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	defer c.release()

	c.mu.Lock()

	err = c.checkMutableLocked("restore energy")
	if err != nil {
		c.mu.Unlock()
		return RestoreResult{}, err
	}

	if !c.state.Locked() {
		c.mu.Unlock()
		c.log.Error("restore energy rejected", "error", ErrNotLocked)

		return RestoreResult{}, ErrNotLocked
	}

	c.timer.Cancel()

	c.state = State{Balance: c.cfg.RestoreFloor, Lock: Active}
	snap := c.state

	c.mu.Unlock()

	c.notify(snap)

	res, err := c.remote.Restore(ctx)
	if err != nil {
		c.log.Warn("restore not persisted", "error", err)

		return RestoreResult{NewBalance: c.cfg.RestoreFloor}, &SyncError{Op: "restore energy", Err: err}
	}

	c.reconcile(res.NewBalance, false, 0, false)

	return res, nil
}

// Refresh reads the authoritative state and overwrites the local one,
// restarting the lockout countdown from the remote's remaining time.
func (c *Controller) Refresh(ctx context.Context) (RemoteState, error) {
	err := c.acquire(ctx)
	if err != nil {
		return RemoteState{}, err
	}
	defer c.release()

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return RemoteState{}, ErrClosed
	}

	rs, err := c.remote.State(ctx)
	if err != nil {
		return RemoteState{}, &SyncError{Op: "refresh", Err: err}
	}

	c.mu.Lock()
	c.stale = false
	c.mu.Unlock()

	c.reconcile(rs.Balance, rs.Locked, rs.LockoutRemaining, true)

	return rs, nil
}

// Close ends the session: the countdown is cancelled and every later call
// fails with ErrClosed. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	c.timer.Cancel()
}

// applyLocal performs the optimistic update. Reaching the floor locks the
// player and starts the countdown before the state lock is released.
func (c *Controller) applyLocal(op string, amount int64) (DeltaResult, error) {
	c.mu.Lock()

	err := c.checkMutableLocked(op)
	if err != nil {
		c.mu.Unlock()
		return DeltaResult{}, err
	}

	if c.state.Locked() {
		c.mu.Unlock()
		c.log.Error(op+" rejected", "error", ErrPlayerLocked)

		return DeltaResult{}, ErrPlayerLocked
	}

	c.state.Balance = max(c.state.Balance+amount, c.cfg.Floor)

	if amount < 0 && c.state.Balance == c.cfg.Floor {
		c.lockLocked(c.cfg.LockoutDuration)
	}

	snap := c.state

	c.mu.Unlock()

	c.notify(snap)

	return DeltaResult{NewBalance: snap.Balance, Locked: snap.Locked()}, nil
}

// reconcile overwrites local state with a remote answer. restart forces the
// countdown to restart from remaining even when already locked.
func (c *Controller) reconcile(balance int64, locked bool, remaining time.Duration, restart bool) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	wasLocked := c.state.Locked()
	c.state.Balance = balance

	switch {
	case locked && (!wasLocked || restart):
		if balance != c.cfg.Floor {
			c.log.Warn("remote reports lockout above floor", "balance", balance)
		}

		c.lockLocked(remaining)
	case !locked && wasLocked:
		c.timer.Cancel()
		c.state.Lock = Active
		c.state.LockoutRemaining = 0
	}

	snap := c.state

	c.mu.Unlock()

	c.notify(snap)
}

func (c *Controller) lockLocked(d time.Duration) {
	c.state.Lock = Locked
	c.state.LockoutRemaining = d
	c.timer.Start(d, c.onLockoutExpired)
}

func (c *Controller) onLockoutExpired() {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RestoreTimeout)
	defer cancel()

	res, err := c.RestoreEnergy(ctx)
	if err != nil {
		if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
			return
		}

		c.log.Warn("restore after lockout failed", "error", err)

		return
	}

	c.log.Info("energy restored", "balance", res.NewBalance)
}

func (c *Controller) checkMutableLocked(op string) error {
	if c.closed {
		return ErrClosed
	}

	if c.stale {
		c.log.Error(op+" rejected", "error", ErrStaleState)
		return ErrStaleState
	}

	return nil
}

func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.queue <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Controller) release() { <-c.queue }

func (c *Controller) notify(s State) {
	if c.onChange != nil {
		c.onChange(s)
	}
}
