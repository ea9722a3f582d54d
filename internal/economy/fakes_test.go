package economy

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errRemoteLocked = errors.New("remote: player locked")

// fakeRemote mimics the remote service rules: clamp at zero, lock on
// depletion, de-duplicate by event id.
type fakeRemote struct {
	mu           sync.Mutex
	balance      int64
	locked       bool
	remaining    time.Duration
	unlocked     []string
	restoreFloor int64
	seen         map[string]bool
	deltas       []int64
	restores     int
	fail         error
	gate         chan struct{}
}

func newFakeRemote(balance int64) *fakeRemote {
	return &fakeRemote{balance: balance, restoreFloor: 50, seen: map[string]bool{}}
}

func (f *fakeRemote) State(context.Context) (RemoteState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return RemoteState{}, f.fail
	}

	return RemoteState{Balance: f.balance, Locked: f.locked, LockoutRemaining: f.remaining, Unlocked: f.unlocked}, nil
}

func (f *fakeRemote) ApplyDelta(ctx context.Context, eventID string, amount int64) (DeltaResult, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return DeltaResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return DeltaResult{}, f.fail
	}

	if f.seen[eventID] {
		return DeltaResult{NewBalance: f.balance, Locked: f.locked, Replayed: true}, nil
	}

	if f.locked {
		return DeltaResult{}, errRemoteLocked
	}

	f.seen[eventID] = true
	f.deltas = append(f.deltas, amount)
	f.balance = max(f.balance+amount, 0)

	if amount < 0 && f.balance == 0 {
		f.locked = true
	}

	return DeltaResult{NewBalance: f.balance, Locked: f.locked}, nil
}

func (f *fakeRemote) Restore(context.Context) (RestoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return RestoreResult{}, f.fail
	}

	f.restores++
	f.balance = f.restoreFloor
	f.locked = false

	return RestoreResult{NewBalance: f.balance, Message: "energy restored"}, nil
}

func (f *fakeRemote) CompleteLevel(ctx context.Context, req LevelRequest) (LevelResult, error) {
	amount := int64(-20)
	if req.IsWin {
		amount = 75
	}

	res, err := f.ApplyDelta(ctx, req.EventID, amount)
	if err != nil {
		return LevelResult{}, err
	}

	return LevelResult{NewBalance: res.NewBalance, Locked: res.Locked, FirstTimeUnlock: req.IsWin && !res.Replayed}, nil
}

func (f *fakeRemote) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRemote) snapshot() (int64, bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.balance, f.locked, f.restores
}

type fakeTimer struct {
	mu        sync.Mutex
	starts    []time.Duration
	cancels   int
	remaining time.Duration
	onExpire  func()
}

func (t *fakeTimer) Start(d time.Duration, onExpire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.starts = append(t.starts, d)
	t.remaining = d
	t.onExpire = onExpire
}

func (t *fakeTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancels++
	t.remaining = 0
	t.onExpire = nil
}

func (t *fakeTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remaining
}

// expire simulates the countdown reaching zero.
func (t *fakeTimer) expire() {
	t.mu.Lock()
	fn := t.onExpire
	t.remaining = 0
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (t *fakeTimer) startCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.starts)
}
