// Command playsim drives one player through a scripted series of mini-game
// sessions against a running economy API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fastprodman/kpeconomy/internal/catalog"
	"github.com/fastprodman/kpeconomy/internal/economy"
	"github.com/fastprodman/kpeconomy/internal/infra/logging"
	"github.com/fastprodman/kpeconomy/internal/localcache"
	"github.com/fastprodman/kpeconomy/internal/lockout"
	"github.com/fastprodman/kpeconomy/internal/remote"
	"github.com/fastprodman/kpeconomy/internal/rewards"
	"github.com/fastprodman/kpeconomy/internal/unlocks"
	"github.com/fastprodman/kpeconomy/pkg/envconf"
	"github.com/fastprodman/kpeconomy/pkg/shutdownqueue"
)

const lockoutPoll = 250 * time.Millisecond

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: playsim <script.yaml>")
		//nolint:gocritic
		os.Exit(2)
	}

	err := run(ctx, os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running playsim: %v\n", err)
		os.Exit(1)
	}
}

// player is one wired engine session.
type player struct {
	id    uint64
	ctrl  *economy.Controller
	sync  *rewards.Synchronizer
	store *localcache.Store
	log   *slog.Logger
}

func run(ctx context.Context, scriptPath string) (retErr error) {
	cfg := new(playsimConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, "playsim")

	cat := catalog.Default()

	sc, err := loadScript(scriptPath, cat)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	// Per-session teardown, independent of the process-wide queue.
	teardown := shutdownqueue.New()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := teardown.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	p := newPlayer(cfg, cat, teardown)

	err = p.start(ctx)
	if err != nil {
		return err
	}

	for i, st := range sc.Sessions {
		err = p.play(ctx, i, st)
		if err != nil {
			return err
		}
	}

	slog.Info("script finished",
		"balance", p.ctrl.State().Balance,
		"unlocked", p.sync.UnlockedIDs(),
	)

	return nil
}

func newPlayer(cfg *playsimConfig, cat *catalog.Catalog, teardown *shutdownqueue.Queue) *player {
	log := slog.Default().With("player_id", cfg.PlayerID)

	client := remote.New(cfg.APIURL, cfg.PlayerID, &http.Client{Timeout: cfg.RequestTimeout})

	timer := lockout.New(newBellCue(os.Stderr, log),
		lockout.WithThreshold(cfg.CueThreshold),
		lockout.WithLogger(log),
	)

	ecfg := economy.DefaultConfig()
	ecfg.RestoreFloor = cfg.RestoreFloor
	ecfg.LockoutDuration = cfg.LockoutDuration
	ecfg.RestoreTimeout = cfg.RequestTimeout

	ctrl := economy.New(client, timer, ecfg,
		economy.WithLogger(log),
		economy.OnChange(func(s economy.State) {
			log.Info("economy changed", "balance", s.Balance, "lock", s.Lock.String(), "lockout_remaining", s.LockoutRemaining)
		}),
	)

	registry := unlocks.New(cat, client, log)

	p := &player{
		id:    cfg.PlayerID,
		ctrl:  ctrl,
		sync:  rewards.New(ctrl, registry, cat, rewards.WithLogger(log), rewards.WithServerCompletion(cfg.ServerCompletion)),
		store: localcache.New(cfg.CachePath),
		log:   log,
	}

	// LIFO: the cache is written before the controller tears the timer down.
	teardown.Add(func(context.Context) error {
		ctrl.Close()

		return nil
	})
	teardown.Add(func(context.Context) error {
		return p.save()
	})

	return p
}

// start seeds from the local cache and then refreshes from the API.
func (p *player) start(ctx context.Context) error {
	snap, err := p.store.Load()

	switch {
	case err == nil && snap.PlayerID == p.id:
		p.sync.Seed(snap.State(), snap.Unlocked)
		p.log.Info("seeded from cache", "balance", snap.Balance, "saved_at", snap.SavedAt)
	case err == nil:
		p.log.Warn("cache belongs to another player, ignored", "cached_player_id", snap.PlayerID)
	case errors.Is(err, localcache.ErrNoCache):
	default:
		p.log.Warn("cache unreadable, ignored", "error", err)
	}

	rs, err := p.sync.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}

	p.log.Info("session started", "balance", rs.Balance, "locked", rs.Locked, "unlocked", rs.Unlocked)

	return nil
}

func (p *player) play(ctx context.Context, i int, st step) error {
	err := p.waitActive(ctx)
	if err != nil {
		return err
	}

	sess, err := p.sync.Begin(st.Game, st.Content)
	if err != nil {
		return fmt.Errorf("session %d: %w", i, err)
	}

	var class rewards.Classification

	switch st.Result {
	case resultWin:
		class, err = sess.Win(ctx)
	case resultLose:
		class, err = sess.Lose(ctx)
	default:
		err = sess.Close()
	}

	state := p.ctrl.State()

	switch {
	case errors.Is(err, economy.ErrSyncFailure):
		p.log.Warn("session settled locally, sync failed", "session", i, "classification", class.String(), "error", err)
	case err != nil:
		return fmt.Errorf("session %d: %w", i, err)
	default:
		p.log.Info("session settled",
			"session", i,
			"game", st.Game,
			"content", st.Content,
			"result", st.Result,
			"classification", class.String(),
			"balance", state.Balance,
			"lock", state.Lock.String(),
		)
	}

	return sleep(ctx, st.Wait)
}

// waitActive blocks while the player is locked out; the controller restores
// on its own when the countdown ends.
func (p *player) waitActive(ctx context.Context) error {
	for p.ctrl.State().Locked() {
		err := sleep(ctx, lockoutPoll)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *player) save() error {
	snap := localcache.FromState(p.id, p.ctrl.State(), p.sync.UnlockedIDs(), time.Now())

	err := p.store.Save(snap)
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}

	p.log.Info("cache saved", "balance", snap.Balance, "locked", snap.Locked)

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
