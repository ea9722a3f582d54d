package e2etests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/fastprodman/kpeconomy/internal/economy"
	"github.com/fastprodman/kpeconomy/internal/remote"
	"github.com/fastprodman/kpeconomy/internal/wire"
)

const (
	defaultBaseURL = "http://localhost:8080"
	timeout        = 5 * time.Second
	waitReady      = 20 * time.Second
)

var httpClient = &http.Client{Timeout: timeout}

// These tests run against a live stack migrated with APP_ENV=DEV (players
// 1..3 seeded with 100 KP). Set E2E_BASE_URL to enable them.
func baseURL(t *testing.T) string {
	t.Helper()

	u := os.Getenv("E2E_BASE_URL")
	if u == "" {
		t.Skip("E2E_BASE_URL not set")
	}

	if u == "default" {
		return defaultBaseURL
	}

	return u
}

func TestE2E_RewardsFlow(t *testing.T) {
	base := baseURL(t)
	waitUntilReady(t, base)

	c := remote.New(base, 1, httpClient)
	ctx := t.Context()

	t.Run("player1_initial_state", func(t *testing.T) {
		st, err := c.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}

		if st.Balance != 100 || st.Locked {
			t.Fatalf("initial state: want 100 active, got %+v", st)
		}
	})

	t.Run("player1_delta_is_exactly_once", func(t *testing.T) {
		eid := uniqEventID("p1-reward")

		res, err := c.ApplyDelta(ctx, eid, 40)
		if err != nil {
			t.Fatalf("delta: %v", err)
		}

		if res.NewBalance != 140 || res.Replayed {
			t.Fatalf("first send: want 140 fresh, got %+v", res)
		}

		res, err = c.ApplyDelta(ctx, eid, 40)
		if err != nil {
			t.Fatalf("replay: %v", err)
		}

		if res.NewBalance != 140 || !res.Replayed {
			t.Fatalf("replay: want 140 replayed, got %+v", res)
		}
	})

	t.Run("player1_level_unlocks_once", func(t *testing.T) {
		req := economy.LevelRequest{
			EventID:   uniqEventID("p1-level"),
			ContentID: "C1",
			GameID:    "word-scramble",
			IsWin:     true,
		}

		res, err := c.CompleteLevel(ctx, req)
		if err != nil {
			t.Fatalf("complete level: %v", err)
		}

		if res.NewBalance != 180 || !res.FirstTimeUnlock {
			t.Fatalf("first win: want 180 with unlock, got %+v", res)
		}

		req.EventID = uniqEventID("p1-level-again")

		res, err = c.CompleteLevel(ctx, req)
		if err != nil {
			t.Fatalf("complete level again: %v", err)
		}

		if res.NewBalance != 220 || res.FirstTimeUnlock {
			t.Fatalf("second win: want 220 without unlock, got %+v", res)
		}

		st, err := c.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}

		if len(st.Unlocked) != 1 || st.Unlocked[0] != "C1" {
			t.Fatalf("unlocked: want [C1], got %v", st.Unlocked)
		}
	})
}

func TestE2E_LockoutAndRestore(t *testing.T) {
	base := baseURL(t)
	waitUntilReady(t, base)

	c := remote.New(base, 2, httpClient)
	ctx := t.Context()

	res, err := c.ApplyDelta(ctx, uniqEventID("p2-deplete"), -150)
	if err != nil {
		t.Fatalf("deplete: %v", err)
	}

	if res.NewBalance != 0 || !res.Locked {
		t.Fatalf("deplete: want 0 locked, got %+v", res)
	}

	st, err := c.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	if !st.Locked || st.LockoutRemaining <= 0 {
		t.Fatalf("locked state: want countdown, got %+v", st)
	}

	_, err = c.ApplyDelta(ctx, uniqEventID("p2-while-locked"), 5)
	if !remote.IsConflict(err) {
		t.Fatalf("delta while locked: want 409, got %v", err)
	}

	rr, err := c.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	if rr.NewBalance != 50 {
		t.Fatalf("restore: want 50, got %d", rr.NewBalance)
	}

	_, err = c.Restore(ctx)
	if !remote.IsConflict(err) {
		t.Fatalf("restore while active: want 409, got %v", err)
	}
}

func TestE2E_Validation(t *testing.T) {
	base := baseURL(t)
	waitUntilReady(t, base)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "missing_event_id", path: "/player/3/delta", body: `{"amount":5}`, want: http.StatusBadRequest},
		{name: "zero_amount", path: "/player/3/delta", body: `{"eventId":"x","amount":0}`, want: http.StatusBadRequest},
		{name: "unknown_content", path: "/player/3/levels/C99/complete", body: `{"eventId":"x","gameId":"timing-bar","isWin":true}`, want: http.StatusBadRequest},
		{name: "wrong_game_unlock", path: "/player/3/unlocks/C1", body: `{"gameId":"timing-bar"}`, want: http.StatusBadRequest},
		{name: "unknown_player", path: "/player/9999/delta", body: `{"eventId":"x","amount":5}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := post(t, base+tt.path, tt.body)
			if code != tt.want {
				t.Fatalf("want %d, got %d (%s)", tt.want, code, body)
			}

			var er wire.ErrorResponse

			err := json.Unmarshal([]byte(body), &er)
			if err != nil || er.Error == "" {
				t.Fatalf("error body: %q", body)
			}
		})
	}
}

/* -------------------- helpers -------------------- */

func post(t *testing.T, u, body string) (int, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, u, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)

	return resp.StatusCode, string(b)
}

// waitUntilReady waits until GET /healthz responds 200 or times out.
func waitUntilReady(t *testing.T, base string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitReady)
	defer cancel()

	u := base + "/healthz"

	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("service not ready at %s within %s", u, waitReady)
		case <-tick.C:
			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)

			resp, err := httpClient.Do(req)
			if err != nil {
				continue
			}

			_ = resp.Body.Close()

			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
}

func uniqEventID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
