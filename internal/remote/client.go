// Package remote is the HTTP client for the economy API, bound to a single
// player. It satisfies economy.Remote and unlocks.Persister.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/kpeconomy/internal/economy"
	"github.com/fastprodman/kpeconomy/internal/unlocks"
	"github.com/fastprodman/kpeconomy/internal/wire"
)

var (
	_ economy.Remote    = (*Client)(nil)
	_ unlocks.Persister = (*Client)(nil)
)

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("economy api: %d %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var se *StatusError

	return errors.As(err, &se) && se.StatusCode == http.StatusConflict
}

type Client struct {
	base     string
	playerID uint64
	hc       *http.Client
}

// New returns a client for playerID against baseURL. A nil hc gets a client
// with a 10s timeout.
func New(baseURL string, playerID uint64, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		playerID: playerID,
		hc:       hc,
	}
}

// PlayerID is the player this client acts for.
func (c *Client) PlayerID() uint64 { return c.playerID }

func (c *Client) State(ctx context.Context) (economy.RemoteState, error) {
	var resp wire.StateResponse

	err := c.do(ctx, http.MethodGet, "/state", nil, &resp)
	if err != nil {
		return economy.RemoteState{}, err
	}

	return economy.RemoteState{
		Balance:          resp.Balance,
		Locked:           resp.Locked,
		LockoutRemaining: time.Duration(resp.LockoutRemainingSeconds) * time.Second,
		Unlocked:         resp.Unlocked,
	}, nil
}

func (c *Client) ApplyDelta(ctx context.Context, eventID string, amount int64) (economy.DeltaResult, error) {
	var resp wire.DeltaResponse

	err := c.do(ctx, http.MethodPost, "/delta", wire.DeltaRequest{EventID: eventID, Amount: amount}, &resp)
	if err != nil {
		return economy.DeltaResult{}, err
	}

	return economy.DeltaResult{NewBalance: resp.NewBalance, Locked: resp.Locked, Replayed: resp.Replayed}, nil
}

func (c *Client) Restore(ctx context.Context) (economy.RestoreResult, error) {
	var resp wire.RestoreResponse

	err := c.do(ctx, http.MethodPost, "/restore", nil, &resp)
	if err != nil {
		return economy.RestoreResult{}, err
	}

	return economy.RestoreResult{NewBalance: resp.NewBalance, Message: resp.Message}, nil
}

func (c *Client) CompleteLevel(ctx context.Context, req economy.LevelRequest) (economy.LevelResult, error) {
	var resp wire.LevelResponse

	body := wire.LevelRequest{EventID: req.EventID, GameID: req.GameID, IsWin: req.IsWin}

	err := c.do(ctx, http.MethodPost, "/levels/"+url.PathEscape(req.ContentID)+"/complete", body, &resp)
	if err != nil {
		return economy.LevelResult{}, err
	}

	return economy.LevelResult{
		NewBalance:      resp.NewBalance,
		Locked:          resp.Locked,
		FirstTimeUnlock: resp.FirstTimeUnlock,
		Replayed:        resp.Replayed,
	}, nil
}

func (c *Client) Unlock(ctx context.Context, contentID, gameID string) (bool, error) {
	var resp wire.UnlockResponse

	err := c.do(ctx, http.MethodPost, "/unlocks/"+url.PathEscape(contentID), wire.UnlockRequest{GameID: gameID}, &resp)
	if err != nil {
		return false, err
	}

	return resp.FirstTime, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader

	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	endpoint := c.base + "/player/" + strconv.FormatUint(c.playerID, 10) + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	//nolint:errcheck
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er wire.ErrorResponse

		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er)

		return &StatusError{StatusCode: resp.StatusCode, Message: er.Error}
	}

	if out == nil {
		return nil
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	return nil
}
