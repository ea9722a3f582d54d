package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/kpeconomy/internal/catalog"
	"github.com/fastprodman/kpeconomy/internal/repos/players"
	"github.com/fastprodman/kpeconomy/internal/services/economy"
	"github.com/fastprodman/kpeconomy/internal/wire"
	"github.com/go-chi/chi/v5"
)

// Service is the economy the handlers expose.
type Service interface {
	GetState(ctx context.Context, playerID uint64) (economy.PlayerState, error)
	ApplyDelta(ctx context.Context, playerID uint64, eventID string, amount int64) (economy.DeltaResult, error)
	Restore(ctx context.Context, playerID uint64) (economy.RestoreResult, error)
	CompleteLevel(ctx context.Context, playerID uint64, lc economy.LevelCompletion) (economy.LevelResult, error)
	Unlock(ctx context.Context, playerID uint64, contentID, gameID string) (bool, error)
}

// Publisher receives a notification after every successful mutation.
type Publisher interface {
	Publish(ev wire.StateEvent)
}

// HandlerProvider wraps a Service and exposes HTTP handlers.
type HandlerProvider struct {
	svc Service
	pub Publisher
}

func NewHandler(svc Service, pub Publisher) *HandlerProvider {
	return &HandlerProvider{svc: svc, pub: pub}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, wire.ErrorResponse{Error: msg})
}

// writeServiceError maps domain errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, players.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, players.ErrPlayerLocked):
		writeError(w, http.StatusConflict, "player locked out")
	case errors.Is(err, players.ErrNotLocked):
		writeError(w, http.StatusConflict, "player not locked")
	case errors.Is(err, catalog.ErrUnknownContent):
		writeError(w, http.StatusBadRequest, "unknown content id")
	case errors.Is(err, catalog.ErrUnknownGame):
		writeError(w, http.StatusBadRequest, "unknown game id")
	case errors.Is(err, economy.ErrWrongGame):
		writeError(w, http.StatusBadRequest, "game does not unlock this content")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parsePlayerIDFromPath reads `{playerId}` from chi routes like
// GET /player/{playerId}/state.
func parsePlayerIDFromPath(r *http.Request) (uint64, error) {
	idStr := chi.URLParam(r, "playerId")
	if idStr == "" {
		return 0, fmt.Errorf("missing playerId")
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid playerId: %w", err)
	}

	if id == 0 || id > math.MaxInt64 {
		return 0, fmt.Errorf("invalid playerId: out of range")
	}

	return id, nil
}

// decodeBody reads a single JSON object, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	//nolint:errcheck
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

func (h *HandlerProvider) publish(ev wire.StateEvent) {
	if h.pub == nil {
		return
	}

	ev.Type = wire.TypePlayerState
	h.pub.Publish(ev)
}

// --- Handlers ---

// GetStateHandler handles GET /player/{playerId}/state
func (h *HandlerProvider) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	st, err := h.svc.GetState(r.Context(), playerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	unlocked := st.Unlocked
	if unlocked == nil {
		unlocked = []string{}
	}

	writeJSON(w, http.StatusOK, wire.StateResponse{
		PlayerID:                st.PlayerID,
		Balance:                 st.Balance,
		Locked:                  st.Locked,
		LockoutRemainingSeconds: ceilSeconds(st),
		Unlocked:                unlocked,
	})
}

// ApplyDeltaHandler handles POST /player/{playerId}/delta
func (h *HandlerProvider) ApplyDeltaHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	var req wire.DeltaRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "eventId required")
		return
	}

	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be non-zero")
		return
	}

	res, err := h.svc.ApplyDelta(r.Context(), playerID, req.EventID, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !res.Replayed {
		h.publish(wire.StateEvent{Cause: "delta", PlayerID: playerID, Balance: res.NewBalance, Locked: res.Locked})
	}

	writeJSON(w, http.StatusOK, wire.DeltaResponse{
		NewBalance: res.NewBalance,
		Locked:     res.Locked,
		Replayed:   res.Replayed,
	})
}

// RestoreHandler handles POST /player/{playerId}/restore
func (h *HandlerProvider) RestoreHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	res, err := h.svc.Restore(r.Context(), playerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.publish(wire.StateEvent{Cause: "restore", PlayerID: playerID, Balance: res.NewBalance})

	writeJSON(w, http.StatusOK, wire.RestoreResponse{NewBalance: res.NewBalance, Message: res.Message})
}

// CompleteLevelHandler handles POST /player/{playerId}/levels/{contentId}/complete
func (h *HandlerProvider) CompleteLevelHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	contentID := chi.URLParam(r, "contentId")

	var req wire.LevelRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "eventId required")
		return
	}

	if req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId required")
		return
	}

	res, err := h.svc.CompleteLevel(r.Context(), playerID, economy.LevelCompletion{
		EventID:   req.EventID,
		ContentID: contentID,
		GameID:    req.GameID,
		IsWin:     req.IsWin,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if !res.Replayed {
		ev := wire.StateEvent{Cause: "level", PlayerID: playerID, Balance: res.NewBalance, Locked: res.Locked}
		if res.FirstTimeUnlock {
			ev.ContentID = contentID
		}

		h.publish(ev)
	}

	writeJSON(w, http.StatusOK, wire.LevelResponse{
		NewBalance:      res.NewBalance,
		Locked:          res.Locked,
		FirstTimeUnlock: res.FirstTimeUnlock,
		Replayed:        res.Replayed,
	})
}

// UnlockHandler handles POST /player/{playerId}/unlocks/{contentId}
func (h *HandlerProvider) UnlockHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	contentID := chi.URLParam(r, "contentId")

	var req wire.UnlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.GameID == "" {
		writeError(w, http.StatusBadRequest, "gameId required")
		return
	}

	first, err := h.svc.Unlock(r.Context(), playerID, contentID, req.GameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if first {
		st, serr := h.svc.GetState(r.Context(), playerID)
		if serr == nil {
			h.publish(wire.StateEvent{
				Cause:     "unlock",
				PlayerID:  playerID,
				Balance:   st.Balance,
				Locked:    st.Locked,
				ContentID: contentID,
			})
		}
	}

	writeJSON(w, http.StatusOK, wire.UnlockResponse{ContentID: contentID, FirstTime: first})
}

// ceilSeconds rounds the remaining lockout up so a pending lockout never
// reads as zero.
func ceilSeconds(st economy.PlayerState) int64 {
	d := st.LockoutRemaining
	if d <= 0 {
		return 0
	}

	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}

	return secs
}
