package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers all API endpoints. hub may be nil, in which case no
// state is pushed and the WebSocket route is not mounted.
func NewRouter(svc Service, hub *Hub) http.Handler {
	var pub Publisher
	if hub != nil {
		pub = hub
	}

	return routes(NewHandler(svc, pub), hub)
}

func routes(h *HandlerProvider, hub *Hub) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/player/{playerId}", func(r chi.Router) {
		r.Get("/state", h.GetStateHandler)
		r.Post("/delta", h.ApplyDeltaHandler)
		r.Post("/restore", h.RestoreHandler)
		r.Post("/levels/{contentId}/complete", h.CompleteLevelHandler)
		r.Post("/unlocks/{contentId}", h.UnlockHandler)

		if hub != nil {
			r.Get("/ws", hub.ServeWs)
		}
	})

	return r
}
