package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fastprodman/kpeconomy/internal/wire"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sendBufferSize = 16
)

// Hub pushes player state changes to WebSocket subscribers of that player.
// All subscriber bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[uint64]map[*client]struct{}
	broadcast  chan wire.StateEvent
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

// client is one WebSocket connection subscribed to a single player.
type client struct {
	hub      *Hub
	playerID uint64
	conn     *websocket.Conn
	send     chan []byte
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		clients:    make(map[uint64]map[*client]struct{}),
		broadcast:  make(chan wire.StateEvent, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log.With("component", "ws-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run is the hub event loop. It returns when ctx is done, closing every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}

			h.clients = make(map[uint64]map[*client]struct{})

			return

		case c := <-h.register:
			set, ok := h.clients[c.playerID]
			if !ok {
				set = make(map[*client]struct{})
				h.clients[c.playerID] = set
			}

			set[c] = struct{}{}
			h.log.Debug("subscriber registered", "player_id", c.playerID)

		case c := <-h.unregister:
			h.remove(c)

		case ev := <-h.broadcast:
			set := h.clients[ev.PlayerID]
			if len(set) == 0 {
				continue
			}

			msg, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("encode state event", "error", err)
				continue
			}

			for c := range set {
				select {
				case c.send <- msg:
				default:
					// Slow subscriber; drop it.
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	set, ok := h.clients[c.playerID]
	if !ok {
		return
	}

	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(h.clients, c.playerID)
	}
}

// Publish queues ev for delivery. It never blocks a request; when the queue
// is full the event is dropped.
func (h *Hub) Publish(ev wire.StateEvent) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("state event dropped", "player_id", ev.PlayerID, "cause", ev.Cause)
	}
}

// ServeWs handles GET /player/{playerId}/ws.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	playerID, err := parsePlayerIDFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playerId in path")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}

	c := &client{hub: h, playerID: playerID, conn: conn, send: make(chan []byte, sendBufferSize)}

	select {
	case h.register <- c:
	case <-h.done:
		//nolint:errcheck
		conn.Close()

		return
	case <-r.Context().Done():
		//nolint:errcheck
		conn.Close()

		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and unregisters on disconnect.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		//nolint:errcheck
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", "player_id", c.playerID, "error", err)
			}

			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		//nolint:errcheck
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			err := c.conn.WriteMessage(websocket.TextMessage, msg)
			if err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
