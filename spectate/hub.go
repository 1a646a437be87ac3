// Package spectate streams arena turns to websocket clients as JSON frames.
package spectate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/snekarena/arena"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod

	defaultSendBuffer = 64
)

// Frame types.
const (
	FrameTurn   = "turn"
	FrameResult = "result"
)

// Frame is one message on the wire.
type Frame struct {
	Type   string            `json:"type"`
	GameID string            `json:"game_id"`
	Turn   int32             `json:"turn"`
	State  *game.GameState   `json:"state,omitempty"`
	Report *rules.TurnReport `json:"report,omitempty"`
	Moves  []game.Move       `json:"moves,omitempty"`
	Result *arena.Result     `json:"result,omitempty"`
}

// Hub fans frames out to every connected spectator. A client whose buffer
// is full is disconnected rather than allowed to hold up a match.
type Hub struct {
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	last    []byte
}

type client struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,

			// Spectating is read-only, so any origin may watch.
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: true,
		},
		sendBuffer: defaultSendBuffer,
		logger:     logger,
		clients:    make(map[string]*client),
	}
}

// ServeHTTP upgrades the request and streams frames until the client leaves.
// New clients immediately receive the most recent frame.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	c := &client{id: uuid.NewString(), ws: ws, send: make(chan []byte, h.sendBuffer)}

	h.mu.Lock()
	if h.last != nil {
		c.send <- h.last
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("spectator joined", "client", c.id, "clients", n)

	go c.writeLoop()
	c.readLoop()

	h.remove(c)
	h.logger.Info("spectator left", "client", c.id)
}

// Clients reports how many spectators are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) ObserveTurn(_ context.Context, turn arena.Turn) {
	report := turn.Report
	h.Broadcast(Frame{
		Type:   FrameTurn,
		GameID: turn.State.Id,
		Turn:   turn.State.Turn,
		State:  turn.State,
		Report: &report,
		Moves:  turn.Moves,
	})
}

func (h *Hub) RecordResult(_ context.Context, result arena.Result) error {
	h.Broadcast(Frame{Type: FrameResult, GameID: result.GameId, Turn: result.Turns, Result: &result})
	return nil
}

// Broadcast encodes f once and queues it for every client.
func (h *Hub) Broadcast(f Frame) {
	b, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("encode frame", "type", f.Type, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = b
	for id, c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("dropping slow spectator", "client", id)
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// writeLoop owns all writes to the socket. It exits when send is closed or
// a write fails, and closing the socket ends readLoop.
func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages; it only notices disconnects and pongs.
func (c *client) readLoop() {
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
