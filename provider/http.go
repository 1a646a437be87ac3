// Package provider supplies move providers for arena matches: a client for
// remote Battlesnake servers and a built-in bot.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brensch/snekarena/api"
	"github.com/brensch/snekarena/game"
)

// maxResponseBytes caps how much of a move response we read.
const maxResponseBytes = 64 << 10

// HTTP asks a remote Battlesnake server for moves.
type HTTP struct {
	baseURL  string
	client   *http.Client
	settings api.RulesetSettings
	timeout  time.Duration
}

// NewHTTP targets the server at baseURL. timeout is advertised to the
// remote snake in each request; the caller's context enforces it.
func NewHTTP(baseURL string, settings api.RulesetSettings, timeout time.Duration) *HTTP {
	return &HTTP{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{},
		settings: settings,
		timeout:  timeout,
	}
}

// Move posts the state to /move and validates the answer.
func (h *HTTP) Move(ctx context.Context, state *game.GameState, youID string) (game.Decision, error) {
	req := api.NewGameRequest(state, youID, h.settings, h.timeout)

	var resp api.MoveResponse
	if err := h.post(ctx, "/move", req, &resp); err != nil {
		return game.Decision{}, err
	}

	dir, err := game.ParseDirection(resp.Move)
	if err != nil {
		return game.Decision{}, fmt.Errorf("move from %s: %w", h.baseURL, err)
	}
	return game.Decision{Direction: dir, Reason: resp.Shout}, nil
}

// Start notifies the remote snake a game is beginning. Errors are returned
// but do not affect play.
func (h *HTTP) Start(ctx context.Context, state *game.GameState, youID string) error {
	return h.post(ctx, "/start", api.NewGameRequest(state, youID, h.settings, h.timeout), nil)
}

// End notifies the remote snake the game is over.
func (h *HTTP) End(ctx context.Context, state *game.GameState, youID string) error {
	return h.post(ctx, "/end", api.NewGameRequest(state, youID, h.settings, h.timeout), nil)
}

// Info fetches the snake's customization info from /.
func (h *HTTP) Info(ctx context.Context) (api.InfoResponse, error) {
	var info api.InfoResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/", nil)
	if err != nil {
		return info, fmt.Errorf("build info request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return info, fmt.Errorf("get info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("get info: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&info); err != nil {
		return info, fmt.Errorf("decode info: %w", err)
	}
	return info, nil
}

func (h *HTTP) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
