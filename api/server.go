package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/brensch/snekarena/game"
)

// Strategy picks a move for youID on a game state.
type Strategy interface {
	Move(ctx context.Context, state *game.GameState, youID string) (game.Decision, error)
}

// Server answers the Battlesnake API from a Strategy.
type Server struct {
	strategy    Strategy
	info        InfoResponse
	moveTimeout time.Duration
	logger      *slog.Logger
}

// NewServer returns a server whose default per-move budget is moveTimeout;
// requests that carry their own timeout override it.
func NewServer(strategy Strategy, info InfoResponse, moveTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if info.APIVersion == "" {
		info.APIVersion = "1"
	}
	return &Server{
		strategy:    strategy,
		info:        info,
		moveTimeout: moveTimeout,
		logger:      logger,
	}
}

// Handler routes the four Battlesnake endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/start", s.handleStart)
	mux.HandleFunc("/move", s.handleMove)
	mux.HandleFunc("/end", s.handleEnd)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, s.info)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("game started", "game_id", req.Game.ID, "turn", req.Turn, "you", req.You.Name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := ToGameState(&req)

	timeout := s.moveTimeout
	if req.Game.Timeout > 0 {
		timeout = time.Duration(req.Game.Timeout) * time.Millisecond
	}
	// Reserve time for the round trip.
	computeTime := timeout - 100*time.Millisecond
	if computeTime < 20*time.Millisecond {
		computeTime = 20 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(r.Context(), computeTime)
	defer cancel()

	decision, err := s.strategy.Move(ctx, state, req.You.ID)
	if err != nil {
		s.logger.Warn("strategy failed, moving up", "game_id", req.Game.ID, "turn", req.Turn, "err", err)
		decision = game.Decision{Direction: game.Up}
	}

	s.logger.Debug("move",
		"game_id", req.Game.ID,
		"turn", req.Turn,
		"move", decision.Direction.String(),
		"elapsed", time.Since(startTime),
	)

	writeJSON(w, MoveResponse{Move: decision.Direction.String(), Shout: decision.Reason})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	youAlive := false
	for _, snake := range req.Board.Snakes {
		if snake.ID == req.You.ID {
			youAlive = true
			break
		}
	}

	result := "lost"
	if youAlive {
		result = "won"
	} else if len(req.Board.Snakes) == 0 {
		result = "draw"
	}

	s.logger.Info("game ended", "game_id", req.Game.ID, "turn", req.Turn, "result", result)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
