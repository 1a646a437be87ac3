package leaderboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Server exposes standings, ratings and replays as JSON. The DuckDB views
// are rebuilt every refreshRate so batches written by a running arena show
// up without a restart.
type Server struct {
	dirs        []string
	k           float64
	refreshRate time.Duration
	logger      *slog.Logger

	mu          sync.RWMutex
	db          *DB
	lastRefresh time.Time
}

func NewServer(dirs []string, k float64, refreshRate time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dirs: dirs, k: k, refreshRate: refreshRate, logger: logger}
}

// Handler routes the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/standings", s.handleStandings)
	mux.HandleFunc("/api/ratings", s.handleRatings)
	mux.HandleFunc("/api/games", s.handleGames)
	mux.HandleFunc("/api/games/", s.handleGameTurns)
	return mux
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// withDB runs fn against a fresh enough DB. Readers hold the read lock for
// the whole call, so a refresh never closes a DB that is in use.
func (s *Server) withDB(ctx context.Context, fn func(*DB) error) error {
	s.mu.RLock()
	if s.db != nil && time.Since(s.lastRefresh) < s.refreshRate {
		defer s.mu.RUnlock()
		return fn(s.db)
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil || time.Since(s.lastRefresh) >= s.refreshRate {
		start := time.Now()
		db, err := Open(ctx, s.dirs)
		if err != nil {
			return err
		}
		if s.db != nil {
			_ = s.db.Close()
		}
		s.db = db
		s.lastRefresh = time.Now()
		s.logger.Debug("results refreshed", "files", db.Files(), "took", time.Since(start))
	}
	return fn(s.db)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	var standings []Standing
	err := s.withDB(r.Context(), func(db *DB) error {
		var err error
		standings, err = db.Standings(r.Context())
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if standings == nil {
		standings = []Standing{}
	}
	writeJSON(w, standings)
}

func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	k := s.k
	if v := strings.TrimSpace(r.URL.Query().Get("k")); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "bad k", http.StatusBadRequest)
			return
		}
		k = parsed
	}

	var games []GameFinishes
	err := s.withDB(r.Context(), func(db *DB) error {
		var err error
		games, err = db.Games(r.Context())
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, Ratings(games, k))
}

type GamesResponse struct {
	Total int            `json:"total"`
	Games []GameFinishes `json:"games"`
}

// handleGames lists finishing orders, newest first.
func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	var games []GameFinishes
	err := s.withDB(r.Context(), func(db *DB) error {
		var err error
		games, err = db.Games(r.Context())
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	limit := parseIntQuery(r, "limit", 100)
	offset := parseIntQuery(r, "offset", 0)

	page := make([]GameFinishes, 0, min(limit, len(games)))
	for i := len(games) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, games[i])
	}
	writeJSON(w, GamesResponse{Total: len(games), Games: page})
}

func (s *Server) handleGameTurns(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	// /api/games/{id}/turns
	rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
		http.NotFound(w, r)
		return
	}
	gameID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad game id", http.StatusBadRequest)
		return
	}

	var turns []ReplayTurn
	err = s.withDB(r.Context(), func(db *DB) error {
		var err error
		turns, err = db.Replay(r.Context(), gameID)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(turns) == 0 {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, turns)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("query failed", "path", r.URL.Path, "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		return false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
