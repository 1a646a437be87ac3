package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekarena/api"
	"github.com/brensch/snekarena/arena"
	"github.com/brensch/snekarena/config"
	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/logging"
	"github.com/brensch/snekarena/provider"
	"github.com/brensch/snekarena/rules"
	"github.com/brensch/snekarena/spectate"
	"github.com/brensch/snekarena/store"
	"github.com/brensch/snekarena/tui"
)

func main() {
	cfg, err := config.LoadArena(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to parse log level: %v", err)
	}
	var logOut io.Writer = os.Stderr
	if cfg.TUI {
		// Redirect logs to file to avoid messing up TUI
		f, err := os.OpenFile("arena.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("error opening log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(cfg.Log.Format, level, logOut)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	players, providers := buildProviders(ctx, cfg, logger)

	var (
		observers []arena.Observer
		sinks     []arena.ResultSink
	)

	if cfg.OutDir != "" {
		rec := store.NewRecorder(cfg.OutDir, cfg.FlushGames, logger)
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("final flush failed", "err", err)
			}
		}()
		observers = append(observers, rec)
		sinks = append(sinks, rec)
	}

	if cfg.SpectateAddr != "" {
		hub := spectate.NewHub(logger)
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: cfg.SpectateAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("spectator stream listening", "addr", cfg.SpectateAddr, "path", "/ws")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("spectator server failed", "err", err)
			}
		}()
		defer func() {
			hub.Close()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		observers = append(observers, hub)
		sinks = append(sinks, hub)
	}

	if !cfg.TUI {
		playGames(ctx, cfg, players, providers, observers, sinks, logger)
		return
	}

	feed := tui.NewFeed(64)
	observers = append(observers, feed)
	sinks = append(sinks, feed)

	done := make(chan struct{})
	go func() {
		defer close(done)
		playGames(ctx, cfg, players, providers, observers, sinks, logger)
	}()

	p := tea.NewProgram(tui.New(feed.Updates()), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("viewer failed", "err", err)
	}
	// Quitting the viewer stops the run.
	cancel()
	<-done
}

// buildProviders maps every configured snake to a player and its provider.
// Snake names double as ids so results line up across games.
func buildProviders(ctx context.Context, cfg config.Arena, logger *slog.Logger) ([]game.Player, map[string]arena.Provider) {
	players := make([]game.Player, 0, len(cfg.Snakes))
	providers := make(map[string]arena.Provider, len(cfg.Snakes))
	settings := api.SettingsFromConfig(cfg.Game)

	for i, s := range cfg.Snakes {
		player := game.Player{Id: s.Name, Name: s.Name, ModelTag: s.Target}

		if s.IsBuiltin() {
			seed := cfg.Seed
			if seed != 0 {
				seed += int64(i)
			}
			providers[s.Name] = provider.NewSafe(seed)
			players = append(players, player)
			continue
		}

		h := provider.NewHTTP(s.Target, settings, cfg.MoveTimeout)
		infoCtx, done := context.WithTimeout(ctx, 2*time.Second)
		info, err := h.Info(infoCtx)
		done()
		if err != nil {
			logger.Warn("snake info unavailable", "snake", s.Name, "url", s.Target, "err", err)
		} else {
			logger.Info("snake ready", "snake", s.Name, "author", info.Author, "version", info.Version)
			if info.Version != "" {
				player.ModelTag = s.Target + "@" + info.Version
			}
		}
		providers[s.Name] = h
		players = append(players, player)
	}
	return players, providers
}

func playGames(ctx context.Context, cfg config.Arena, players []game.Player, providers map[string]arena.Provider, observers []arena.Observer, sinks []arena.ResultSink, logger *slog.Logger) {
	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	resolver := rules.Resolver{Settings: rules.FoodSettingsFromConfig(cfg.Game), Rng: rng}

	wins := make(map[string]int)
	start := time.Now()
	played := 0
	for i := 0; i < cfg.Games; i++ {
		if ctx.Err() != nil {
			break
		}

		state := rules.NewGame(cfg.Game, players, rng)
		match, err := arena.NewMatch(state, providers, resolver, arena.Options{
			MoveTimeout: cfg.MoveTimeout,
			Parallel:    cfg.Parallel,
			MaxTurns:    int32(cfg.MaxTurns),
			Delay:       cfg.Delay,
			Logger:      logger,
			Observers:   observers,
			Sinks:       sinks,
		})
		if err != nil {
			logger.Error("create match failed", "err", err)
			return
		}

		result, err := match.Run(ctx)
		if result.GameId == "" {
			if ctx.Err() == nil {
				logger.Error("game aborted", "game_id", state.Id, "err", err)
			}
			continue
		}
		if err != nil {
			logger.Warn("game finished with sink errors", "game_id", result.GameId, "err", err)
		}
		played++
		if result.WinnerId != "" {
			wins[result.WinnerId]++
		}
		logger.Info("game finished",
			"game_id", result.GameId,
			"game", i+1,
			"of", cfg.Games,
			"turns", result.Turns,
			"winner", result.WinnerId,
			"truncated", result.Truncated,
		)
	}

	logger.Info("arena finished", "games", played, "wins", wins, "elapsed", time.Since(start).Round(time.Millisecond))
}
