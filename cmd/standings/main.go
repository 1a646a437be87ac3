package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/brensch/snekarena/config"
	"github.com/brensch/snekarena/leaderboard"
	"github.com/brensch/snekarena/logging"
)

func main() {
	cfg, err := config.LoadStandings(os.Args[1:], os.Stderr)
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
	logger, err := logging.New(cfg.Log.Format, level, os.Stderr)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(logger)

	if cfg.ServeAddr != "" {
		serve(cfg, logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := leaderboard.Open(ctx, cfg.Dirs)
	if err != nil {
		log.Fatalf("Failed to open results: %v", err)
	}
	defer db.Close()
	logger.Debug("results loaded", "dirs", cfg.Dirs, "files", db.Files())

	standings, err := db.Standings(ctx)
	if err != nil {
		log.Fatalf("Failed to query standings: %v", err)
	}
	games, err := db.Games(ctx)
	if err != nil {
		log.Fatalf("Failed to query games: %v", err)
	}
	ratings := leaderboard.Ratings(games, cfg.EloK)

	if len(standings) == 0 {
		fmt.Printf("No results under %v\n", cfg.Dirs)
		return
	}

	fmt.Printf("%d games from %d batches\n\n", len(games), db.Files())
	printStandings(os.Stdout, standings, cfg.Top)
	fmt.Println()
	printRatings(os.Stdout, ratings, cfg.Top)
}

func serve(cfg config.Standings, logger *slog.Logger) {
	api := leaderboard.NewServer(cfg.Dirs, cfg.EloK, cfg.Refresh, logger)
	defer api.Close()
	srv := &http.Server{Addr: cfg.ServeAddr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("standings api listening", "addr", cfg.ServeAddr, "dirs", cfg.Dirs, "refresh", cfg.Refresh)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func printStandings(w io.Writer, standings []leaderboard.Standing, top int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tsnake\tmodel\tgames\twins\twin%\tavg rank\tavg len\tavg turns\tavg ms\t")
	for i, s := range standings {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%.1f\t%.2f\t%.1f\t%.1f\t%.1f\t\n",
			i+1, s.Name, s.ModelTag, s.Games, s.Wins, 100*s.WinRate, s.AvgRank, s.AvgLength, s.AvgSurvived, s.AvgLatencyMs)
	}
	_ = tw.Flush()
}

func printRatings(w io.Writer, ratings []leaderboard.Rating, top int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tsnake\telo\tgames\t")
	for i, r := range ratings {
		if top > 0 && i >= top {
			break
		}
		fmt.Fprintf(tw, "%d\t%s\t%.0f\t%d\t\n", i+1, r.Name, r.Rating, r.Games)
	}
	_ = tw.Flush()
}
