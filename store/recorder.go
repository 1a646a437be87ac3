package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/brensch/snekarena/arena"
	"github.com/brensch/snekarena/game"
)

// Recorder buffers turns per game and writes them, with the game's result,
// once FlushGames games have finished. It is safe for concurrent matches.
type Recorder struct {
	outDir     string
	flushGames int
	logger     *slog.Logger

	mu       sync.Mutex
	pending  map[string][]ArchiveTurnRow
	turns    []ArchiveTurnRow
	results  []ResultRow
	finished int
}

// NewRecorder writes under outDir/turns and outDir/results. flushGames <= 0
// flushes after every game.
func NewRecorder(outDir string, flushGames int, logger *slog.Logger) *Recorder {
	if flushGames <= 0 {
		flushGames = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		outDir:     outDir,
		flushGames: flushGames,
		logger:     logger,
		pending:    make(map[string][]ArchiveTurnRow),
	}
}

func (r *Recorder) ObserveTurn(_ context.Context, turn arena.Turn) {
	row := TurnRow(turn)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[row.GameID] = append(r.pending[row.GameID], row)
}

// RecordResult moves the game's turns into the write buffer and flushes when
// enough games are waiting.
func (r *Recorder) RecordResult(_ context.Context, result arena.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.turns = append(r.turns, r.pending[result.GameId]...)
	delete(r.pending, result.GameId)
	r.results = append(r.results, ResultRows(result)...)
	r.finished++

	if r.finished < r.flushGames {
		return nil
	}
	return r.flushLocked("count")
}

// Close writes whatever finished games are buffered. Turns of games that
// never produced a result are dropped.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.pending); n > 0 {
		r.logger.Warn("dropping unfinished games", "games", n)
		r.pending = make(map[string][]ArchiveTurnRow)
	}
	return r.flushLocked("close")
}

func (r *Recorder) flushLocked(reason string) error {
	if r.finished == 0 {
		return nil
	}

	start := time.Now()
	turnsPath, err := WriteTurnsBatch(filepath.Join(r.outDir, TurnsDir), r.turns)
	if err != nil {
		return fmt.Errorf("flush turns (%s): %w", reason, err)
	}
	resultsPath, err := WriteResultsBatch(filepath.Join(r.outDir, ResultsDir), r.results)
	if err != nil {
		return fmt.Errorf("flush results (%s): %w", reason, err)
	}

	r.logger.Info("flushed batch",
		"reason", reason,
		"games", r.finished,
		"turn_rows", len(r.turns),
		"result_rows", len(r.results),
		"turns_path", turnsPath,
		"results_path", resultsPath,
		"elapsed", time.Since(start),
	)

	r.turns = r.turns[:0]
	r.results = r.results[:0]
	r.finished = 0
	return nil
}

// TurnRow flattens one observed turn. Snakes are sorted by id so rows from
// the same game line up.
func TurnRow(turn arena.Turn) ArchiveTurnRow {
	state := turn.State
	row := ArchiveTurnRow{
		GameID:   state.Id,
		Turn:     state.Turn,
		Width:    state.Width,
		Height:   state.Height,
		GameOver: state.IsGameOver,
		WinnerID: state.WinnerId,
		Source:   "arena",
	}

	if len(state.Food) > 0 {
		row.FoodX = make([]int32, len(state.Food))
		row.FoodY = make([]int32, len(state.Food))
		for i, f := range state.Food {
			row.FoodX[i] = f.X
			row.FoodY[i] = f.Y
		}
	}

	moves := make(map[string]game.Move, len(turn.Moves))
	for _, m := range turn.Moves {
		moves[m.SnakeId] = m
	}

	snakes := make([]game.Snake, len(state.Snakes))
	copy(snakes, state.Snakes)
	sort.Slice(snakes, func(i, j int) bool { return snakes[i].Id < snakes[j].Id })

	row.Snakes = make([]ArchiveSnake, 0, len(snakes))
	for _, s := range snakes {
		as := ArchiveSnake{
			ID:       s.Id,
			Name:     s.Name,
			ModelTag: s.ModelTag,
			Alive:    s.IsAlive(),
			Health:   s.Health,
			Length:   s.Length,
			BodyX:    make([]int32, len(s.Body)),
			BodyY:    make([]int32, len(s.Body)),
			Reason:   string(s.EliminationReason),
		}
		for i, p := range s.Body {
			as.BodyX[i] = p.X
			as.BodyY[i] = p.Y
		}
		if m, ok := moves[s.Id]; ok {
			as.Move = m.Direction.String()
			as.LatencyMs = m.Latency.Milliseconds()
		}
		row.Snakes = append(row.Snakes, as)
	}
	return row
}

// ResultRows expands a result into one row per placement.
func ResultRows(result arena.Result) []ResultRow {
	rows := make([]ResultRow, 0, len(result.Placements))
	for _, p := range result.Placements {
		rows = append(rows, ResultRow{
			GameID:       result.GameId,
			SnakeID:      p.SnakeId,
			Name:         p.Name,
			ModelTag:     p.ModelTag,
			Rank:         int32(p.Rank),
			Players:      int32(len(result.Placements)),
			Alive:        p.Alive,
			Winner:       p.SnakeId == result.WinnerId,
			Length:       p.Length,
			Survived:     p.Survived,
			Reason:       string(p.Reason),
			AvgLatencyMs: float64(p.AvgLatency) / float64(time.Millisecond),
			Turns:        result.Turns,
			Truncated:    result.Truncated,
			EndedAtMs:    result.EndedAt.UnixMilli(),
		})
	}
	return rows
}
