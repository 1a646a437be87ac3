// Package store archives arena games to Parquet: one row per turn for
// replays and one row per snake per game for standings.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Subdirectories of a recorder's output directory.
const (
	TurnsDir   = "turns"
	ResultsDir = "results"
)

// ArchiveTurnRow is a single (game, turn) snapshot.
//
// One row per turn with nested snakes keeps food out of the per-snake data.
// Move and latency are what each snake's provider answered for this turn;
// turn 0 is the starting position and has no moves.
type ArchiveTurnRow struct {
	GameID string `parquet:"game_id,dict"`
	Turn   int32  `parquet:"turn"`
	Width  int32  `parquet:"width"`
	Height int32  `parquet:"height"`

	FoodX []int32 `parquet:"food_x"`
	FoodY []int32 `parquet:"food_y"`

	Snakes []ArchiveSnake `parquet:"snakes"`

	GameOver bool   `parquet:"game_over"`
	WinnerID string `parquet:"winner_id,optional"`
	Source   string `parquet:"source,dict"`
}

type ArchiveSnake struct {
	ID       string `parquet:"id,dict"`
	Name     string `parquet:"name,dict"`
	ModelTag string `parquet:"model_tag,dict,optional"`
	Alive    bool   `parquet:"alive"`
	Health   int32  `parquet:"health"`
	Length   int32  `parquet:"length"`

	BodyX []int32 `parquet:"body_x"`
	BodyY []int32 `parquet:"body_y"`

	Move      string `parquet:"move,dict,optional"`
	LatencyMs int64  `parquet:"latency_ms"`
	Reason    string `parquet:"reason,dict,optional"`
}

// ResultRow is one snake's placement in one finished game.
type ResultRow struct {
	GameID   string `parquet:"game_id,dict"`
	SnakeID  string `parquet:"snake_id,dict"`
	Name     string `parquet:"name,dict"`
	ModelTag string `parquet:"model_tag,dict,optional"`

	Rank     int32  `parquet:"rank"`
	Players  int32  `parquet:"players"`
	Alive    bool   `parquet:"alive"`
	Winner   bool   `parquet:"winner"`
	Length   int32  `parquet:"length"`
	Survived int32  `parquet:"survived"`
	Reason   string `parquet:"reason,dict,optional"`

	AvgLatencyMs float64 `parquet:"avg_latency_ms"`
	Turns        int32   `parquet:"turns"`
	Truncated    bool    `parquet:"truncated"`
	EndedAtMs    int64   `parquet:"ended_at_ms"`
}

// WriteTurnsBatch writes rows to a new batch file under outDir.
func WriteTurnsBatch(outDir string, rows []ArchiveTurnRow) (string, error) {
	return writeBatchAtomic(outDir, rows, "archive_turn_v2")
}

// WriteResultsBatch writes rows to a new batch file under outDir.
func WriteResultsBatch(outDir string, rows []ResultRow) (string, error) {
	return writeBatchAtomic(outDir, rows, "result_v1")
}

func ReadTurns(path string) ([]ArchiveTurnRow, error) {
	rows, err := parquet.ReadFile[ArchiveTurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func ReadResults(path string) ([]ResultRow, error) {
	rows, err := parquet.ReadFile[ResultRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// writeBatchAtomic writes into outDir/tmp and renames into outDir, so
// readers globbing outDir never see a partial file.
func writeBatchAtomic[T any](outDir string, rows []T, schema string) (string, error) {
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d_%s.parquet", time.Now().UnixNano(), uuid.NewString()[:8])
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}
