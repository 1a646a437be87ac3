// Package leaderboard aggregates recorded results with DuckDB and computes
// Elo ratings from finishing orders.
package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brensch/snekarena/store"
)

// DB is an in-memory DuckDB with a `results` view over every results batch
// under the given output directories, and a `turns` view when any turn
// archives exist.
type DB struct {
	db       *sql.DB
	files    int
	hasTurns bool
}

// Open builds the views. Directories without results yield an empty view.
func Open(ctx context.Context, dirs []string) (*DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.ExecContext(ctx, "PRAGMA threads=4")

	resultGlobs, files, err := globParquet(dirs, store.ResultsDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	turnGlobs, _, err := globParquet(dirs, store.TurnsDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var query string
	if len(resultGlobs) == 0 {
		query = `CREATE OR REPLACE VIEW results AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS game_id,
					NULL::VARCHAR AS snake_id,
					NULL::VARCHAR AS name,
					NULL::VARCHAR AS model_tag,
					NULL::INTEGER AS rank,
					NULL::INTEGER AS players,
					NULL::BOOLEAN AS alive,
					NULL::BOOLEAN AS winner,
					NULL::INTEGER AS length,
					NULL::INTEGER AS survived,
					NULL::VARCHAR AS reason,
					NULL::DOUBLE AS avg_latency_ms,
					NULL::INTEGER AS turns,
					NULL::BOOLEAN AS truncated,
					NULL::BIGINT AS ended_at_ms
			) WHERE 1=0`
	} else {
		query = `CREATE OR REPLACE VIEW results AS
			SELECT * FROM read_parquet([` + strings.Join(resultGlobs, ",") + `], union_by_name=true)`
	}
	if _, err := db.ExecContext(ctx, query); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create results view: %w", err)
	}

	if len(turnGlobs) > 0 {
		query = `CREATE OR REPLACE VIEW turns AS
			SELECT * FROM read_parquet([` + strings.Join(turnGlobs, ",") + `], union_by_name=true)`
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create turns view: %w", err)
		}
	}
	return &DB{db: db, files: files, hasTurns: len(turnGlobs) > 0}, nil
}

// globParquet returns one quoted glob per directory that has batches under
// sub, and the number of matching files.
func globParquet(dirs []string, sub string) ([]string, int, error) {
	globs := make([]string, 0, len(dirs))
	files := 0
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		glob := filepath.Join(dir, sub, "*.parquet")
		matches, err := filepath.Glob(glob)
		if err != nil {
			return nil, 0, fmt.Errorf("glob %s: %w", glob, err)
		}
		if len(matches) == 0 {
			continue
		}
		files += len(matches)
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	return globs, files, nil
}

func (d *DB) Close() error { return d.db.Close() }

// Files is the number of result batches behind the view.
func (d *DB) Files() int { return d.files }

// Standing is one snake's aggregate record, keyed by name.
type Standing struct {
	Name         string  `json:"name"`
	ModelTag     string  `json:"model_tag"`
	Games        int64   `json:"games"`
	Wins         int64   `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	AvgRank      float64 `json:"avg_rank"`
	AvgLength    float64 `json:"avg_length"`
	AvgSurvived  float64 `json:"avg_survived"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Standings orders snakes by wins, then average rank.
func (d *DB) Standings(ctx context.Context) ([]Standing, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			name,
			COALESCE(arg_max(model_tag, ended_at_ms), '') AS model_tag,
			COUNT(*) AS games,
			COUNT(*) FILTER (WHERE winner) AS wins,
			AVG("rank")::DOUBLE AS avg_rank,
			AVG(length)::DOUBLE AS avg_length,
			AVG(survived)::DOUBLE AS avg_survived,
			COALESCE(AVG(avg_latency_ms), 0)::DOUBLE AS avg_latency_ms
		FROM results
		GROUP BY name
		ORDER BY wins DESC, avg_rank ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var out []Standing
	for rows.Next() {
		var s Standing
		if err := rows.Scan(&s.Name, &s.ModelTag, &s.Games, &s.Wins, &s.AvgRank, &s.AvgLength, &s.AvgSurvived, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan standing: %w", err)
		}
		if s.Games > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Games)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Finish is one snake's rank in one game.
type Finish struct {
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// GameFinishes is a game's finishing order.
type GameFinishes struct {
	GameID   string   `json:"game_id"`
	Finishes []Finish `json:"finishes"`
}

// Games returns every game's finishing order, oldest first.
func (d *DB) Games(ctx context.Context) ([]GameFinishes, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT game_id, name, "rank", MAX(ended_at_ms) OVER (PARTITION BY game_id) AS ended
		FROM results
		ORDER BY ended ASC, game_id ASC, "rank" ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []GameFinishes
	for rows.Next() {
		var (
			gameID, name string
			rank         int32
			ended        int64
		)
		if err := rows.Scan(&gameID, &name, &rank, &ended); err != nil {
			return nil, fmt.Errorf("scan finish: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].GameID != gameID {
			out = append(out, GameFinishes{GameID: gameID})
		}
		last := &out[len(out)-1]
		last.Finishes = append(last.Finishes, Finish{Name: name, Rank: int(rank)})
	}
	return out, rows.Err()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
