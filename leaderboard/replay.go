package leaderboard

import (
	"context"
	"fmt"

	"github.com/brensch/snekarena/game"
)

type ReplaySnake struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	ModelTag  string       `json:"model_tag,omitempty"`
	Alive     bool         `json:"alive"`
	Health    int32        `json:"health"`
	Length    int32        `json:"length"`
	Body      []game.Point `json:"body"`
	Move      string       `json:"move,omitempty"`
	LatencyMs int64        `json:"latency_ms"`
	Reason    string       `json:"reason,omitempty"`
}

type ReplayTurn struct {
	GameID   string        `json:"game_id"`
	Turn     int32         `json:"turn"`
	Width    int32         `json:"width"`
	Height   int32         `json:"height"`
	Food     []game.Point  `json:"food"`
	Snakes   []ReplaySnake `json:"snakes"`
	GameOver bool          `json:"game_over"`
	WinnerID string        `json:"winner_id,omitempty"`
}

// Replay returns a recorded game's turns in order. It is empty when no turn
// archives were found or the game is unknown.
func (d *DB) Replay(ctx context.Context, gameID string) ([]ReplayTurn, error) {
	if !d.hasTurns {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT game_id, turn::INTEGER, width::INTEGER, height::INTEGER, food_x, food_y, snakes,
		        COALESCE(game_over, false), COALESCE(winner_id, '')
		 FROM turns
		 WHERE game_id = ?
		 ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]ReplayTurn, 0, 256)
	for rows.Next() {
		var t ReplayTurn
		var foodXAny, foodYAny, snakesAny any
		if err := rows.Scan(&t.GameID, &t.Turn, &t.Width, &t.Height, &foodXAny, &foodYAny, &snakesAny, &t.GameOver, &t.WinnerID); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Food = zipPoints(asInt32Slice(foodXAny), asInt32Slice(foodYAny))
		t.Snakes = asSnakes(snakesAny)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func zipPoints(xs, ys []int32) []game.Point {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	out := make([]game.Point, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, game.Point{X: xs[i], Y: ys[i]})
	}
	return out
}

func asInt32Slice(v any) []int32 {
	if v == nil {
		return nil
	}
	switch vv := v.(type) {
	case []int32:
		return vv
	case []int64:
		out := make([]int32, 0, len(vv))
		for _, x := range vv {
			out = append(out, int32(x))
		}
		return out
	case []any:
		out := make([]int32, 0, len(vv))
		for _, x := range vv {
			out = append(out, int32(asInt64(x)))
		}
		return out
	default:
		return nil
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int32:
		return t != 0
	default:
		return false
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

// asSnakes decodes the nested snakes list DuckDB hands back as []any of
// map[string]any.
func asSnakes(v any) []ReplaySnake {
	list, ok := v.([]any)
	if !ok {
		return nil
	}

	snakes := make([]ReplaySnake, 0, len(list))
	for _, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		snakes = append(snakes, ReplaySnake{
			ID:        asString(m["id"]),
			Name:      asString(m["name"]),
			ModelTag:  asString(m["model_tag"]),
			Alive:     asBool(m["alive"]),
			Health:    int32(asInt64(m["health"])),
			Length:    int32(asInt64(m["length"])),
			Body:      zipPoints(asInt32Slice(m["body_x"]), asInt32Slice(m["body_y"])),
			Move:      asString(m["move"]),
			LatencyMs: asInt64(m["latency_ms"]),
			Reason:    asString(m["reason"]),
		})
	}
	return snakes
}
