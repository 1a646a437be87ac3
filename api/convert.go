package api

import (
	"math"
	"strconv"
	"time"

	"github.com/brensch/snekarena/game"
)

// RulesetName is reported to remote snakes in every request.
const RulesetName = "snekarena"

// NewGameRequest builds the request a remote snake receives for youID.
// Only living snakes appear on the board, as on the public engine.
func NewGameRequest(state *game.GameState, youID string, settings RulesetSettings, timeout time.Duration) GameRequest {
	req := GameRequest{
		Game: Game{
			ID:      state.Id,
			Ruleset: Ruleset{Name: RulesetName, Version: "v1", Settings: settings},
			Map:     "standard",
			Timeout: int(timeout / time.Millisecond),
			Source:  "arena",
		},
		Turn: int(state.Turn),
		Board: Board{
			Height:  int(state.Height),
			Width:   int(state.Width),
			Food:    make([]Coord, len(state.Food)),
			Hazards: []Coord{},
			Snakes:  make([]Battlesnake, 0, len(state.Snakes)),
		},
	}

	for i, f := range state.Food {
		req.Board.Food[i] = Coord{X: int(f.X), Y: int(f.Y)}
	}

	for i := range state.Snakes {
		s := &state.Snakes[i]
		bs := toBattlesnake(s)
		if s.Id == youID {
			req.You = bs
		}
		if s.IsAlive() {
			req.Board.Snakes = append(req.Board.Snakes, bs)
		}
	}
	return req
}

// SettingsFromConfig expresses the food knobs the way the public API does
// (integer percent).
func SettingsFromConfig(cfg game.Config) RulesetSettings {
	return RulesetSettings{
		FoodSpawnChance: int(math.Round(cfg.FoodSpawnChance * 100)),
		MinimumFood:     cfg.MinimumFood,
	}
}

func toBattlesnake(s *game.Snake) Battlesnake {
	bs := Battlesnake{
		ID:     s.Id,
		Name:   s.Name,
		Health: int(s.Health),
		Body:   make([]Coord, len(s.Body)),
		Length: len(s.Body),
	}
	for j, b := range s.Body {
		bs.Body[j] = Coord{X: int(b.X), Y: int(b.Y)}
	}
	if len(s.Body) > 0 {
		bs.Head = bs.Body[0]
	}
	if n := len(s.Latencies); n > 0 {
		bs.Latency = strconv.FormatInt(s.Latencies[n-1].Milliseconds(), 10)
	}
	bs.Customizations.Color = s.Color
	return bs
}

// ToGameState converts an API request to game state. Every snake on the
// board is alive; the request's You is not duplicated if it is absent from
// the board.
func ToGameState(req *GameRequest) *game.GameState {
	state := &game.GameState{
		Id:     req.Game.ID,
		Width:  int32(req.Board.Width),
		Height: int32(req.Board.Height),
		Turn:   int32(req.Turn),
	}

	state.Food = make([]game.Point, len(req.Board.Food))
	for i, f := range req.Board.Food {
		state.Food[i] = game.Point{X: int32(f.X), Y: int32(f.Y)}
	}

	state.Snakes = make([]game.Snake, len(req.Board.Snakes))
	for i, s := range req.Board.Snakes {
		snake := game.Snake{
			Id:     s.ID,
			Name:   s.Name,
			Color:  s.Customizations.Color,
			Health: int32(s.Health),
			Length: int32(s.Length),
			Status: game.Alive,
			Body:   make([]game.Point, len(s.Body)),
		}
		for j, b := range s.Body {
			snake.Body[j] = game.Point{X: int32(b.X), Y: int32(b.Y)}
		}
		state.Snakes[i] = snake
	}

	return state
}
