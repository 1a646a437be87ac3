// Package game defines the core game state types for the arena.
//
// A GameState is a plain value: the rules package advances it one turn at a
// time and callers that need to hold on to a view of it take a Clone.
package game

import (
	"errors"
	"fmt"
	"time"
)

// MaxHealth is the health a snake returns to after eating.
const MaxHealth = 100

var ErrUnknownSnake = errors.New("unknown snake")

// Point is a board coordinate.
// Coordinates follow Battlesnake conventions: (0,0) is bottom-left.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Step returns the neighbouring point in direction d.
func (p Point) Step(d Direction) Point {
	switch d {
	case Up:
		p.Y++
	case Down:
		p.Y--
	case Left:
		p.X--
	case Right:
		p.X++
	}
	return p
}

type Status int

const (
	Alive Status = iota
	Eliminated
)

func (s Status) String() string {
	if s == Eliminated {
		return "eliminated"
	}
	return "alive"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "alive":
		*s = Alive
	case "eliminated":
		*s = Eliminated
	default:
		return fmt.Errorf("unknown status %q", b)
	}
	return nil
}

// EliminationReason records why a snake left the game.
type EliminationReason string

const (
	ReasonNone          EliminationReason = ""
	ReasonSelfCollision EliminationReason = "self-collision"
	ReasonBodyCollision EliminationReason = "body-collision"
	ReasonHeadToHead    EliminationReason = "head-to-head-collision"
	ReasonOutOfBounds   EliminationReason = "out-of-bounds"
	ReasonStarvation    EliminationReason = "starvation"
	ReasonTimeout       EliminationReason = "timeout"
	ReasonManual        EliminationReason = "manual"
)

type Snake struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	ModelTag string `json:"model_tag"`
	Color    string `json:"color"`

	Body   []Point `json:"body"`
	Health int32   `json:"health"`
	// Length is the score: it starts at 1 and grows once per food eaten,
	// independent of len(Body).
	Length int32 `json:"length"`

	Status            Status            `json:"status"`
	EliminationReason EliminationReason `json:"elimination_reason,omitempty"`
	EliminatedTurn    int32             `json:"eliminated_turn,omitempty"`

	Latencies []time.Duration `json:"latencies,omitempty"`
}

func (s *Snake) IsAlive() bool {
	return s.Status == Alive
}

func (s *Snake) Head() Point {
	return s.Body[0]
}

// GameState is the authoritative snapshot of one game.
type GameState struct {
	Id         string  `json:"id"`
	Turn       int32   `json:"turn"`
	Width      int32   `json:"width"`
	Height     int32   `json:"height"`
	Snakes     []Snake `json:"snakes"`
	Food       []Point `json:"food"`
	IsGameOver bool    `json:"is_game_over"`
	WinnerId   string  `json:"winner_id,omitempty"`
}

// Clone performs a deep copy of the game state.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Id:         s.Id,
		Turn:       s.Turn,
		Width:      s.Width,
		Height:     s.Height,
		IsGameOver: s.IsGameOver,
		WinnerId:   s.WinnerId,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}

	if len(s.Snakes) > 0 {
		out.Snakes = make([]Snake, len(s.Snakes))
		for i := range s.Snakes {
			out.Snakes[i] = s.Snakes[i]
			out.Snakes[i].Body = nil
			out.Snakes[i].Latencies = nil
			if len(s.Snakes[i].Body) > 0 {
				out.Snakes[i].Body = make([]Point, len(s.Snakes[i].Body))
				copy(out.Snakes[i].Body, s.Snakes[i].Body)
			}
			if len(s.Snakes[i].Latencies) > 0 {
				out.Snakes[i].Latencies = make([]time.Duration, len(s.Snakes[i].Latencies))
				copy(out.Snakes[i].Latencies, s.Snakes[i].Latencies)
			}
		}
	}

	return out
}

// InBounds reports whether p lies on the board.
func (s *GameState) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Width && p.Y >= 0 && p.Y < s.Height
}

// SnakeByID returns a pointer into s.Snakes, or nil.
func (s *GameState) SnakeByID(id string) *Snake {
	for i := range s.Snakes {
		if s.Snakes[i].Id == id {
			return &s.Snakes[i]
		}
	}
	return nil
}

// Living returns the number of snakes still in play.
func (s *GameState) Living() int {
	n := 0
	for i := range s.Snakes {
		if s.Snakes[i].IsAlive() {
			n++
		}
	}
	return n
}

// CheckGameOver marks the game finished once at most one snake is alive.
// It never reopens a finished game.
func (s *GameState) CheckGameOver() {
	if s.IsGameOver {
		return
	}
	living := 0
	winner := ""
	for i := range s.Snakes {
		if s.Snakes[i].IsAlive() {
			living++
			winner = s.Snakes[i].Id
		}
	}
	if living > 1 {
		return
	}
	s.IsGameOver = true
	if living == 1 {
		s.WinnerId = winner
	}
}

// SetLabel replaces a snake's model tag. It has no effect on play and is
// allowed after the game has ended.
func SetLabel(s *GameState, id, label string) error {
	snake := s.SnakeByID(id)
	if snake == nil {
		return fmt.Errorf("set label %q: %w", id, ErrUnknownSnake)
	}
	snake.ModelTag = label
	return nil
}

// Eliminate removes a snake by operator decision. The body stays where it is.
// Eliminating an already eliminated snake is a no-op.
func Eliminate(s *GameState, id string) error {
	snake := s.SnakeByID(id)
	if snake == nil {
		return fmt.Errorf("eliminate %q: %w", id, ErrUnknownSnake)
	}
	if !snake.IsAlive() || s.IsGameOver {
		return nil
	}
	snake.Status = Eliminated
	snake.EliminationReason = ReasonManual
	snake.EliminatedTurn = s.Turn
	snake.Health = 0
	s.CheckGameOver()
	return nil
}
