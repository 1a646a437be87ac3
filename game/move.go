package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDirection = errors.New("invalid direction")

type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// NoMove stands in for a snake whose provider did not answer in time. The
// resolver treats it like a missing move.
const NoMove Direction = -1

// Directions lists every direction in index order.
var Directions = [4]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	case NoMove:
		return "none"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

func (d Direction) MarshalText() ([]byte, error) {
	if d == NoMove {
		return []byte("none"), nil
	}
	if !d.Valid() {
		return nil, fmt.Errorf("marshal %d: %w", int(d), ErrInvalidDirection)
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*d = NoMove
		return nil
	}
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDirection accepts the four Battlesnake move names, case-insensitively.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidDirection)
}

// Move is one snake's proposed direction for a turn.
// Latency is the provider's response time; zero means not measured.
type Move struct {
	SnakeId   string        `json:"snake_id"`
	Direction Direction     `json:"direction"`
	Latency   time.Duration `json:"latency,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// Decision is what a move provider answers for a single snake.
type Decision struct {
	Direction Direction
	Reason    string
}
