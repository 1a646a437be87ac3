package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/brensch/snekarena/game"
	"github.com/brensch/snekarena/rules"
)

// Safe is a built-in bot: it picks uniformly among moves that do not hit a
// wall or a body, preferring ones that reach food, and moves up when boxed in.
type Safe struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSafe seeds the bot; a zero seed uses the clock.
func NewSafe(seed int64) *Safe {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Safe{rng: rand.New(rand.NewSource(seed))}
}

func (s *Safe) Move(ctx context.Context, state *game.GameState, youID string) (game.Decision, error) {
	if err := ctx.Err(); err != nil {
		return game.Decision{}, err
	}

	legal := rules.LegalMoves(state, youID)
	if len(legal) == 0 {
		return game.Decision{Direction: game.Up, Reason: "boxed in"}, nil
	}

	you := state.SnakeByID(youID)
	food := make(map[game.Point]bool, len(state.Food))
	for _, f := range state.Food {
		food[f] = true
	}
	feeding := make([]game.Direction, 0, len(legal))
	for _, d := range legal {
		if food[you.Head().Step(d)] {
			feeding = append(feeding, d)
		}
	}
	if len(feeding) > 0 {
		return game.Decision{Direction: s.pick(feeding), Reason: "food"}, nil
	}
	return game.Decision{Direction: s.pick(legal)}, nil
}

func (s *Safe) pick(ds []game.Direction) game.Direction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ds[s.rng.Intn(len(ds))]
}
