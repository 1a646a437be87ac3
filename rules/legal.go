package rules

import (
	"github.com/brensch/snekarena/game"
)

// LegalMoves returns the directions that keep snake id on the board and off
// every living body. Tails are treated as solid since we cannot know yet
// whether their owner eats this turn.
func LegalMoves(state *game.GameState, id string) []game.Direction {
	you := state.SnakeByID(id)
	if you == nil || !you.IsAlive() || len(you.Body) == 0 {
		return nil
	}

	head := you.Body[0]
	moves := make([]game.Direction, 0, 4)
	for _, d := range game.Directions {
		if isSafe(state, head.Step(d), you.Body) {
			moves = append(moves, d)
		}
	}
	return moves
}

func isSafe(state *game.GameState, p game.Point, myBody []game.Point) bool {
	if !state.InBounds(p) {
		return false
	}

	for i := range state.Snakes {
		s := &state.Snakes[i]
		if !s.IsAlive() {
			continue
		}
		if containsPoint(s.Body, p) {
			return false
		}
	}

	// Neck check; covered by the body scan but kept explicit.
	if len(myBody) > 1 && myBody[1] == p {
		return false
	}

	return true
}
