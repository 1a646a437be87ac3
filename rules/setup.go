package rules

import (
	"math/rand"

	"github.com/brensch/snekarena/game"
	"github.com/google/uuid"
)

// NewGame builds a fresh state for players and seeds the minimum food.
// Starting a new game always goes through here; states are never reset.
func NewGame(cfg game.Config, players []game.Player, rng *rand.Rand) *game.GameState {
	state := game.NewState(uuid.NewString(), cfg, players)

	// Only the minimum at game start; the extra-food roll begins on turn 1.
	ApplyFoodSettings(state, rng, FoodSettings{MinimumFood: cfg.MinimumFood, SpawnChance: 0})
	return state
}
