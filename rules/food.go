package rules

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"

	"github.com/brensch/snekarena/game"
)

// FoodSettings controls food spawning after each turn:
//   - MinimumFood: keep at least this many food items on the board
//   - SpawnChance: probability (0..1) of one extra food each turn
//
// Battlesnake servers default to MinimumFood=1 and a 15% chance.
type FoodSettings struct {
	MinimumFood int
	SpawnChance float64
}

var DefaultFoodSettings = FoodSettings{MinimumFood: 1, SpawnChance: 0.15}

// FoodSettingsFromConfig pulls the food knobs out of a game config.
func FoodSettingsFromConfig(cfg game.Config) FoodSettings {
	return FoodSettings{MinimumFood: cfg.MinimumFood, SpawnChance: cfg.FoodSpawnChance}
}

// spawnAttempts bounds the random probes before falling back to a full scan.
const spawnAttempts = 50

// applyFoodRules spawns food according to settings and returns what it placed.
// A nil rng makes placement a pure function of the state and salt.
func applyFoodRules(state *game.GameState, rng *rand.Rand, settings FoodSettings, salt uint64) []game.Point {
	if state == nil || state.Width <= 0 || state.Height <= 0 {
		return nil
	}
	if settings.MinimumFood < 0 {
		settings.MinimumFood = 0
	}
	if settings.SpawnChance < 0 {
		settings.SpawnChance = 0
	}
	if settings.SpawnChance > 1 {
		settings.SpawnChance = 1
	}

	deficit := settings.MinimumFood - len(state.Food)
	if deficit < 0 {
		deficit = 0
	}

	if rng == nil {
		seed := int64(deterministicU64Fast(state, salt))
		if seed == 0 {
			seed = 1
		}
		rng = rand.New(rand.NewSource(seed))
	}

	// The extra roll happens every turn, even when the minimum already
	// needs topping up, so the chance stays independent.
	spawnExtra := settings.SpawnChance > 0 && rng.Float64() < settings.SpawnChance

	toSpawn := deficit
	if spawnExtra {
		toSpawn++
	}
	if toSpawn == 0 {
		return nil
	}

	// Dead bodies are not obstacles.
	occupied := make(map[game.Point]struct{}, int(state.Width*state.Height))
	for i := range state.Snakes {
		s := &state.Snakes[i]
		if !s.IsAlive() {
			continue
		}
		for _, p := range s.Body {
			occupied[p] = struct{}{}
		}
	}
	for _, f := range state.Food {
		occupied[f] = struct{}{}
	}

	spawned := make([]game.Point, 0, toSpawn)
	for i := 0; i < toSpawn; i++ {
		p, ok := findVacant(state, rng, occupied)
		if !ok {
			break
		}
		state.Food = append(state.Food, p)
		occupied[p] = struct{}{}
		spawned = append(spawned, p)
	}
	return spawned
}

// findVacant probes random cells first and only scans the board when the
// probes keep landing on occupied cells.
func findVacant(state *game.GameState, rng *rand.Rand, occupied map[game.Point]struct{}) (game.Point, bool) {
	for i := 0; i < spawnAttempts; i++ {
		p := game.Point{X: int32(rng.Intn(int(state.Width))), Y: int32(rng.Intn(int(state.Height)))}
		if _, ok := occupied[p]; !ok {
			return p, true
		}
	}

	free := make([]game.Point, 0, int(state.Width*state.Height)-len(occupied))
	for y := int32(0); y < state.Height; y++ {
		for x := int32(0); x < state.Width; x++ {
			p := game.Point{X: x, Y: y}
			if _, ok := occupied[p]; !ok {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return game.Point{}, false
	}
	return free[rng.Intn(len(free))], true
}

// ApplyFoodSettings applies food spawning to an existing state.
// This is useful for initialization (e.g. ensure MinimumFood at game start).
func ApplyFoodSettings(state *game.GameState, rng *rand.Rand, settings FoodSettings) []game.Point {
	return applyFoodRules(state, rng, settings, 0x464F4F445F494E49) // "FOOD_INI" salt
}

func deterministicU64Fast(state *game.GameState, salt uint64) uint64 {
	// Mix turn + board size + living heads + food count.
	h := fnv.New64a()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(state.Width))|(uint64(uint32(state.Height))<<32))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(uint32(state.Turn)))
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], salt)
	_, _ = h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(state.Food)))
	_, _ = h.Write(buf[:])

	for _, s := range state.Snakes {
		if !s.IsAlive() || len(s.Body) == 0 {
			continue
		}
		_, _ = h.Write([]byte(s.Id))
		head := s.Body[0]
		binary.LittleEndian.PutUint64(buf[:], (uint64(uint32(head.X))<<32)|uint64(uint32(head.Y)))
		_, _ = h.Write(buf[:])
	}

	return h.Sum64()
}
